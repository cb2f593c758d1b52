package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/config"
	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/history"
)

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent relay deliveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("history is disabled in the config")
			}

			store, err := history.NewStore(cfg.History.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("No deliveries recorded yet.")
				return nil
			}

			fmt.Printf("%-19s  %-6s  %-5s  %-12s  %s\n", "TIME", "RESULT", "FILES", "ALBUM", "ERROR")
			for _, rec := range recs {
				album := rec.AlbumID
				if album == "" {
					album = "-"
				}
				fmt.Printf("%-19s  %-6s  %-5d  %-12s  %s\n",
					rec.CreatedAt.Format("2006-01-02 15:04:05"),
					rec.Outcome, rec.Files, album, rec.Error)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of deliveries to show")
	return cmd
}
