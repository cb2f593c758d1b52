package main

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the relay configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("annsync doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'annsync init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, 1 failed\n", passed)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Telegram token present and plausible
			if cfg.Telegram.Token == "" {
				printFail("Telegram token", "not configured")
				failed++
			} else if !strings.Contains(cfg.Telegram.Token, ":") {
				printWarn("Telegram token", "does not look like <bot_id>:<secret>")
				warned++
			} else {
				printPass("Telegram token", "configured")
				passed++
			}

			// 4. Discord webhook URL shape
			if cfg.Discord.WebhookURL == "" {
				printFail("Discord webhook", "not configured")
				failed++
			} else if u, err := url.Parse(cfg.Discord.WebhookURL); err != nil || !strings.Contains(u.Path, "/webhooks/") {
				printWarn("Discord webhook", "URL does not look like .../api/webhooks/<id>/<token>")
				warned++
			} else {
				printPass("Discord webhook", "configured")
				passed++
			}

			// 5. Allow-list
			if len(cfg.Telegram.AllowedChannels) == 0 {
				printWarn("Channel filter", "empty allow-list: every channel the bot sees will be relayed")
				warned++
			} else {
				printPass("Channel filter", fmt.Sprintf("%d allowed channel(s)", len(cfg.Telegram.AllowedChannels)))
				passed++
			}

			// 6. Rewrite marker
			if cfg.Rewrite.Handle == "" {
				printWarn("Rewrite", "no handle configured: promo text passes through unchanged")
				warned++
			} else {
				printPass("Rewrite", "@"+strings.TrimPrefix(cfg.Rewrite.Handle, "@"))
				passed++
			}

			// 7. Relay log database writable
			if cfg.History.Enabled {
				if err := checkDatabase(cfg.History.DBPath); err != nil {
					printFail("Relay log", err.Error())
					failed++
				} else {
					printPass("Relay log", cfg.History.DBPath)
					passed++
				}
			} else {
				printWarn("Relay log", "disabled")
				warned++
			}

			fmt.Printf("\n%d passed, %d failed, %d warnings\n", passed, failed, warned)
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
