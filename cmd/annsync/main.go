package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/bus"
	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/channel"
	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/config"
	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/health"
	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/history"
	"github.com/jaquanvader/telegram-discord-annoucements-sync/internal/relay"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "annsync",
		Short: "Relay Telegram channel announcements to a Discord webhook",
		Long: `annsync mirrors posts from a Telegram channel into a Discord channel,
regrouping multi-photo albums, rewriting promo text, and re-uploading media.`,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ~/.annsync/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			fmt.Printf("Wrote %s — fill in telegram.token and discord.webhookUrl, then run 'annsync run'.\n", cfgPath)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the relay",
		RunE:  runRelay,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("annsync v%s\n", version)
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is not configured")
	}
	if cfg.Discord.WebhookURL == "" {
		return fmt.Errorf("discord.webhookUrl is not configured")
	}

	logger, err = buildLogger(cfg.General)
	if err != nil {
		return err
	}

	// Graceful shutdown on signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	postBus := bus.New(100, logger)
	defer postBus.Close()

	tg := channel.NewTelegram(channel.TelegramConfig{
		Token:              cfg.Telegram.Token,
		PollTimeoutSeconds: cfg.Telegram.PollTimeoutSeconds,
		Logger:             logger,
	})

	forwarder, err := channel.NewDiscordWebhook(channel.DiscordWebhookConfig{
		WebhookURL:       cfg.Discord.WebhookURL,
		MaxContentLength: cfg.Discord.MaxContentLength,
		Resolver:         tg,
		Fetcher:          tg,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.NewStore(cfg.History.DBPath, logger)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	pipelineCfg := relay.PipelineConfig{
		Filter: relay.NewChannelFilter(cfg.Telegram.AllowedChannels),
		Rewriter: relay.NewRewriter(relay.RewriterConfig{
			Handle:      cfg.Rewrite.Handle,
			ContactTag:  cfg.Rewrite.ContactTag,
			ContactLink: cfg.Rewrite.ContactLink,
		}),
		Forwarder: forwarder,
		Window:    time.Duration(cfg.Relay.DebounceMs) * time.Millisecond,
		MaxFiles:  cfg.Discord.MaxFiles,
		Logger:    logger,
	}
	if store != nil {
		pipelineCfg.History = store
	}
	pipeline := relay.NewPipeline(pipelineCfg)

	if cfg.Health.Enabled {
		srv := health.New(cfg.Health.Addr, logger)
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("health server failed", "err", err)
			}
		}()
	}

	// The single consumer: pipeline steps run whole, one at a time.
	go func() {
		for post := range postBus.Subscribe() {
			pipeline.Handle(post)
		}
	}()

	logger.Info("relay starting", "version", version,
		"debounce_ms", cfg.Relay.DebounceMs,
		"max_files", cfg.Discord.MaxFiles,
	)
	return tg.Start(ctx, postBus)
}

// buildLogger applies general.logLevel and general.logFile.
func buildLogger(cfg config.GeneralConfig) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("cannot create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("cannot open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), nil
}
