package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"lunabot/internal/config"
	"lunabot/internal/store"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// Secrets live in the environment; a local .env is optional.
	_ = godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "lunabot",
		Short:   "Luna: persona-driven Discord chat bot",
		Long:    "Luna is a Discord bot that chats like a member of the server, with personas, memory, and unprompted interjections.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.lunabot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(cleanupCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

const envTemplate = `# lunabot secrets. Loaded at startup; referenced from config.json via ${VAR}.
DISCORD_TOKEN=
GROQ_API_KEY=
OPENROUTER_API_KEY=
`

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config.json and .env template",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			envPath := cfgDir + "/.env"
			if _, err := os.Stat(envPath); os.IsNotExist(err) {
				if err := os.WriteFile(envPath, []byte(envTemplate), 0o600); err != nil {
					return err
				}
			}
			logger.Info("initialized", "config", cfgPath, "env", envPath)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show config and stored-data status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false, "err", err)
				return err
			}
			logger.Info("config", "path", cfgPath, "loaded", true)
			logger.Info("providers",
				"groq", cfg.Providers.Groq.Model,
				"openrouter", cfg.Providers.OpenRouter.Model,
				"vision", cfg.Providers.OpenRouter.VisionModel,
			)
			logger.Info("lurker", "enabled", cfg.Lurker.Enabled, "channels", len(cfg.Lurker.Channels))

			db, err := store.Open(cfg.Store.DBPath, logger)
			if err != nil {
				logger.Info("store", "path", cfg.Store.DBPath, "open", false, "err", err)
				return nil
			}
			defer db.Close()
			total, err := db.TotalUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("store stats: %w", err)
			}
			logger.Info("store", "path", cfg.Store.DBPath, "users", total)
			return nil
		},
	}
}

func cleanupCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Run the data-retention sweep once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if days <= 0 {
				days = cfg.Retention.Days
			}

			db, err := store.Open(cfg.Store.DBPath, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			removed, err := db.Cleanup(ctx, time.Now().AddDate(0, 0, -days))
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}
			logger.Info("cleanup complete", "removed", removed, "olderThanDays", days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention window in days (default: config retention.days)")
	return cmd
}
