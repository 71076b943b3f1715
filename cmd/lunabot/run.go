package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"lunabot/internal/agent"
	"lunabot/internal/assembler"
	"lunabot/internal/bus"
	"lunabot/internal/channel"
	"lunabot/internal/config"
	"lunabot/internal/domain"
	"lunabot/internal/embed"
	"lunabot/internal/gate"
	"lunabot/internal/gateway"
	"lunabot/internal/humanize"
	"lunabot/internal/kvstore"
	"lunabot/internal/metrics"
	"lunabot/internal/persona"
	"lunabot/internal/provider"
	"lunabot/internal/store"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and run the message pipeline",
		RunE:  run,
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: logLevel(cfg.General.LogLevel)}
	if cfg.General.LogFile == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() {}, nil
	}
	f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, opts)), func() { f.Close() }, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Discord.Token == "" || cfg.Discord.Token == "${DISCORD_TOKEN}" {
		return errors.New("discord.token is not set; put DISCORD_TOKEN in the environment or .env")
	}

	log, closeLog, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	logger = log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Persona.PresetFile != "" {
		if err := persona.LoadPresetFile(cfg.Persona.PresetFile); err != nil {
			return fmt.Errorf("persona presets: %w", err)
		}
		logger.Info("persona presets loaded", "file", cfg.Persona.PresetFile)
	}

	kv := kvstore.NewMemory()
	defer kv.Close()

	db, err := store.Open(cfg.Store.DBPath, logger.With("component", "store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	embedder := embed.NewClient(embed.Config{
		Provider:  cfg.Embedding.Provider,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		TimeoutMs: cfg.Embedding.TimeoutMs,
		Logger:    logger.With("component", "embed"),
	})
	if err := embedder.Init(ctx); err != nil {
		logger.Warn("embedding client not ready, routing falls back to llm_required", "err", err)
	}

	classifier := gate.NewClassifier(embedder, cfg.Gate.Threshold, logger.With("component", "gate"))
	if err := classifier.Init(ctx); err != nil {
		logger.Warn("route classifier not ready", "err", err)
	}

	groq := provider.NewGroq(provider.GroqConfig{
		APIKey:    cfg.Providers.Groq.APIKey,
		APIBase:   cfg.Providers.Groq.APIBase,
		ModelFast: cfg.Providers.Groq.Model,
		TimeoutS:  cfg.Providers.Groq.TimeoutSeconds,
		Logger:    logger.With("component", "groq"),
	})
	openrouter := provider.NewOpenRouter(provider.OpenRouterConfig{
		APIKey:       cfg.Providers.OpenRouter.APIKey,
		APIBase:      cfg.Providers.OpenRouter.APIBase,
		Model:        cfg.Providers.OpenRouter.Model,
		VisionModel:  cfg.Providers.OpenRouter.VisionModel,
		VisionBackup: cfg.Providers.OpenRouter.VisionBackup,
		TimeoutS:     cfg.Providers.OpenRouter.TimeoutSeconds,
		Logger:       logger.With("component", "openrouter"),
	})

	breaker := gateway.NewBreaker(kv, gateway.BreakerConfig{
		Threshold:     cfg.Breaker.Threshold,
		OpenSeconds:   cfg.Breaker.OpenSeconds,
		WindowSeconds: cfg.Breaker.WindowSeconds,
	}, logger.With("component", "breaker"))
	gw := gateway.New([]domain.Provider{groq, openrouter}, breaker, logger.With("component", "gateway"))

	resolver := persona.NewResolver(db, kv, logger.With("component", "persona"))
	human := humanize.New(rand.New(rand.NewSource(time.Now().UnixNano())))
	limiter := agent.NewLimiter(kv, cfg.RateLimit.MaxMessages, cfg.RateLimit.WindowSeconds, logger.With("component", "ratelimit"))

	commands := channel.NewCommandHandler(resolver, db, gw, logger.With("component", "commands"))
	discord := channel.NewDiscord(channel.DiscordConfig{
		Token:    cfg.Discord.Token,
		GuildID:  cfg.Discord.GuildID,
		Commands: commands,
		Logger:   logger.With("component", "discord"),
	})

	asm := assembler.New(assembler.Config{
		HistoryLimit:        cfg.Context.HistoryLimit,
		ReplyChainDepth:     cfg.Context.ReplyChainDepth,
		HistoryCacheSeconds: cfg.Context.HistoryCacheSeconds,
		SemanticWindowHours: cfg.Context.SemanticWindowHours,
		SemanticLimit:       cfg.Context.SemanticLimit,
		FactLimit:           cfg.Context.FactLimit,
		TokenBudget:         cfg.Context.TokenBudget,
	}, discord, kv, db, db, db, classifier, logger.With("component", "assembler"))

	var lurker *agent.Lurker
	if cfg.Lurker.Enabled {
		lurker = agent.NewLurker(agent.LurkerConfig{
			Channels:        cfg.Lurker.Channels,
			MinInterest:     cfg.Lurker.MinInterest,
			CooldownSeconds: cfg.Lurker.CooldownSeconds,
			BaseChance:      cfg.Lurker.BaseChance,
		}, discord, kv, gw, resolver, human, logger.With("component", "lurker"))
	}

	messageBus := bus.New(100, logger.With("component", "bus"))

	pipeline := agent.NewPipeline(
		agent.PipelineConfig{
			AllowedGuildID:  cfg.Discord.GuildID,
			IgnoredChannels: cfg.Discord.IgnoredChannels,
			Temperature:     cfg.Providers.Temperature,
		},
		discord, messageBus, classifier, asm, resolver, gw, limiter, human,
		db, db, db, classifier, lurker,
		logger.With("component", "pipeline"),
	)
	go pipeline.Run(ctx)

	sched := cron.New()
	if _, err := sched.AddFunc("@daily", func() {
		cctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		removed, err := db.Cleanup(cctx, time.Now().AddDate(0, 0, -cfg.Retention.Days))
		if err != nil {
			logger.Error("retention sweep failed", "err", err)
			return
		}
		logger.Info("retention sweep", "removed", removed, "olderThanDays", cfg.Retention.Days)
	}); err != nil {
		return fmt.Errorf("schedule retention sweep: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Default.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("metrics endpoint", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("lunabot starting", "version", version, "guild", cfg.Discord.GuildID)
	err = discord.Start(ctx, messageBus)
	messageBus.Close()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("discord: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
