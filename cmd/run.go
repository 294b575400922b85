package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/paywallbot/internal/bot"
	"github.com/nextlevelbuilder/paywallbot/internal/bus"
	"github.com/nextlevelbuilder/paywallbot/internal/channels"
	"github.com/nextlevelbuilder/paywallbot/internal/channels/discord"
	"github.com/nextlevelbuilder/paywallbot/internal/channels/rocketchat"
	"github.com/nextlevelbuilder/paywallbot/internal/channels/telegram"
	"github.com/nextlevelbuilder/paywallbot/internal/commands"
	"github.com/nextlevelbuilder/paywallbot/internal/config"
	"github.com/nextlevelbuilder/paywallbot/internal/dedup"
	"github.com/nextlevelbuilder/paywallbot/internal/metrics"
	"github.com/nextlevelbuilder/paywallbot/internal/rewrite"
	"github.com/nextlevelbuilder/paywallbot/internal/sites"
	"github.com/nextlevelbuilder/paywallbot/internal/store/file"
	"github.com/nextlevelbuilder/paywallbot/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func runBot() {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	// Paywall list
	overrides := file.NewOverrideFile(cfg.Sites.OverridesPath())
	registry := sites.New(ctx, overrides, sites.Options{
		Builtin: sites.Builtin,
		Mode:    sites.ParseMatchMode(cfg.Sites.MatchMode),
	})
	stats := registry.Stats()
	slog.Info("paywall list loaded",
		"effective", stats.Effective,
		"builtin", stats.Builtin,
		"user_added", stats.Added,
		"user_removed", stats.Removed,
		"file", overrides.Path(),
	)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	botMetrics := metrics.New(promReg)
	botMetrics.SetEffectiveDomains(stats.Effective)

	msgBus := bus.New()
	channelMgr := channels.NewManager()
	if err := registerChannels(cfg, msgBus, channelMgr); err != nil {
		slog.Error("failed to configure channels", "error", err)
		os.Exit(1)
	}

	rewriter := rewrite.New(registry, rewrite.Options{
		SocialDomains: cfg.Rewrite.SocialDomains,
		MirrorHost:    cfg.Rewrite.MirrorHost,
		ArchivePrefix: cfg.Rewrite.ArchivePrefix,
	})
	pipeline := bot.New(channelMgr, commands.New(registry), rewriter, dedup.New(dedup.DefaultCapacity), bot.Options{
		Metrics:     botMetrics,
		Tracer:      tracing.Tracer(),
		DomainCount: func() int { return registry.Stats().Effective },
	})

	// Connection failure at startup is fatal.
	if err := channelMgr.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
		msgBus.Close()
		channelMgr.StopAll(context.Background())
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipeline.Run(gctx, msgBus)
	})

	if cfg.Sites.WatchEnabled() {
		g.Go(func() error {
			err := overrides.Watch(gctx, func() {
				if err := registry.Reload(gctx); err != nil {
					slog.Warn("failed to reload user sites", "error", err)
					return
				}
				n := registry.Stats().Effective
				botMetrics.SetEffectiveDomains(n)
				slog.Info("user sites reloaded", "effective", n)
			})
			if err != nil {
				slog.Warn("override watcher unavailable", "error", err)
			}
			return nil
		})
	}

	if addr := cfg.Metrics.ListenAddr; addr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, addr, metrics.Handler(promReg, channelMgr.GetStatus))
		})
	}

	slog.Info("paywallbot started",
		"version", Version,
		"channels", channelMgr.GetEnabledChannels(),
		"match_mode", sites.ParseMatchMode(cfg.Sites.MatchMode),
	)

	<-gctx.Done()
	slog.Info("graceful shutdown initiated")
	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Release adapters blocked on the bus before stopping them.
	msgBus.Close()
	channelMgr.StopAll(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("failed to flush traces", "error", err)
	}

	if runErr != nil {
		slog.Error("paywallbot stopped with error", "error", runErr)
		os.Exit(1)
	}
	slog.Info("paywallbot stopped")
}

// registerChannels creates every enabled channel. At least one is required.
func registerChannels(cfg *config.Config, msgBus *bus.MessageBus, mgr *channels.Manager) error {
	if cfg.Channels.RocketChat.Enabled {
		ch, err := rocketchat.New(cfg.Channels.RocketChat, msgBus)
		if err != nil {
			return fmt.Errorf("rocketchat: %w", err)
		}
		mgr.RegisterChannel(ch)
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		ch, err := telegram.New(cfg.Channels.Telegram, msgBus)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		mgr.RegisterChannel(ch)
	}

	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token != "" {
		ch, err := discord.New(cfg.Channels.Discord, msgBus)
		if err != nil {
			return fmt.Errorf("discord: %w", err)
		}
		mgr.RegisterChannel(ch)
	}

	if len(mgr.GetEnabledChannels()) == 0 {
		return fmt.Errorf("no channels enabled (set ROCKETCHAT_URL, ROCKETCHAT_USER and ROCKETCHAT_PASSWORD)")
	}
	return nil
}
