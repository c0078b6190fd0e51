package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/flowpulse/flowpulse/agent/internal/config"
	"github.com/flowpulse/flowpulse/agent/internal/page"
	"github.com/flowpulse/flowpulse/agent/internal/runner"
	"github.com/flowpulse/flowpulse/agent/internal/shipper"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("flowpulse-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(config.Level(cfg.Agent.LogLevel))
	slog.Info("config loaded",
		"coordinator_url", cfg.Agent.CoordinatorURL,
		"source_mode", cfg.Agent.Source.Mode,
		"max_attempts", cfg.Agent.Poll.MaxAttempts,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src, err := openSource(ctx, cfg.Agent.Source)
	if err != nil {
		slog.Error("failed to open page source", "mode", cfg.Agent.Source.Mode, "err", err)
		os.Exit(1)
	}
	defer src.Close()

	link := shipper.New(cfg.Agent, src.URL)
	run := runner.New(src, link, cfg.Agent.Poll.Controller())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		link.Run(gctx)
		return nil
	})
	g.Go(func() error { return run.Run(gctx) })

	// Log level applies live; other sections need a restart.
	g.Go(func() error {
		return config.Watch(gctx, *configPath, cfg, func(updated *config.Config) {
			changed := config.Diff(cfg, updated)
			level.Set(config.Level(updated.Agent.LogLevel))
			if slices.ContainsFunc(changed, func(s string) bool { return s != "log_level" }) {
				slog.Warn("config changes take effect after restart", "changed", changed)
			}
			cfg = updated
		})
	})

	if err := g.Wait(); err != nil {
		slog.Error("flowpulse-agent stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("flowpulse-agent shutting down")
}

func openSource(ctx context.Context, sc config.SourceConfig) (page.Source, error) {
	if sc.Mode == config.ModeFile {
		return page.OpenFile(ctx, sc.File, sc.URL)
	}
	return page.AttachRod(ctx, page.RodConfig{
		DevToolsURL: sc.DevToolsURL,
		URLPattern:  sc.URLPattern,
		Overlay:     sc.Overlay,
	})
}
