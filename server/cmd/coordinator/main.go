package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flowpulse/flowpulse/server/internal/api"
	"github.com/flowpulse/flowpulse/server/internal/auth"
	"github.com/flowpulse/flowpulse/server/internal/config"
	"github.com/flowpulse/flowpulse/server/internal/indicator"
	"github.com/flowpulse/flowpulse/server/internal/router"
	"github.com/flowpulse/flowpulse/server/internal/store"
	"github.com/flowpulse/flowpulse/server/internal/ws"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("flowpulse-coordinator starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(config.Level(cfg.Server.LogLevel))

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"snapshot_ttl", cfg.Server.Snapshot.TTL,
		"snapshot_path", cfg.Server.Snapshot.Path,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cache := store.New(cfg.Server.Snapshot.TTL)
	if path := cfg.Server.Snapshot.Path; path != "" {
		db, err := store.OpenSQLite(path)
		if err != nil {
			slog.Error("failed to open snapshot database", "path", path, "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := cache.Attach(ctx, db); err != nil {
			// A cold cache is still usable.
			slog.Warn("snapshot warm-load failed", "path", path, "err", err)
		}
		slog.Info("snapshot persistence enabled", "path", path, "loaded", cache.Count())
	}

	board := indicator.NewBoard()
	rt := router.New(&router.Env{Cache: cache, Indicator: board})

	hub := ws.NewHub(rt)
	stream := ws.NewStream(cache, cfg.Server.Stream.Interval)

	a := cfg.Server.Auth
	handler := api.New(rt,
		api.WithAuth(auth.APIKey(a.Mode, a.EffectiveHeader(), a.Key())),
		api.WithBoard(board),
		api.WithMount("/ws/extractor", hub),
		api.WithMount("/ws/stream", stream),
	)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		stream.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("flowpulse-coordinator stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("flowpulse-coordinator shutting down")
}
