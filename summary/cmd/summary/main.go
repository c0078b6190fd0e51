// Command summary prints the flowpulse health summary.
//
// Usage:
//
//	summary                              # ask the open dashboard for a fresh read, fall back to the cache
//	summary -analyze=false               # cache only
//	summary -watch                       # follow the coordinator's stream until interrupted
//	summary -json                        # machine-readable output
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/flowpulse/flowpulse/pkg/protocol"
	"github.com/flowpulse/flowpulse/pkg/types"
	"github.com/flowpulse/flowpulse/summary/internal/client"
	"github.com/flowpulse/flowpulse/summary/internal/view"
)

type options struct {
	analyze        bool
	analyzeTimeout time.Duration
	ttl            time.Duration
	jsonOut        bool
}

func main() {
	coordinator := flag.String("coordinator", "http://localhost:8080", "coordinator base URL")
	header := flag.String("header", "x-api-key", "header carrying the API key")
	keyEnv := flag.String("api-key-env", "FLOWPULSE_API_KEY", "environment variable holding the API key")
	analyze := flag.Bool("analyze", true, "ask the open dashboard for a fresh read before using the cache")
	analyzeTimeout := flag.Duration("analyze-timeout", 2*time.Second, "how long to wait for a fresh read")
	ttl := flag.Duration("ttl", types.SnapshotTTL, "age after which cached data is shown as stale")
	watch := flag.Bool("watch", false, "keep printing as the coordinator streams updates")
	jsonOut := flag.Bool("json", false, "print JSON instead of text")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(*coordinator, *header, os.Getenv(*keyEnv))
	opts := options{
		analyze:        *analyze,
		analyzeTimeout: *analyzeTimeout,
		ttl:            *ttl,
		jsonOut:        *jsonOut,
	}

	if err := run(ctx, c, opts, *watch, os.Stdout); err != nil {
		slog.Error("summary: fatal", "err", err)
		os.Exit(1)
	}
}

// Reconnect schedule for watch mode.
const (
	watchRetryInitial = time.Second
	watchRetryMax     = 30 * time.Second
)

func run(ctx context.Context, c *client.Client, opts options, watch bool, w io.Writer) error {
	if err := once(ctx, c, opts, w); err != nil || !watch {
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = watchRetryInitial
	bo.MaxInterval = watchRetryMax
	bo.Reset()

	for {
		err := c.Watch(ctx, func(m protocol.MetricsMap) {
			bo.Reset()
			if !opts.jsonOut {
				fmt.Fprintln(w)
			}
			if err := render(w, m, nil, opts); err != nil {
				slog.Warn("summary: render failed", "err", err)
			}
		})
		if ctx.Err() != nil {
			return nil
		}
		d := bo.NextBackOff()
		slog.Warn("summary: stream lost, reconnecting", "err", err, "retry_in", d)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d):
		}
	}
}

// once fetches and prints one summary. A fresh read that fails or times out
// is not an error; the cached map is still shown.
func once(ctx context.Context, c *client.Client, opts options, w io.Writer) error {
	var fresh *protocol.AnalyzeResult
	if opts.analyze {
		actx, cancel := context.WithTimeout(ctx, opts.analyzeTimeout)
		res, err := c.Analyze(actx)
		cancel()
		switch {
		case err == nil:
			fresh = &res
		case errors.Is(err, client.ErrNoExtractor):
			slog.Info("summary: no dashboard tab connected, using cache")
		default:
			slog.Warn("summary: fresh read failed, using cache", "err", err)
		}
	}

	cached, err := c.Metrics(ctx)
	if err != nil {
		return err
	}
	return render(w, cached, fresh, opts)
}

// render prints one summary from the cached map and an optional fresh read.
func render(w io.Writer, cached protocol.MetricsMap, fresh *protocol.AnalyzeResult, opts options) error {
	now := time.Now()
	entries := view.Build(cached, fresh, opts.ttl, now)
	if opts.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	return view.Render(w, entries, now)
}
