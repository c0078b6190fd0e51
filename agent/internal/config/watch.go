package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path and calls onChange with the reloaded Config whenever
// the file is rewritten with different content. It runs until ctx is
// cancelled.
//
// A reload that fails to parse or validate is logged and the previous config
// stays active. A rewrite that leaves the agent section unchanged is ignored.
func Watch(ctx context.Context, path string, current *Config, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}
			changed := Diff(current, cfg)
			if len(changed) == 0 {
				continue
			}

			slog.Info("config: reloaded", "path", path, "changed", changed)
			current = cfg
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// Diff names the agent sections that differ between a and b. A nil a
// differs in every section.
func Diff(a, b *Config) []string {
	if a == nil {
		return []string{"coordinator_url", "log_level", "source", "poll", "link"}
	}
	var out []string
	if a.Agent.CoordinatorURL != b.Agent.CoordinatorURL {
		out = append(out, "coordinator_url")
	}
	if a.Agent.LogLevel != b.Agent.LogLevel {
		out = append(out, "log_level")
	}
	if a.Agent.Source != b.Agent.Source {
		out = append(out, "source")
	}
	if a.Agent.Poll != b.Agent.Poll {
		out = append(out, "poll")
	}
	if a.Agent.Link != b.Agent.Link {
		out = append(out, "link")
	}
	return out
}
