package page

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/flowpulse/flowpulse/agent/internal/resolve"
)

// eventBuffer is the depth of every Source's event channel.
const eventBuffer = 8

// FileSource serves snapshots from an HTML file on disk.
type FileSource struct {
	path    string
	pinned  string // configured URL; overrides the canonical link
	events  chan Event
	watcher *fsnotify.Watcher

	mu  sync.RWMutex
	url string

	closeOnce sync.Once
}

// OpenFile starts watching path. pageURL pins the reported URL; when empty
// the URL is read from the file's canonical link or og:url meta tag.
func OpenFile(ctx context.Context, path, pageURL string) (*FileSource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("page: create watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("page: watch %q: %w", path, err)
	}
	s := &FileSource{
		path:    path,
		pinned:  pageURL,
		events:  make(chan Event, eventBuffer),
		watcher: w,
	}
	if _, err := s.Snapshot(ctx); err != nil {
		slog.Warn("page: initial read failed", "path", path, "err", err)
	}
	go s.watch(ctx)
	slog.Info("page: watching capture file", "path", path, "url", s.URL())
	return s, nil
}

// URL returns the current page URL.
func (s *FileSource) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url
}

// Snapshot reads and parses the file.
func (s *FileSource) Snapshot(_ context.Context) (*resolve.Document, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("page: open capture: %w", err)
	}
	defer f.Close()

	doc, err := resolve.Parse(f, "")
	if err != nil {
		return nil, err
	}
	u := s.pinned
	if u == "" {
		u = canonicalURL(doc)
	}
	doc.URL = u

	s.mu.Lock()
	s.url = u
	s.mu.Unlock()
	return doc, nil
}

// Events returns the event channel.
func (s *FileSource) Events() <-chan Event { return s.events }

// Close stops the watcher.
func (s *FileSource) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.watcher.Close() })
	return err
}

func (s *FileSource) watch(ctx context.Context) {
	defer close(s.events)
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			prev := s.URL()
			if _, err := s.Snapshot(ctx); err != nil {
				slog.Warn("page: reread failed", "path", s.path, "err", err)
				continue
			}
			// Re-add the file in case an atomic save replaced the inode.
			_ = s.watcher.Add(s.path)

			cur := s.URL()
			slog.Debug("page: capture changed", "path", s.path, "url", cur, "url_changed", cur != prev)
			emit(s.events, Event{Kind: EventNavigated, URL: cur})

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("page: watcher error", "path", s.path, "err", err)
		}
	}
}

// canonicalURL reads <link rel="canonical"> or <meta property="og:url">.
func canonicalURL(doc *resolve.Document) string {
	sel := doc.Selection()
	if href, ok := sel.Find(`link[rel="canonical"]`).Attr("href"); ok && href != "" {
		return href
	}
	if content, ok := sel.Find(`meta[property="og:url"]`).Attr("content"); ok {
		return content
	}
	return ""
}
