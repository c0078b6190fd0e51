package page

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/flowpulse/flowpulse/agent/internal/resolve"
)

// popupBinding is the page-side function the overlay calls to open the
// summary view.
const popupBinding = "flowpulseOpenPopup"

// overlayJS renders a small button in the page corner that calls the
// binding. It is idempotent so re-injection after a reload is safe.
const overlayJS = `(() => {
  if (document.getElementById('flowpulse-overlay')) return;
  const mount = () => {
    const b = document.createElement('button');
    b.id = 'flowpulse-overlay';
    b.textContent = 'FlowPulse';
    b.style.cssText = 'position:fixed;right:16px;bottom:16px;z-index:2147483647;' +
      'padding:6px 10px;border-radius:6px;border:0;background:#1f2937;color:#fff;' +
      'font:12px sans-serif;cursor:pointer;opacity:.85';
    b.addEventListener('click', () => {
      if (typeof window.flowpulseOpenPopup === 'function') window.flowpulseOpenPopup(location.href);
    });
    document.body.appendChild(b);
  };
  if (document.body) mount(); else document.addEventListener('DOMContentLoaded', mount);
})()`

// RodConfig selects the tab to attach to.
type RodConfig struct {
	// DevToolsURL is the browser's websocket debugger URL.
	DevToolsURL string
	// URLPattern is a JavaScript regular expression matched against open
	// tab URLs. The first match is used.
	URLPattern string
	// Overlay injects the in-page summary button.
	Overlay bool
}

// RodSource reads a live tab over the DevTools protocol.
type RodSource struct {
	page   *rod.Page
	events chan Event
	cancel context.CancelFunc

	mu  sync.RWMutex
	url string

	closeOnce sync.Once
}

// AttachRod connects to the browser and attaches to the first tab matching
// cfg.URLPattern. The tab is never navigated by the source.
func AttachRod(ctx context.Context, cfg RodConfig) (*RodSource, error) {
	if cfg.DevToolsURL == "" {
		return nil, fmt.Errorf("page: devtools url is required")
	}
	// The connection lives on lctx; cancelling it drops the DevTools
	// socket without closing the user's browser.
	lctx, cancel := context.WithCancel(ctx)
	b := rod.New().Context(lctx).ControlURL(cfg.DevToolsURL)
	if err := b.Connect(); err != nil {
		cancel()
		return nil, fmt.Errorf("page: connect: %w", err)
	}

	pages, err := b.Pages()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("page: list tabs: %w", err)
	}
	p, err := pages.FindByURL(cfg.URLPattern)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("page: no tab matches %q: %w", cfg.URLPattern, err)
	}

	info, err := p.Info()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("page: tab info: %w", err)
	}

	s := &RodSource{
		page:   p,
		events: make(chan Event, eventBuffer),
		cancel: cancel,
		url:    info.URL,
	}

	if err := (proto.RuntimeAddBinding{Name: popupBinding}).Call(p); err != nil {
		slog.Warn("page: add binding failed (may already exist)", "err", err)
	}
	if cfg.Overlay {
		if _, err := (proto.PageAddScriptToEvaluateOnNewDocument{Source: overlayJS}).Call(p); err != nil {
			slog.Warn("page: register overlay failed", "err", err)
		}
		if _, err := p.Eval(`() => ` + overlayJS); err != nil {
			slog.Warn("page: inject overlay failed", "err", err)
		}
	}

	go s.listen(lctx)
	slog.Info("page: attached to tab", "url", info.URL, "title", info.Title)
	return s, nil
}

// URL returns the last known tab location.
func (s *RodSource) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url
}

// Snapshot copies the tab's outerHTML and parses it.
func (s *RodSource) Snapshot(ctx context.Context) (*resolve.Document, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return nil, fmt.Errorf("page: read dom: %w", err)
	}
	return resolve.Parse(strings.NewReader(html), s.URL())
}

// Events returns the event channel.
func (s *RodSource) Events() <-chan Event { return s.events }

// Close detaches from the browser. The tab and the browser stay open.
func (s *RodSource) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}

func (s *RodSource) navigated(u string) {
	s.mu.Lock()
	s.url = u
	s.mu.Unlock()
	if !emit(s.events, Event{Kind: EventNavigated, URL: u}) {
		slog.Debug("page: navigation event dropped", "url", u)
	}
}

// listen blocks until ctx is cancelled, translating CDP events.
func (s *RodSource) listen(ctx context.Context) {
	defer close(s.events)

	wait := s.page.Context(ctx).EachEvent(
		func(e *proto.PageFrameNavigated) {
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			s.navigated(e.Frame.URL)
		},
		func(e *proto.PageNavigatedWithinDocument) {
			if e.FrameID != s.page.FrameID {
				return
			}
			s.navigated(e.URL)
		},
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != popupBinding {
				return
			}
			emit(s.events, Event{Kind: EventOpenPopup, URL: s.URL()})
		},
	)
	wait()
	slog.Debug("page: listener stopped")
}
