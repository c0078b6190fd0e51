package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowpulse/flowpulse/agent/internal/extract"
	"github.com/flowpulse/flowpulse/agent/internal/page"
	"github.com/flowpulse/flowpulse/agent/internal/poll"
	"github.com/flowpulse/flowpulse/pkg/protocol"
	"github.com/flowpulse/flowpulse/pkg/types"
)

// snapshotTimeout bounds a single DOM read.
const snapshotTimeout = 5 * time.Second

// ErrNoData marks an immediate extraction that found nothing usable.
var ErrNoData = errors.New("runner: no data available")

// Link is the runner's view of the coordinator connection.
type Link interface {
	Send(env protocol.Envelope)
	Requests() <-chan protocol.Envelope
	Reply(env protocol.Envelope) error
}

// Runner wires a page source to the poll controller and the link.
type Runner struct {
	src      page.Source
	link     Link
	ctrl     *poll.Controller
	outcomes chan poll.Outcome

	// loop state, owned by Run
	platform types.Platform
	last     *types.MetricSet
	gen      uint64

	// one extractor per platform, shared by scheduled and immediate attempts
	mu         sync.Mutex
	extractors map[types.Platform]*extract.Extractor

	ctx context.Context
}

// New builds a Runner whose controller follows cfg.
func New(src page.Source, link Link, cfg poll.Config) *Runner {
	r := &Runner{
		src:        src,
		link:       link,
		outcomes:   make(chan poll.Outcome, 1),
		extractors: make(map[types.Platform]*extract.Extractor),
		ctx:        context.Background(),
	}
	r.ctrl = poll.New(cfg, r.attempt, r.deliver)
	return r
}

// Controller exposes the poll controller.
func (r *Runner) Controller() *poll.Controller { return r.ctrl }

// Run processes events until ctx is cancelled or the source closes.
func (r *Runner) Run(ctx context.Context) error {
	r.ctx = ctx
	defer r.ctrl.Stop()

	r.arm(r.src.URL(), true)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-r.src.Events():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("runner: page source closed")
			}
			r.handleEvent(ev)

		case out := <-r.outcomes:
			r.handleOutcome(out)

		case req := <-r.link.Requests():
			r.handleRequest(req)
		}
	}
}

// arm starts or restarts the controller for pageURL. Outcomes of earlier
// sequences are ignored from here on.
func (r *Runner) arm(pageURL string, initial bool) {
	defer func() { r.gen = r.ctrl.Generation() }()

	p := types.DetectPlatform(pageURL)
	r.platform = p
	r.last = nil
	if !p.Valid() {
		slog.Info("runner: page is not a supported platform, idling", "url", pageURL)
		r.ctrl.Stop()
		return
	}
	if initial {
		slog.Info("runner: starting extraction", "platform", p, "url", pageURL)
		r.ctrl.Start()
		return
	}
	r.ctrl.Reset("navigated")
}

func (r *Runner) handleEvent(ev page.Event) {
	switch ev.Kind {
	case page.EventNavigated:
		slog.Debug("runner: navigation", "url", ev.URL)
		r.arm(ev.URL, false)

	case page.EventOpenPopup:
		ms := r.last
		if ms == nil && r.platform.Valid() {
			now := r.ctrl.ExtractNow()
			if now.HasSignal() {
				ms = &now
			}
		}
		if ms == nil {
			slog.Info("runner: popup requested with no data", "url", ev.URL)
			return
		}
		r.send(protocol.OpenPopup, ms)
	}
}

func (r *Runner) handleOutcome(out poll.Outcome) {
	if out.Gen != r.gen {
		slog.Debug("runner: dropping outcome of an abandoned sequence",
			"platform", out.Metrics.Platform, "state", out.State.String())
		return
	}
	ms := out.Metrics
	if out.Succeeded() {
		r.last = &ms
		slog.Info("runner: metrics extracted",
			"platform", ms.Platform,
			"attempts", out.Attempts,
			"score", valueOr(ms.HealthScore, -1))
		r.send(protocol.MetricsExtracted, ms)
		return
	}
	slog.Warn("runner: extraction exhausted",
		"platform", ms.Platform, "attempts", out.Attempts, "url", ms.SourceURL)
	r.send(protocol.MetricsExtractionFailed, protocol.FailurePayload{
		Platform:  ms.Platform,
		SourceURL: ms.SourceURL,
		Reason:    fmt.Sprintf("no data after %d attempts", out.Attempts),
	})
}

func (r *Runner) handleRequest(req protocol.Envelope) {
	var result protocol.AnalyzeResult
	if r.platform.Valid() {
		if ms := r.ctrl.ExtractNow(); ms.HasSignal() {
			result.Metrics = &ms
			r.last = &ms
		}
	}
	if result.Metrics == nil {
		result.Failure = &protocol.FailurePayload{
			Platform:  r.platform,
			SourceURL: r.src.URL(),
			Reason:    ErrNoData.Error(),
		}
	}

	reply, err := protocol.Reply(req, result)
	if err != nil {
		reply = protocol.ReplyError(req, err)
	}
	if err := r.link.Reply(reply); err != nil {
		slog.Warn("runner: reply failed", "id", req.ID, "err", err)
	}
}

func (r *Runner) send(kind protocol.Kind, payload any) {
	env, err := protocol.New(kind, payload)
	if err != nil {
		slog.Error("runner: encode message", "type", kind, "err", err)
		return
	}
	r.link.Send(env)
}

// attempt runs on the controller's timer goroutine.
func (r *Runner) attempt() types.MetricSet {
	pageURL := r.src.URL()
	p := types.DetectPlatform(pageURL)
	empty := types.MetricSet{Platform: p, SourceURL: pageURL}

	ex, err := r.extractor(p)
	if err != nil {
		slog.Debug("runner: no extractor", "url", pageURL, "err", err)
		return empty
	}

	ctx, cancel := context.WithTimeout(r.ctx, snapshotTimeout)
	defer cancel()
	doc, err := r.src.Snapshot(ctx)
	if err != nil {
		slog.Warn("runner: snapshot failed", "url", pageURL, "err", err)
		return empty
	}
	return ex.Extract(doc)
}

// extractor returns the cached Extractor for p, building it on first use.
func (r *Runner) extractor(p types.Platform) (*extract.Extractor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ex, ok := r.extractors[p]; ok {
		return ex, nil
	}
	ex, err := extract.For(p)
	if err != nil {
		return nil, err
	}
	r.extractors[p] = ex
	return ex, nil
}

// deliver hands an outcome to the loop. A newer outcome replaces an
// undelivered older one.
func (r *Runner) deliver(out poll.Outcome) {
	for {
		select {
		case r.outcomes <- out:
			return
		default:
		}
		select {
		case <-r.outcomes:
		default:
		}
	}
}

func valueOr(p *int, def int) int {
	if v, ok := types.Value(p); ok {
		return v
	}
	return def
}
