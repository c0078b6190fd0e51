package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowpulse/flowpulse/pkg/compute"
	"github.com/flowpulse/flowpulse/pkg/protocol"
	"github.com/flowpulse/flowpulse/pkg/types"
	"github.com/flowpulse/flowpulse/server/internal/indicator"
	"github.com/flowpulse/flowpulse/server/internal/store"
)

var (
	// ErrNoActiveContext means ANALYZE_TAB found no connected extractor.
	ErrNoActiveContext = errors.New("router: no active extractor context")
	// ErrContextGone means the target extractor disconnected before it
	// answered.
	ErrContextGone = errors.New("router: extractor context is gone")
	// ErrBadMessage means the envelope cannot be handled in this direction
	// or its payload does not decode.
	ErrBadMessage = errors.New("router: bad message")
)

// Env is the state every handler works on.
type Env struct {
	Cache     *store.Store
	Indicator indicator.Indicator
	Sessions  *Sessions
}

// Origin identifies the sender of a message. An empty Context means the
// summary view.
type Origin struct {
	Context string
}

// Extractor reports whether the message came from an extractor context.
func (o Origin) Extractor() bool { return o.Context != "" }

func (o Origin) String() string {
	if o.Extractor() {
		return "extractor " + o.Context
	}
	return "summary view"
}

// HandlerFunc handles one message kind. A nil reply means fire-and-forget.
type HandlerFunc func(ctx context.Context, env *Env, from Origin, msg protocol.Envelope) (*protocol.Envelope, error)

// route binds a handler to the side allowed to send its kind.
type route struct {
	handle        HandlerFunc
	fromExtractor bool
}

// Router maps message kinds to handlers.
type Router struct {
	env    *Env
	routes map[protocol.Kind]route
}

// New returns a Router with the standard handler table. Missing Sessions
// and Indicator are filled in.
func New(env *Env) *Router {
	if env.Sessions == nil {
		env.Sessions = NewSessions()
	}
	if env.Indicator == nil {
		env.Indicator = indicator.NewBoard()
	}
	return &Router{
		env: env,
		routes: map[protocol.Kind]route{
			protocol.MetricsExtracted:        {handle: handleExtracted, fromExtractor: true},
			protocol.MetricsExtractionFailed: {handle: handleFailed, fromExtractor: true},
			protocol.OpenPopup:               {handle: handleOpenPopup, fromExtractor: true},
			protocol.GetMetrics:              {handle: handleGetMetrics},
			protocol.AnalyzeTab:              {handle: handleAnalyzeTab},
		},
	}
}

// Env returns the router's handler context.
func (rt *Router) Env() *Env { return rt.env }

// Handle dispatches msg. Replies from extractors (ReplyTo set) are routed
// to the waiting request and produce no reply of their own. A kind sent
// from the wrong side fails with ErrBadMessage before any handler runs.
func (rt *Router) Handle(ctx context.Context, from Origin, msg protocol.Envelope) (*protocol.Envelope, error) {
	if from.Extractor() {
		rt.env.Sessions.Touch(from.Context)
	}
	if msg.ReplyTo != "" {
		if !from.Extractor() {
			return nil, fmt.Errorf("%w: reply to %q from %s", ErrBadMessage, msg.ReplyTo, from)
		}
		if !rt.env.Sessions.Deliver(from.Context, msg) {
			slog.Debug("router: late or unknown reply",
				"type", msg.Type, "reply_to", msg.ReplyTo, "context", from.Context)
		}
		return nil, nil
	}

	r, ok := rt.routes[msg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unexpected %q", ErrBadMessage, msg.Type)
	}
	if r.fromExtractor != from.Extractor() {
		return nil, fmt.Errorf("%w: %s not accepted from %s", ErrBadMessage, msg.Type, from)
	}
	reply, err := r.handle(ctx, rt.env, from, msg)
	if err != nil {
		slog.Warn("router: handler failed", "type", msg.Type, "context", from.Context, "err", err)
	}
	return reply, err
}

// --- handlers ---------------------------------------------------------------

func handleExtracted(_ context.Context, env *Env, from Origin, msg protocol.Envelope) (*protocol.Envelope, error) {
	ms, err := decodeMetrics(msg)
	if err != nil {
		return nil, err
	}
	snap := env.Cache.Put(ms.Platform, ms)
	b := indicator.For(snap.MetricSet)
	env.Indicator.SetIndicator(from.Context, b.Text, b.Color)
	slog.Info("router: metrics stored",
		"platform", ms.Platform, "context", from.Context, "partial", ms.Partial())
	return nil, nil
}

func handleFailed(_ context.Context, env *Env, from Origin, msg protocol.Envelope) (*protocol.Envelope, error) {
	var f protocol.FailurePayload
	if err := msg.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	env.Indicator.SetIndicator(from.Context, "", "")
	slog.Info("router: extraction failed",
		"platform", f.Platform, "url", f.SourceURL, "reason", f.Reason, "context", from.Context)
	return nil, nil
}

func handleOpenPopup(_ context.Context, env *Env, from Origin, msg protocol.Envelope) (*protocol.Envelope, error) {
	ms, err := decodeMetrics(msg)
	if err != nil {
		return nil, err
	}
	env.Cache.Put(ms.Platform, ms)
	slog.Info("router: summary requested from page", "platform", ms.Platform, "context", from.Context)
	return nil, nil
}

func handleGetMetrics(_ context.Context, env *Env, _ Origin, msg protocol.Envelope) (*protocol.Envelope, error) {
	reply, err := protocol.Reply(msg, protocol.MetricsMap(env.Cache.All()))
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

func handleAnalyzeTab(ctx context.Context, env *Env, _ Origin, msg protocol.Envelope) (*protocol.Envelope, error) {
	sess, ok := env.Sessions.Active()
	if !ok {
		return nil, ErrNoActiveContext
	}
	req, err := protocol.New(protocol.ExtractMetrics, nil)
	if err != nil {
		return nil, err
	}
	slog.Debug("router: relaying analyze request", "context", sess.ID(), "url", sess.URL(), "id", req.ID)

	resp, err := env.Sessions.Request(ctx, sess.ID(), req)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("router: extractor error: %s", resp.Error)
	}

	var result protocol.AnalyzeResult
	if err := resp.Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if result.Metrics != nil {
		result.Metrics.Platform = platformOf(*result.Metrics)
		compute.Finalize(result.Metrics)
	}
	if result.Metrics.HasSignal() && result.Metrics.Platform.Valid() {
		ms := *result.Metrics
		snap := env.Cache.Put(ms.Platform, ms)
		b := indicator.For(snap.MetricSet)
		env.Indicator.SetIndicator(sess.ID(), b.Text, b.Color)
	}

	reply, err := protocol.Reply(msg, result)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// decodeMetrics reads a MetricSet payload and settles its platform. The
// derived fields and the score are recomputed from the counts; whatever
// the sender put in them is discarded.
func decodeMetrics(msg protocol.Envelope) (types.MetricSet, error) {
	var ms types.MetricSet
	if err := msg.Decode(&ms); err != nil {
		return ms, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	ms.Platform = platformOf(ms)
	if !ms.Platform.Valid() {
		return ms, fmt.Errorf("%w: unknown platform %q", ErrBadMessage, ms.Platform)
	}
	compute.Finalize(&ms)
	return ms, nil
}

func platformOf(ms types.MetricSet) types.Platform {
	if ms.Platform.Valid() {
		return ms.Platform
	}
	return types.DetectPlatform(ms.SourceURL)
}
