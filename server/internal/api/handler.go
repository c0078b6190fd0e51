package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flowpulse/flowpulse/pkg/protocol"
	"github.com/flowpulse/flowpulse/pkg/types"
	"github.com/flowpulse/flowpulse/server/internal/indicator"
	"github.com/flowpulse/flowpulse/server/internal/router"
	"github.com/flowpulse/flowpulse/server/internal/store"
)

const (
	// requestTimeout bounds how long POST /api/v1/messages waits for an
	// extractor to answer a relayed request.
	requestTimeout = 10 * time.Second
	maxBodyBytes   = 64 * 1024
)

// Handler serves the coordinator's HTTP surface: the JSON API under
// /api/v1, the Prometheus exposition at /metrics, and any websocket
// endpoints mounted through WithMount.
type Handler struct {
	rt     *router.Router
	board  *indicator.Board
	auth   func(http.Handler) http.Handler
	mounts map[string]http.Handler
	now    func() time.Time
	mux    chi.Router
}

// Option configures a Handler.
type Option func(*Handler)

// WithAuth guards everything except /api/v1/health and /metrics with mw.
func WithAuth(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.auth = mw }
}

// WithBoard exposes b at GET /api/v1/indicators.
func WithBoard(b *indicator.Board) Option {
	return func(h *Handler) { h.board = b }
}

// WithMount serves handler at pattern behind the auth middleware. Used for
// the websocket endpoints.
func WithMount(pattern string, handler http.Handler) Option {
	return func(h *Handler) { h.mounts[pattern] = handler }
}

// New builds the handler around rt.
func New(rt *router.Router, opts ...Option) http.Handler {
	h := &Handler{
		rt:     rt,
		mounts: make(map[string]http.Handler),
		now:    time.Now,
	}
	for _, o := range opts {
		o(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/v1/health", h.health)
	r.Get("/metrics", h.exposition)

	r.Group(func(r chi.Router) {
		if h.auth != nil {
			r.Use(h.auth)
		}
		r.Get("/api/v1/metrics", h.listMetrics)
		r.Get("/api/v1/metrics/{platform}", h.getMetrics)
		r.Get("/api/v1/diagnostics/{platform}", h.diagnostics)
		r.Get("/api/v1/indicators", h.indicators)
		r.Post("/api/v1/messages", h.message)
		for pattern, mh := range h.mounts {
			r.Handle(pattern, mh)
		}
	})

	h.mux = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: liveness plus cache and session counts.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	env := h.rt.Env()
	resp := HealthResponse{
		Status:     "ok",
		Extractors: env.Sessions.Len(),
	}
	for _, snap := range env.Cache.All() {
		resp.PlatformCount++
		if env.Cache.IsStale(snap) {
			resp.StaleCount++
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// listMetrics returns GET /api/v1/metrics: every cached platform, stale
// entries included and flagged.
func (h *Handler) listMetrics(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, BuildMetricsResponse(h.rt.Env().Cache, h.now()))
}

// getMetrics returns GET /api/v1/metrics/{platform}.
func (h *Handler) getMetrics(w http.ResponseWriter, r *http.Request) {
	pr, ok := h.lookup(w, r)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, pr)
}

// diagnostics returns GET /api/v1/diagnostics/{platform}.
func (h *Handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	pr, ok := h.lookup(w, r)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, pr.Diagnostics)
}

// indicators returns GET /api/v1/indicators: the badge per extractor context.
func (h *Handler) indicators(w http.ResponseWriter, _ *http.Request) {
	resp := IndicatorsResponse{Badges: map[string]indicator.Badge{}}
	if h.board != nil {
		resp.Badges = h.board.All()
	}
	jsonResp(w, http.StatusOK, resp)
}

// message accepts POST /api/v1/messages: one envelope in, the reply
// envelope out. The caller is always the summary view, so extractor kinds
// are refused with 400. Fire-and-forget kinds answer 202 with no body.
func (h *Handler) message(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "unreadable body")
		return
	}
	var msg protocol.Envelope
	if err := json.Unmarshal(body, &msg); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid envelope")
		return
	}
	if !protocol.Known(msg.Type) {
		jsonErr(w, http.StatusBadRequest, "unknown message type")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	reply, err := h.rt.Handle(ctx, router.Origin{}, msg)
	if err != nil {
		jsonResp(w, statusFor(err), protocol.ReplyError(msg, err))
		return
	}
	if reply == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	jsonResp(w, http.StatusOK, reply)
}

// --- response builders ------------------------------------------------------

// BuildMetricsResponse renders the whole cache, platforms in a fixed order.
// The stream endpoint pushes the same document.
func BuildMetricsResponse(cache *store.Store, now time.Time) MetricsResponse {
	all := cache.All()
	resp := MetricsResponse{
		Platforms:   make([]PlatformResponse, 0, len(all)),
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
	for _, p := range sortedPlatforms(all) {
		resp.Platforms = append(resp.Platforms, platformResponse(cache, all[p], now))
	}
	return resp
}

func platformResponse(cache *store.Store, snap types.Snapshot, now time.Time) PlatformResponse {
	ms := snap.MetricSet
	stale := cache.IsStale(snap)
	pr := PlatformResponse{
		Platform:    ms.Platform,
		DisplayName: ms.Platform.DisplayName(),
		Metrics:     ms,
		StoredAt:    snap.StoredAt.UTC().Format(time.RFC3339),
		AgeSeconds:  cache.Age(snap).Seconds(),
		Stale:       stale,
		Partial:     ms.Partial(),
		Diagnostics: computeDiagnostics(snap, stale, now),
	}
	if score, ok := types.Value(ms.HealthScore); ok {
		pr.Color = types.ColorFor(score)
	}
	return pr
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (PlatformResponse, bool) {
	p := types.Platform(chi.URLParam(r, "platform"))
	if !p.Valid() {
		jsonErr(w, http.StatusNotFound, "unknown platform")
		return PlatformResponse{}, false
	}
	snap, ok := h.rt.Env().Cache.Get(p)
	if !ok {
		jsonErr(w, http.StatusNotFound, "no data available")
		return PlatformResponse{}, false
	}
	return platformResponse(h.rt.Env().Cache, snap, h.now()), true
}

// --- helpers ----------------------------------------------------------------

// statusFor maps a router error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, router.ErrBadMessage):
		return http.StatusBadRequest
	case errors.Is(err, router.ErrNoActiveContext):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func sortedPlatforms(m map[types.Platform]types.Snapshot) []types.Platform {
	out := make([]types.Platform, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func jsonResp(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response", "err", err)
	}
}

func jsonErr(w http.ResponseWriter, status int, msg string) {
	jsonResp(w, status, errorResponse{Error: msg})
}
