// Package api implements the coordinator's HTTP surface.
//
// New(router, opts...) returns an http.Handler (chi) that serves:
//
//	GET  /api/v1/health                  liveness, extractor and cache counts
//	GET  /api/v1/metrics                 every cached platform, stale ones flagged
//	GET  /api/v1/metrics/{platform}      one platform; 404 when nothing is cached
//	GET  /api/v1/diagnostics/{platform}  human-readable hints, critical first
//	GET  /api/v1/indicators              ambient badge per extractor context
//	POST /api/v1/messages                one protocol envelope in, its reply out
//	GET  /metrics                        Prometheus text exposition
//
// Everything except /api/v1/health and /metrics sits behind the auth
// middleware passed with WithAuth, as do the websocket endpoints mounted
// with WithMount.
//
// POST /api/v1/messages speaks for the summary view. It answers request
// kinds with 200 and the reply envelope; extractor kinds only arrive over
// the extractor websocket and are refused here. Router failures come back
// as an error envelope: 400 for a bad or misdirected message, 503 when no
// extractor is connected, 504 on timeout and 502 when the extractor went
// away or reported an error.
package api
