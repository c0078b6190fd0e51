// Package ws implements the coordinator's websocket endpoints.
//
// Hub serves /ws/extractor. Each agent connects with its page URL in the
// `url` query parameter and becomes a router session; the most recently
// active session is the one ANALYZE_TAB targets. Inbound envelopes go
// through router.Handle and replies are written back on the same
// connection. When the connection drops the session is removed and any
// request still waiting on it fails with router.ErrContextGone.
//
// Stream serves /ws/stream. It sends the snapshot cache immediately on
// connect and then on every tick:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/metrics */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level.
package ws
