// Package router dispatches cross-context messages inside the coordinator.
//
// Every handler receives an explicit *Env carrying the snapshot cache, the
// ambient indicator and the session registry; nothing is reached through
// package globals.
//
//	METRICS_EXTRACTED          cache.Put + indicator set      (from extractor)
//	METRICS_EXTRACTION_FAILED  indicator cleared              (from extractor)
//	OPEN_POPUP                 cache.Put only                 (from extractor)
//	GET_METRICS                reply with the snapshot map    (from summary)
//	ANALYZE_TAB                EXTRACT_METRICS to the active  (from summary)
//	                           extractor, relay its answer
//
// A kind arriving from the other side fails with ErrBadMessage, as does a
// reply from anyone but the session the request went to. Incoming metric
// sets have their derived fields and score recomputed before they are
// cached.
//
// The active context is the extractor session that most recently connected
// or sent a message. ANALYZE_TAB has no timeout of its own: it ends when the
// extractor replies, when its session disconnects (ErrContextGone), or when
// the caller's context ends. Failed deliveries are reported, never retried.
package router
