// Package shipper is the agent's link to the coordinator.
//
// Shipper.Send() is non-blocking: envelopes (METRICS_EXTRACTED,
// METRICS_EXTRACTION_FAILED, OPEN_POPUP) are placed in an in-memory channel
// sized by link.buffer_size. When the buffer is full the oldest entry is
// evicted so the latest page state is always preserved.
//
// Shipper.Run() dials ws://<coordinator>/ws/extractor?url=<page url>, drains
// the buffer and forwards EXTRACT_METRICS requests to Requests(). It
// reconnects with truncated exponential backoff (1s→60s, ±25% jitter) on
// dial, read or write errors.
//
// Reply() answers a request on the live connection only and returns
// ErrNotConnected otherwise. Auth: API key header, or none.
//
// The dialFn field is injectable for testing.
package shipper
