// Package runner is the extractor context's event loop.
//
// A Runner owns one page Source, one poll Controller and the link to the
// coordinator. Everything that changes state happens on the goroutine
// running Run:
//
//   - a navigation event re-arms the controller (or stops it when the new
//     page is not a supported platform)
//   - a finished attempt sequence becomes METRICS_EXTRACTED or
//     METRICS_EXTRACTION_FAILED
//   - an EXTRACT_METRICS request runs one immediate attempt and replies
//     with the MetricSet or a failure marker
//   - the overlay's popup click becomes OPEN_POPUP with the latest
//     MetricSet
//
// Attempts themselves run on the controller's timer goroutine and only read
// a DOM snapshot, so they never touch loop state.
package runner
