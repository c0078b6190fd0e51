// Package extract reads a MetricSet out of a Make or n8n dashboard page.
//
// Each platform is described by a Profile: one fallback chain per field,
// the row locators used to count items, and the status categories. The
// chains are data, so updating a selector after a dashboard release does not
// touch the extraction logic in extractor.go.
//
// Extract never fails. Fields that no chain could resolve stay nil, and a
// panic anywhere in the pipeline yields an all-absent MetricSet.
package extract
