// Package types defines the metric shapes shared by the agent, the
// coordinator and the summary CLI.
//
// MetricSet numeric fields are pointers: nil means the value could not be
// found on the page, which is different from a measured zero. JSON encodes
// an absent field as null.
package types
