// Package compute derives the 0–100 health score from a MetricSet.
//
// Score starts at 100 and subtracts three independently capped penalties:
//
//	usage    30 if usagePercent > 90, 15 if > 75, 5 if > 50
//	errors   min(errorRate * 2, 40)
//	stalled  share of paused/inactive items, weighted per platform:
//	         make  min(100 * paused / total, 20)
//	         n8n   min(50 * inactive / total, 15)
//
// A penalty whose input field is absent is not applied, so a MetricSet with
// nothing in it scores 100. Callers that need to tell "healthy" from "no
// data" must look at the fields, not the score.
//
// The result is max(0, round(100 - penalties)). Score is a pure function of
// the numeric fields.
package compute
