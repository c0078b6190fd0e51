// Package poll drives repeated extraction attempts against a page that may
// still be rendering.
//
// Controller is a small state machine:
//
//	idle ──Start──▶ attempting ──signal found──▶ succeeded
//	                    │
//	                    └──max attempts──▶ exhausted
//
// Reset (a client-side navigation) moves any state back to attempting after
// a settle delay. Delays between failed attempts grow by a constant factor
// up to a ceiling; the defaults are 500ms × 1.5 capped at 3s over 30
// attempts.
//
// There is never more than one scheduled attempt. Each schedule is tagged
// with a generation number, and Reset or Stop bump the generation, so a
// timer that already fired, or an attempt already running, cannot act on
// the new sequence.
package poll
