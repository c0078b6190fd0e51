// Package status counts dashboard items by status category.
//
// A Category is a name plus the synonyms a dashboard may use for it
// ("error", "failed", "needs attention"). Counter tries four strategies in
// trust order and accepts the first that finds anything:
//
//  1. a status attribute (data-status, data-state, ...) equal to a synonym
//  2. an aria-label or title containing a synonym as a word
//  3. a class name token or the element's own text containing a synonym
//  4. for binary categories only, the checked state of a toggle
//
// Totals from different strategies are never added together. When the
// Counter knows how to find item rows, each row counts at most once no
// matter how many of its descendants or synonyms match; otherwise matched
// elements nested inside another matched element are ignored.
package status
