// Package resolve evaluates ordered fallback chains of lookup descriptors
// against a parsed HTML document.
//
// A Chain lists descriptors in trust order: machine hooks (data-testid),
// then accessibility attributes, then structural selectors or XPath, then
// free-text phrases. Resolve returns the first descriptor that yields a
// non-empty value; ResolveAll returns the first that yields a non-empty node
// collection. A descriptor whose pattern does not compile, or whose
// evaluation panics, is logged at debug level and skipped.
//
// Descriptor kinds:
//   - css: cascadia selector, value is the element text or Attr
//   - xpath: antchfx XPath expression, same value rules as css
//   - text: regular expression over the visible document text; capture
//     group 1 is the value when present
//   - near: label phrase; the value is the text that follows the label
//     inside its enclosing block, which must contain a digit
package resolve
