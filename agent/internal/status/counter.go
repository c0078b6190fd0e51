package status

import (
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/flowpulse/flowpulse/agent/internal/resolve"
)

// Category is a status bucket and the terms that identify it.
type Category struct {
	Name     string
	Synonyms []string

	// Binary enables the toggle strategy. Checked is the toggle state that
	// means membership (false for "inactive", true for "active").
	Binary  bool
	Checked bool
}

// Strategy names reported in Tally.Strategy.
const (
	StrategyAttribute = "status-attribute"
	StrategyLabel     = "accessible-label"
	StrategyText      = "class-or-text"
	StrategyToggle    = "toggle-state"
)

// DefaultStatusAttrs are the attribute names read by the first strategy.
var DefaultStatusAttrs = []string{"data-status", "data-state", "data-test-status", "status"}

const toggleSelector = `[role="switch"], input[type="checkbox"], [aria-checked]`

// Tally is the outcome of one Count.
type Tally struct {
	Count    int
	Strategy string
}

// Counter counts items in a document.
type Counter struct {
	resolver    *resolve.Resolver
	rows        resolve.Chain
	statusAttrs []string
}

// NewCounter returns a Counter. rows, when non-empty, locates one node per
// item so that each item is counted once.
func NewCounter(r *resolve.Resolver, rows resolve.Chain) *Counter {
	return &Counter{resolver: r, rows: rows, statusAttrs: DefaultStatusAttrs}
}

// Count returns the number of items in cat.
func (c *Counter) Count(doc *resolve.Document, cat Category) int {
	return c.Tally(doc, cat).Count
}

// Tally is Count that also reports which strategy produced the total.
func (c *Counter) Tally(doc *resolve.Document, cat Category) Tally {
	m := newMatcher(cat, c.statusAttrs)
	if m == nil {
		return Tally{}
	}

	var rows []*html.Node
	if len(c.rows) > 0 {
		if col, ok := c.resolver.ResolveAll(doc, c.rows); ok {
			rows = col.Nodes
		}
	}

	strategies := []struct {
		name  string
		match func(*html.Node) bool
	}{
		{StrategyAttribute, m.attribute},
		{StrategyLabel, m.label},
		{StrategyText, m.classOrText},
	}
	for _, s := range strategies {
		var n int
		if rows != nil {
			n = countRows(rows, s.match)
		} else {
			n = countOutermost(doc.Root(), s.match)
		}
		if n > 0 {
			return Tally{Count: n, Strategy: s.name}
		}
	}

	if cat.Binary {
		if n := c.countToggles(doc, rows, cat.Checked); n > 0 {
			return Tally{Count: n, Strategy: StrategyToggle}
		}
	}
	return Tally{}
}

// countRows counts rows that contain at least one element satisfying match.
func countRows(rows []*html.Node, match func(*html.Node) bool) int {
	n := 0
	for _, row := range rows {
		if anyElement(row, match) {
			n++
		}
	}
	return n
}

// countOutermost counts matching elements, ignoring those nested inside an
// element that already matched.
func countOutermost(root *html.Node, match func(*html.Node) bool) int {
	n := 0
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && match(node) {
			n++
			return
		}
		for ch := node.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(root)
	return n
}

func anyElement(root *html.Node, match func(*html.Node) bool) bool {
	if root.Type == html.ElementNode && match(root) {
		return true
	}
	for ch := root.FirstChild; ch != nil; ch = ch.NextSibling {
		if anyElement(ch, match) {
			return true
		}
	}
	return false
}

func (c *Counter) countToggles(doc *resolve.Document, rows []*html.Node, want bool) int {
	if rows == nil {
		toggles, err := c.resolver.Select(doc.Root(), toggleSelector)
		if err != nil {
			slog.Debug("status: toggle selector failed", "err", err)
			return 0
		}
		n := 0
		for _, t := range toggles {
			if checked(t) == want {
				n++
			}
		}
		return n
	}

	n := 0
	for _, row := range rows {
		toggles, err := c.resolver.Select(row, toggleSelector)
		if err != nil || len(toggles) == 0 {
			continue
		}
		// The first toggle in a row is its activation switch.
		if checked(toggles[0]) == want {
			n++
		}
	}
	return n
}

// checked reads the on/off state of a switch-like element.
func checked(n *html.Node) bool {
	if v, ok := resolve.Attr(n, "aria-checked"); ok {
		return strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if _, ok := resolve.Attr(n, "checked"); ok {
		return true
	}
	for _, tok := range classTokens(n) {
		if tok == "is-checked" || tok == "checked" {
			return true
		}
	}
	return false
}

// --- matching ---------------------------------------------------------------

type matcher struct {
	attrs    []string
	synonyms map[string]bool
	word     *regexp.Regexp
}

func newMatcher(cat Category, attrs []string) *matcher {
	m := &matcher{attrs: attrs, synonyms: make(map[string]bool)}
	var alts []string
	for _, s := range cat.Synonyms {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || m.synonyms[s] {
			continue
		}
		m.synonyms[s] = true
		alts = append(alts, regexp.QuoteMeta(s))
	}
	if len(alts) == 0 {
		return nil
	}
	m.word = regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
	return m
}

func (m *matcher) attribute(n *html.Node) bool {
	for _, key := range m.attrs {
		if v, ok := resolve.Attr(n, key); ok && m.synonyms[strings.ToLower(strings.TrimSpace(v))] {
			return true
		}
	}
	return false
}

func (m *matcher) label(n *html.Node) bool {
	for _, key := range []string{"aria-label", "title"} {
		if v, ok := resolve.Attr(n, key); ok && m.word.MatchString(v) {
			return true
		}
	}
	return false
}

func (m *matcher) classOrText(n *html.Node) bool {
	for _, tok := range classTokens(n) {
		for _, part := range strings.FieldsFunc(tok, notLetter) {
			if m.synonyms[part] {
				return true
			}
		}
	}
	return m.word.MatchString(resolve.OwnText(n))
}

func classTokens(n *html.Node) []string {
	v, _ := resolve.Attr(n, "class")
	return strings.Fields(strings.ToLower(v))
}

func notLetter(r rune) bool {
	return !(r >= 'a' && r <= 'z')
}
