package resolve

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// Kind selects how a Descriptor's Pattern is interpreted.
type Kind string

const (
	KindCSS   Kind = "css"
	KindXPath Kind = "xpath"
	KindText  Kind = "text"
	KindNear  Kind = "near"
)

// Descriptor is one fallback strategy for locating a value.
type Descriptor struct {
	// Name identifies the strategy in logs and in Match.Strategy.
	Name    string
	Kind    Kind
	Pattern string
	// Attr, when set on a css or xpath descriptor, reads the attribute value
	// instead of the element text.
	Attr string
}

// Chain is an ordered list of descriptors, most trusted first.
type Chain []Descriptor

// CSS returns a selector descriptor.
func CSS(name, selector string) Descriptor {
	return Descriptor{Name: name, Kind: KindCSS, Pattern: selector}
}

// XPath returns an XPath descriptor.
func XPath(name, expr string) Descriptor {
	return Descriptor{Name: name, Kind: KindXPath, Pattern: expr}
}

// Text returns a free-text regular expression descriptor.
func Text(name, pattern string) Descriptor {
	return Descriptor{Name: name, Kind: KindText, Pattern: pattern}
}

// Near returns a label-proximity descriptor.
func Near(name, label string) Descriptor {
	return Descriptor{Name: name, Kind: KindNear, Pattern: label}
}

// WithAttr returns a copy of d that reads attr instead of element text.
func (d Descriptor) WithAttr(attr string) Descriptor {
	d.Attr = attr
	return d
}

// Match is the value found by Resolve.
type Match struct {
	Strategy string
	Text     string
	// Node is the element the value was read from. It is nil for text
	// descriptors, which match against the flattened document text.
	Node *html.Node
}

// Collection is the node set found by ResolveAll.
type Collection struct {
	Strategy string
	Nodes    []*html.Node
}

// ErrUnsupportedKind is reported for a descriptor with an unknown Kind.
var ErrUnsupportedKind = errors.New("resolve: unsupported descriptor kind")

// nearDepth bounds how many ancestors of a label are searched for a value.
const nearDepth = 3

// Resolver evaluates chains. Compiled patterns are cached, so one Resolver
// should be shared by every chain of an extractor.
type Resolver struct {
	mu    sync.Mutex
	css   map[string]cascadia.Selector
	xpath map[string]*xpath.Expr
	re    map[string]*regexp.Regexp
}

// New returns an empty Resolver.
func New() *Resolver {
	return &Resolver{
		css:   make(map[string]cascadia.Selector),
		xpath: make(map[string]*xpath.Expr),
		re:    make(map[string]*regexp.Regexp),
	}
}

// Resolve returns the value of the first descriptor in chain that matches.
func (r *Resolver) Resolve(doc *Document, chain Chain) (Match, bool) {
	for _, d := range chain {
		m, err := r.value(doc, d)
		if err != nil {
			slog.Debug("resolve: locator skipped", "strategy", d.Name, "err", err)
			continue
		}
		if m.Text != "" {
			m.Strategy = d.Name
			return m, true
		}
	}
	return Match{}, false
}

// ResolveAll returns the nodes of the first descriptor in chain that
// matches at least one node.
func (r *Resolver) ResolveAll(doc *Document, chain Chain) (Collection, bool) {
	for _, d := range chain {
		nodes, err := r.nodes(doc, d)
		if err != nil {
			slog.Debug("resolve: locator skipped", "strategy", d.Name, "err", err)
			continue
		}
		if len(nodes) > 0 {
			return Collection{Strategy: d.Name, Nodes: nodes}, true
		}
	}
	return Collection{}, false
}

// Select returns every element under root matching a CSS selector, using
// the compiled-pattern cache. A bad selector yields an error, never a panic.
func (r *Resolver) Select(root *html.Node, selector string) (nodes []*html.Node, err error) {
	defer recoverLocator(&err)
	sel, err := r.compileCSS(selector)
	if err != nil {
		return nil, err
	}
	return sel.MatchAll(root), nil
}

// --- evaluation -------------------------------------------------------------

func (r *Resolver) value(doc *Document, d Descriptor) (m Match, err error) {
	defer recoverLocator(&err)

	switch d.Kind {
	case KindCSS, KindXPath:
		nodes, err := r.nodes(doc, d)
		if err != nil {
			return Match{}, err
		}
		for _, n := range nodes {
			if v := nodeValue(n, d.Attr); v != "" {
				return Match{Text: v, Node: n}, nil
			}
		}
		return Match{}, nil

	case KindText:
		re, err := r.compileRe(d.Pattern)
		if err != nil {
			return Match{}, err
		}
		sub := re.FindStringSubmatch(doc.Text())
		if sub == nil {
			return Match{}, nil
		}
		v := sub[0]
		if len(sub) > 1 {
			v = sub[1]
		}
		return Match{Text: strings.TrimSpace(v)}, nil

	case KindNear:
		n, after := near(doc.Root(), d.Pattern)
		return Match{Text: after, Node: n}, nil
	}
	return Match{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, d.Kind)
}

func (r *Resolver) nodes(doc *Document, d Descriptor) (out []*html.Node, err error) {
	defer recoverLocator(&err)

	switch d.Kind {
	case KindCSS:
		sel, err := r.compileCSS(d.Pattern)
		if err != nil {
			return nil, err
		}
		return sel.MatchAll(doc.Root()), nil

	case KindXPath:
		expr, err := r.compileXPath(d.Pattern)
		if err != nil {
			return nil, err
		}
		return htmlquery.QuerySelectorAll(doc.Root(), expr), nil

	case KindText:
		re, err := r.compileRe(d.Pattern)
		if err != nil {
			return nil, err
		}
		return textOwners(doc.Root(), re), nil

	case KindNear:
		if n, after := near(doc.Root(), d.Pattern); after != "" {
			return []*html.Node{n}, nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, d.Kind)
}

// nodeValue returns the trimmed attribute value or visible text of n.
func nodeValue(n *html.Node, attr string) string {
	if attr != "" {
		v, _ := Attr(n, attr)
		return strings.TrimSpace(v)
	}
	return VisibleText(n)
}

// textOwners returns the elements whose own text matches re, in document
// order and without duplicates.
func textOwners(root *html.Node, re *regexp.Regexp) []*html.Node {
	var out []*html.Node
	seen := make(map[*html.Node]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipText[n.Data] {
			return
		}
		if n.Type == html.TextNode && n.Parent != nil && re.MatchString(n.Data) && !seen[n.Parent] {
			seen[n.Parent] = true
			out = append(out, n.Parent)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// near finds the first text node containing label (case-insensitive) and
// returns the enclosing block together with the text that follows the label
// inside it. The search widens up to nearDepth ancestors until the trailing
// text contains a digit.
func near(root *html.Node, label string) (*html.Node, string) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return nil, ""
	}
	var hit *html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && skipText[n.Data] {
			return false
		}
		if n.Type == html.TextNode && strings.Contains(strings.ToLower(n.Data), label) {
			hit = n
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	if !walk(root) {
		return nil, ""
	}

	block := hit.Parent
	for i := 0; i < nearDepth && block != nil; i++ {
		text := VisibleText(block)
		lower := strings.ToLower(text)
		if len(lower) != len(text) {
			text = lower
		}
		if idx := strings.Index(lower, label); idx >= 0 {
			after := strings.TrimSpace(text[idx+len(label):])
			if strings.ContainsAny(after, "0123456789") {
				return block, after
			}
		}
		block = block.Parent
	}
	return nil, ""
}

// --- compile cache ----------------------------------------------------------

func (r *Resolver) compileCSS(p string) (cascadia.Selector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.css[p]; ok {
		return s, nil
	}
	s, err := cascadia.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", p, err)
	}
	r.css[p] = s
	return s, nil
}

func (r *Resolver) compileXPath(p string) (*xpath.Expr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.xpath[p]; ok {
		return e, nil
	}
	e, err := xpath.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("compile xpath %q: %w", p, err)
	}
	r.xpath[p] = e
	return e, nil
}

func (r *Resolver) compileRe(p string) (*regexp.Regexp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if re, ok := r.re[p]; ok {
		return re, nil
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("compile regexp %q: %w", p, err)
	}
	r.re[p] = re
	return re, nil
}

// recoverLocator converts a panic during evaluation into an error so one bad
// descriptor cannot take down the extraction.
func recoverLocator(err *error) {
	if v := recover(); v != nil {
		*err = fmt.Errorf("locator panic: %v", v)
	}
}
