package resolve

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is an immutable parsed copy of a page.
type Document struct {
	URL string
	doc *goquery.Document

	text string // visible text, built lazily
}

// Parse reads an HTML document from r. pageURL is kept for provenance.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	d, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("resolve: parse html: %w", err)
	}
	return &Document{URL: pageURL, doc: d}, nil
}

// ParseString is Parse over an in-memory string.
func ParseString(s, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(s), pageURL)
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.doc.Nodes[0]
}

// Selection returns the goquery selection rooted at the document.
func (d *Document) Selection() *goquery.Selection {
	return d.doc.Selection
}

// Text returns the visible text of the whole document.
func (d *Document) Text() string {
	if d.text == "" {
		d.text = VisibleText(d.Root())
	}
	return d.text
}

// skipText lists elements whose content is never rendered as text.
var skipText = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
}

// VisibleText concatenates the text under n, separating text nodes with a
// single space and skipping non-rendered elements.
func VisibleText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if skipText[n.Data] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// OwnText returns only the text nodes that are direct children of n.
func OwnText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Attr returns the value of the named attribute on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}
