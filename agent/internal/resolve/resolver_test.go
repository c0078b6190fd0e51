package resolve

import (
	"errors"
	"testing"
)

const fixture = `<html><head><script>var total = "999 scenarios";</script></head>
<body>
  <div class="usage" data-testid="ops-usage" aria-label="Operations 1,234 of 10,000">
    <span class="label">Operations</span>
    <span class="value">1,234 of 10,000</span>
  </div>
  <section>
    <h2>Plan</h2><p>Created 3 Mar. <b>Core</b></p>
  </section>
  <ul class="list">
    <li class="row" data-status="active">A</li>
    <li class="row" data-status="error">B</li>
    <li class="row" data-status="paused">C</li>
  </ul>
  <p>Team: <strong>Acme Ops</strong></p>
</body></html>`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := ParseString(s, "https://eu1.make.com/1/scenarios")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestResolve_TrustOrder(t *testing.T) {
	doc := mustParse(t, fixture)
	r := New()

	// Both descriptors match; the first one must win.
	chain := Chain{
		CSS("testid", `[data-testid="ops-usage"]`).WithAttr("aria-label"),
		CSS("value-class", ".usage .value"),
	}
	m, ok := r.Resolve(doc, chain)
	if !ok {
		t.Fatal("Resolve: expected match")
	}
	if m.Strategy != "testid" {
		t.Errorf("strategy: got %q, want testid", m.Strategy)
	}
	if m.Text != "Operations 1,234 of 10,000" {
		t.Errorf("text: got %q", m.Text)
	}

	// Reversed order, the other descriptor wins.
	m, _ = r.Resolve(doc, Chain{chain[1], chain[0]})
	if m.Strategy != "value-class" || m.Text != "1,234 of 10,000" {
		t.Errorf("reversed chain: got %+v", m)
	}
}

func TestResolve_MalformedDescriptorsAreSkipped(t *testing.T) {
	doc := mustParse(t, fixture)
	r := New()

	chain := Chain{
		CSS("bad-css", `div[data-testid=`),
		XPath("bad-xpath", `//div[@class=`),
		Text("bad-regexp", `(unclosed`),
		{Name: "bad-kind", Kind: "jsonpath", Pattern: "$.x"},
		CSS("missing", `.does-not-exist`),
		XPath("good-xpath", `//div[@data-testid="ops-usage"]/span[@class="value"]`),
	}
	m, ok := r.Resolve(doc, chain)
	if !ok {
		t.Fatal("Resolve: expected the last descriptor to match")
	}
	if m.Strategy != "good-xpath" || m.Text != "1,234 of 10,000" {
		t.Errorf("got %+v", m)
	}
}

func TestResolve_AllFailIsAbsent(t *testing.T) {
	doc := mustParse(t, fixture)
	chain := Chain{
		CSS("missing", `.nope`),
		Text("missing-text", `Executions: (\d+)`),
		Near("missing-label", "Workflows"),
	}
	if m, ok := New().Resolve(doc, chain); ok {
		t.Errorf("expected absent, got %+v", m)
	}
	if _, ok := New().Resolve(doc, nil); ok {
		t.Error("empty chain: expected absent")
	}
}

func TestResolve_EmptyTextDoesNotCountAsMatch(t *testing.T) {
	doc := mustParse(t, `<div class="v">   </div><div class="w">7</div>`)
	m, ok := New().Resolve(doc, Chain{CSS("blank", ".v"), CSS("filled", ".w")})
	if !ok || m.Strategy != "filled" {
		t.Errorf("got %+v, %v", m, ok)
	}
}

func TestResolve_TextCaptureGroup(t *testing.T) {
	doc := mustParse(t, fixture)
	m, ok := New().Resolve(doc, Chain{Text("team", `Team:\s*([A-Za-z ]+)`)})
	if !ok {
		t.Fatal("expected match")
	}
	if m.Text != "Acme Ops" {
		t.Errorf("text: got %q", m.Text)
	}
	if m.Node != nil {
		t.Error("text descriptor should not carry a node")
	}
}

func TestResolve_TextIgnoresScripts(t *testing.T) {
	doc := mustParse(t, fixture)
	if _, ok := New().Resolve(doc, Chain{Text("scripted", `(\d+) scenarios`)}); ok {
		t.Error("matched text inside <script>")
	}
}

func TestResolve_Near(t *testing.T) {
	doc := mustParse(t, fixture)
	m, ok := New().Resolve(doc, Chain{Near("ops-label", "operations")})
	if !ok {
		t.Fatal("expected match")
	}
	if m.Text != "1,234 of 10,000" {
		t.Errorf("text: got %q", m.Text)
	}

	// The label has no number after it within reach.
	if _, ok := New().Resolve(doc, Chain{Near("team", "Team:")}); ok {
		t.Error("label without a trailing number should not match")
	}
}

func TestResolveAll_FirstNonEmptyCollection(t *testing.T) {
	doc := mustParse(t, fixture)
	chain := Chain{
		CSS("testid-rows", `[data-testid="scenario-row"]`),
		CSS("class-rows", `ul.list > li.row`),
		XPath("xpath-rows", `//li`),
	}
	c, ok := New().ResolveAll(doc, chain)
	if !ok {
		t.Fatal("expected collection")
	}
	if c.Strategy != "class-rows" {
		t.Errorf("strategy: got %q", c.Strategy)
	}
	if len(c.Nodes) != 3 {
		t.Errorf("nodes: got %d, want 3", len(c.Nodes))
	}
}

func TestResolveAll_TextOwners(t *testing.T) {
	doc := mustParse(t, `<ul><li>Workflow A <i>x</i></li><li>Workflow B</li><li>Other</li></ul>`)
	c, ok := New().ResolveAll(doc, Chain{Text("by-text", `^Workflow`)})
	if !ok || len(c.Nodes) != 2 {
		t.Fatalf("got %d nodes (ok=%v), want 2", len(c.Nodes), ok)
	}
}

func TestSelect_BadSelector(t *testing.T) {
	doc := mustParse(t, fixture)
	if _, err := New().Select(doc.Root(), "li[["); err == nil {
		t.Error("expected compile error")
	}
}

func TestValue_UnsupportedKind(t *testing.T) {
	doc := mustParse(t, fixture)
	_, err := New().value(doc, Descriptor{Name: "x", Kind: "nope"})
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("err: got %v, want ErrUnsupportedKind", err)
	}
}

func TestVisibleText(t *testing.T) {
	doc := mustParse(t, `<div>a<style>.x{}</style> <span>b</span>
	c</div>`)
	if got := doc.Text(); got != "a b c" {
		t.Errorf("Text: got %q", got)
	}
}
