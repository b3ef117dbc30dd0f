package markdown

import (
	"strings"
	"testing"
)

func TestRenderPlainTextSingleParagraph(t *testing.T) {
	got := Render("1 < 2 & 3 > 2")
	want := "<p>1 &lt; 2 &amp; 3 &gt; 2</p>"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRenderScenarioBoldItalic(t *testing.T) {
	got := Render("**bold** and _italic_")
	want := "<p><strong>bold</strong> and <em>italic</em></p>"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRenderHeadings(t *testing.T) {
	got := Render("# Title\n\n### Sub")
	if !strings.Contains(got, "<h1>Title</h1>") {
		t.Errorf("missing h1 in %q", got)
	}
	if !strings.Contains(got, "<h3>Sub</h3>") {
		t.Errorf("missing h3 in %q", got)
	}
}

func TestRenderHorizontalRule(t *testing.T) {
	got := Render("above\n---\nbelow")
	want := "<p>above</p>\n<hr>\n<p>below</p>"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRenderBlockquote(t *testing.T) {
	got := Render("> first\n> second")
	want := "<blockquote>first<br>second</blockquote>"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRenderUnorderedList(t *testing.T) {
	got := Render("- one\n- two\n\ntail")
	want := "<ul><li>one</li><li>two</li></ul>\n<p>tail</p>"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRenderOrderedListIgnoresSourceNumbering(t *testing.T) {
	got := Render("3. first\n7. second")
	want := "<ol><li>first</li><li>second</li></ol>"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRenderListKindTransitionFlushes(t *testing.T) {
	got := Render("- a\n1. b")
	want := "<ul><li>a</li></ul>\n<ol><li>b</li></ol>"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRenderTable(t *testing.T) {
	got := Render("| Name | Age |\n| --- | --- |\n| Bob | <3 |")
	want := "<table><thead><tr><th>Name</th><th>Age</th></tr></thead>" +
		"<tbody><tr><td>Bob</td><td>&lt;3</td></tr></tbody></table>"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRenderTableSeparatorAlignmentColons(t *testing.T) {
	got := Render("| a | b |\n| :--- | ---: |\n| 1 | 2 |")
	if !strings.Contains(got, "<table>") {
		t.Errorf("expected table, got %q", got)
	}
}

func TestRenderTableWithoutSeparatorDegradesToParagraph(t *testing.T) {
	got := Render("| looks | like | a table |")
	if strings.Contains(got, "<table>") {
		t.Errorf("pipe line without separator must not form a table: %q", got)
	}
	if !strings.Contains(got, "<p>") {
		t.Errorf("expected paragraph fallback, got %q", got)
	}
}

func TestRenderFencedCode(t *testing.T) {
	got := Render("before\n```go\nx := \"**notbold**\" < 1\n```\nafter")
	if !strings.Contains(got, `<pre><code class="language-go">`) {
		t.Errorf("missing code fragment in %q", got)
	}
	if !strings.Contains(got, "x := &quot;**notbold**&quot; &lt; 1") {
		t.Errorf("code body not escaped verbatim in %q", got)
	}
	if strings.Contains(got, "<strong>") {
		t.Errorf("code content passed through inline formatting: %q", got)
	}
}

func TestRenderAllPlaceholdersRestored(t *testing.T) {
	raw := "```\none\n```\nmiddle\n```\ntwo\n```"
	got := Render(raw)
	if strings.Contains(got, "\x00") {
		t.Errorf("placeholder token leaked into output: %q", got)
	}
	if n := strings.Count(got, "<pre><code>"); n != 2 {
		t.Errorf("expected 2 code fragments, got %d in %q", n, got)
	}
}

func TestRenderForgedPlaceholderToken(t *testing.T) {
	got := Render("\x00CODEBLOCK0\x00\n```\nreal code\n```")
	if strings.Contains(got, "\x00") {
		t.Errorf("NUL survived escaping: %q", got)
	}
	if n := strings.Count(got, "<pre><code>"); n != 1 {
		t.Errorf("expected exactly 1 code fragment, got %d in %q", n, got)
	}
	if !strings.Contains(got, "<p>CODEBLOCK0</p>") {
		t.Errorf("forged token should degrade to plain text, got %q", got)
	}
	if !strings.Contains(got, "real code") {
		t.Errorf("fence body lost: %q", got)
	}
}

func TestFormatInlineForgedSpanToken(t *testing.T) {
	got := Render("\x00SPAN0\x00 and `real`")
	if strings.Contains(got, "\x00") {
		t.Errorf("NUL survived escaping: %q", got)
	}
	if n := strings.Count(got, "<code>"); n != 1 {
		t.Errorf("expected exactly 1 code span, got %d in %q", n, got)
	}
}

func TestRenderUnterminatedFenceIsLiteral(t *testing.T) {
	got := Render("text\n```go\nunclosed")
	if strings.Contains(got, "<pre>") {
		t.Errorf("unterminated fence must not produce a code block: %q", got)
	}
	if !strings.Contains(got, "```go") {
		t.Errorf("unterminated fence should remain literal: %q", got)
	}
}

func TestRenderEmptyInput(t *testing.T) {
	if got := Render(""); got != "" {
		t.Errorf("Render(\"\") = %q, want empty", got)
	}
}

func TestRenderMixedDocument(t *testing.T) {
	raw := "# Review plan\n\nSome `inline` text.\n\n- item **one**\n- item two\n\n> note\n\n```py\nprint(1)\n```"
	got := Render(raw)
	for _, frag := range []string{
		"<h1>Review plan</h1>",
		"<p>Some <code>inline</code> text.</p>",
		"<ul><li>item <strong>one</strong></li><li>item two</li></ul>",
		"<blockquote>note</blockquote>",
		`<pre><code class="language-py">print(1)</code></pre>`,
	} {
		if !strings.Contains(got, frag) {
			t.Errorf("missing %q in rendered output %q", frag, got)
		}
	}
}
