// Package markdown renders raw assistant output into an HTML-safe fragment.
//
// The input is escaped before any markup recognition, so model output can
// never inject raw HTML. Fenced code regions are lifted out behind
// placeholder tokens, the remainder runs through a single-pass line
// classifier over a closed block type, and the placeholders are restored at
// the end. Rendering never fails: malformed markup degrades to literal text.
package markdown

import (
	"fmt"
	"regexp"
	"strings"
)

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockRule
	blockQuote
	blockTable
	blockList
	blockCode
)

type listKind int

const (
	listNone listKind = iota
	listUnordered
	listOrdered
)

// block is the parser-internal tagged variant. Only the fields relevant to
// its kind are populated.
type block struct {
	kind   blockKind
	level  int        // heading level 1-6
	text   string     // paragraph / heading text, or placeholder token
	lines  []string   // blockquote lines
	list   listKind   // list variant
	items  []string   // list item texts
	header []string   // table header cells
	rows   [][]string // table body rows
}

var (
	headingRe     = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	ruleRe        = regexp.MustCompile(`^\s*(-{3,}|\*{3,}|_{3,})\s*$`)
	quoteRe       = regexp.MustCompile(`^&gt;\s?(.*)$`)
	unorderedRe   = regexp.MustCompile(`^[-*]\s+(.*)$`)
	orderedRe     = regexp.MustCompile(`^\d+[.)]\s+(.*)$`)
	separatorCell = regexp.MustCompile(`^:?-+:?$`)
	placeholderRe = regexp.MustCompile(`^\x00CODEBLOCK(\d+)\x00$`)
)

// htmlEscaper also strips NUL: the placeholder tokens are NUL-delimited,
// so removing the byte here guarantees input text can never collide with
// a real placeholder.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"\x00", "",
)

// Render turns raw assistant text into a structured HTML-safe fragment.
// It never returns an error; anything it cannot classify falls through to
// paragraph handling.
func Render(raw string) string {
	escaped := htmlEscaper.Replace(raw)
	text, fragments := extractFences(escaped)

	blocks := parseBlocks(text)
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, renderBlock(b))
	}
	out := strings.Join(parts, "\n")

	// One final pass restores the protected code fragments.
	for i, frag := range fragments {
		out = strings.Replace(out, codePlaceholder(i), frag, 1)
	}
	return out
}

func codePlaceholder(i int) string {
	return fmt.Sprintf("\x00CODEBLOCK%d\x00", i)
}

// extractFences replaces each balanced triple-backtick region with a
// placeholder token and returns the rendered code fragments indexed by
// occurrence order. An unterminated fence at end of input is left as
// literal trailing text.
func extractFences(escaped string) (string, []string) {
	lines := strings.Split(escaped, "\n")
	var out []string
	var fragments []string

	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, "```") {
			out = append(out, lines[i])
			continue
		}

		lang := strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
		closing := -1
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "```" {
				closing = j
				break
			}
		}
		if closing < 0 {
			// No closing fence: keep the rest verbatim.
			out = append(out, lines[i:]...)
			break
		}

		body := strings.Trim(strings.Join(lines[i+1:closing], "\n"), "\n")
		fragments = append(fragments, renderCodeFragment(lang, body))
		out = append(out, codePlaceholder(len(fragments)-1))
		i = closing
	}

	return strings.Join(out, "\n"), fragments
}

func renderCodeFragment(lang, body string) string {
	if lang != "" {
		return fmt.Sprintf(`<pre><code class="language-%s">%s</code></pre>`, lang, body)
	}
	return "<pre><code>" + body + "</code></pre>"
}

// parseBlocks classifies lines by fixed precedence, accumulating list items
// and blockquote lines until a different block type flushes them.
func parseBlocks(text string) []block {
	lines := strings.Split(text, "\n")
	var blocks []block
	var open *block // the currently accumulating list or blockquote

	flush := func() {
		if open != nil {
			blocks = append(blocks, *open)
			open = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			blocks = append(blocks, block{kind: blockHeading, level: len(m[1]), text: m[2]})
			continue
		}
		if ruleRe.MatchString(line) {
			flush()
			blocks = append(blocks, block{kind: blockRule})
			continue
		}
		if m := quoteRe.FindStringSubmatch(line); m != nil {
			if open != nil && open.kind == blockQuote {
				open.lines = append(open.lines, m[1])
				continue
			}
			flush()
			open = &block{kind: blockQuote, lines: []string{m[1]}}
			continue
		}
		if tbl, consumed := parseTable(lines, i); consumed > 0 {
			flush()
			blocks = append(blocks, tbl)
			i += consumed - 1
			continue
		}
		if m := unorderedRe.FindStringSubmatch(line); m != nil {
			if open != nil && open.kind == blockList && open.list == listUnordered {
				open.items = append(open.items, m[1])
				continue
			}
			flush()
			open = &block{kind: blockList, list: listUnordered, items: []string{m[1]}}
			continue
		}
		if m := orderedRe.FindStringSubmatch(line); m != nil {
			if open != nil && open.kind == blockList && open.list == listOrdered {
				open.items = append(open.items, m[1])
				continue
			}
			flush()
			open = &block{kind: blockList, list: listOrdered, items: []string{m[1]}}
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if placeholderRe.MatchString(strings.TrimSpace(line)) {
			flush()
			blocks = append(blocks, block{kind: blockCode, text: strings.TrimSpace(line)})
			continue
		}
		flush()
		blocks = append(blocks, block{kind: blockParagraph, text: line})
	}
	flush()

	return blocks
}

// parseTable attempts a table at lines[i]. A table needs a pipe-bearing
// header line immediately followed by a separator line; all subsequent
// pipe-bearing non-blank lines are consumed as body rows. Returns the
// number of lines consumed, or zero when the lookahead fails and the line
// falls through to the later classifiers.
func parseTable(lines []string, i int) (block, int) {
	if !strings.Contains(lines[i], "|") {
		return block{}, 0
	}
	if i+1 >= len(lines) || !isSeparatorLine(lines[i+1]) {
		return block{}, 0
	}

	tbl := block{kind: blockTable, header: splitRow(lines[i])}
	consumed := 2
	for j := i + 2; j < len(lines); j++ {
		if !strings.Contains(lines[j], "|") || strings.TrimSpace(lines[j]) == "" {
			break
		}
		tbl.rows = append(tbl.rows, splitRow(lines[j]))
		consumed++
	}
	return tbl, consumed
}

func isSeparatorLine(line string) bool {
	if !strings.Contains(line, "|") {
		return false
	}
	cells := splitRow(line)
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if !separatorCell.MatchString(c) {
			return false
		}
	}
	return true
}

func splitRow(line string) []string {
	trimmed := strings.Trim(strings.TrimSpace(line), "|")
	raw := strings.Split(trimmed, "|")
	cells := make([]string, len(raw))
	for i, c := range raw {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

func renderBlock(b block) string {
	switch b.kind {
	case blockHeading:
		return fmt.Sprintf("<h%d>%s</h%d>", b.level, FormatInline(b.text), b.level)
	case blockRule:
		return "<hr>"
	case blockQuote:
		formatted := make([]string, len(b.lines))
		for i, l := range b.lines {
			formatted[i] = FormatInline(l)
		}
		return "<blockquote>" + strings.Join(formatted, "<br>") + "</blockquote>"
	case blockList:
		tag := "ul"
		if b.list == listOrdered {
			tag = "ol"
		}
		var sb strings.Builder
		sb.WriteString("<" + tag + ">")
		for _, item := range b.items {
			sb.WriteString("<li>" + FormatInline(item) + "</li>")
		}
		sb.WriteString("</" + tag + ">")
		return sb.String()
	case blockTable:
		var sb strings.Builder
		sb.WriteString("<table><thead><tr>")
		for _, cell := range b.header {
			sb.WriteString("<th>" + FormatInline(cell) + "</th>")
		}
		sb.WriteString("</tr></thead><tbody>")
		for _, row := range b.rows {
			sb.WriteString("<tr>")
			for _, cell := range row {
				sb.WriteString("<td>" + FormatInline(cell) + "</td>")
			}
			sb.WriteString("</tr>")
		}
		sb.WriteString("</tbody></table>")
		return sb.String()
	case blockCode:
		return b.text
	default:
		return "<p>" + FormatInline(b.text) + "</p>"
	}
}
