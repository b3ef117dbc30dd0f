package markdown

import (
	"fmt"
	"regexp"
	"strings"
)

// Inline substitution order is fixed: code spans are lifted out first so the
// emphasis and link rules can never rewrite code content, bold runs before
// italic so "**" is never consumed as two "*" delimiters.
var (
	codeSpanRe = regexp.MustCompile("`([^`]+)`")
	linkRe     = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	boldRe     = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
	italicRe   = regexp.MustCompile(`\*([^*]+)\*|_([^_]+)_`)
)

// FormatInline applies inline formatting to a single line of already
// HTML-escaped text. Each rule is applied once, left to right; unmatched
// delimiters stay literal. It never fails.
func FormatInline(line string) string {
	// Lift code spans out before any other rule runs.
	var spans []string
	line = codeSpanRe.ReplaceAllStringFunc(line, func(m string) string {
		inner := codeSpanRe.FindStringSubmatch(m)[1]
		spans = append(spans, inner)
		return fmt.Sprintf("\x00SPAN%d\x00", len(spans)-1)
	})

	line = linkRe.ReplaceAllString(line, `<a href="$2">$1</a>`)

	line = boldRe.ReplaceAllStringFunc(line, func(m string) string {
		sub := boldRe.FindStringSubmatch(m)
		inner := sub[1]
		if inner == "" {
			inner = sub[2]
		}
		return "<strong>" + inner + "</strong>"
	})

	line = italicRe.ReplaceAllStringFunc(line, func(m string) string {
		sub := italicRe.FindStringSubmatch(m)
		inner := sub[1]
		if inner == "" {
			inner = sub[2]
		}
		return "<em>" + inner + "</em>"
	})

	for i, span := range spans {
		line = strings.Replace(line, fmt.Sprintf("\x00SPAN%d\x00", i), "<code>"+span+"</code>", 1)
	}

	return line
}
