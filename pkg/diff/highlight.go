package diff

import (
	"html"
	"strings"
	"unicode/utf8"
)

// Span is a byte range [Start, End) within a line's text.
type Span struct {
	Start, End int
}

// Highlight finds the changed middle section between an old and a new
// version of a line. It reports ok=false when the lines differ too much in
// length (the shorter must be at least half the longer) or share neither a
// prefix nor a suffix. Spans never split a UTF-8 sequence.
func Highlight(oldText, newText string) (oldSpan, newSpan Span, ok bool) {
	shorter, longer := len(oldText), len(newText)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if shorter*2 < longer {
		return Span{}, Span{}, false
	}

	prefix := 0
	for prefix < shorter && oldText[prefix] == newText[prefix] {
		prefix++
	}
	for prefix > 0 && (midRune(oldText, prefix) || midRune(newText, prefix)) {
		prefix--
	}

	suffix := 0
	for suffix < shorter-prefix && oldText[len(oldText)-1-suffix] == newText[len(newText)-1-suffix] {
		suffix++
	}
	for suffix > 0 && !utf8.RuneStart(oldText[len(oldText)-suffix]) {
		suffix--
	}

	if prefix == 0 && suffix == 0 {
		return Span{}, Span{}, false
	}
	return Span{prefix, len(oldText) - suffix}, Span{prefix, len(newText) - suffix}, true
}

func midRune(s string, i int) bool {
	return i < len(s) && !utf8.RuneStart(s[i])
}

// Segments splits the text around the inline span. Lines without a span
// return the whole text as before.
func (l Line) Segments() (before, changed, after string) {
	if l.Inline == nil {
		return l.Text, "", ""
	}
	s := l.Inline
	return l.Text[:s.Start], l.Text[s.Start:s.End], l.Text[s.End:]
}

// HTML returns the escaped line text with the changed span wrapped in <del>
// or <ins> depending on the action.
func (l Line) HTML() string {
	before, changed, after := l.Segments()
	if l.Inline == nil {
		return html.EscapeString(before)
	}
	tag := "ins"
	if l.Action == Deleted {
		tag = "del"
	}
	var b strings.Builder
	b.WriteString(html.EscapeString(before))
	b.WriteString("<" + tag + ">")
	b.WriteString(html.EscapeString(changed))
	b.WriteString("</" + tag + ">")
	b.WriteString(html.EscapeString(after))
	return b.String()
}
