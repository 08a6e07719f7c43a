// Package markup renders documentation files to sanitized HTML and source
// files to line-numbered HTML listings.
package markup

import (
	"fmt"
	"html"
	"path"
	"strings"

	md "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".mkdn":     true,
	".mdown":    true,
}

var policy = bluemonday.UGCPolicy()

// CanRender reports whether filename is a markup format Render supports.
func CanRender(filename string) bool {
	return markdownExtensions[strings.ToLower(path.Ext(filename))]
}

// Render converts markup source to HTML with scripts, event handlers and
// other unsafe constructs removed. ok is false for unsupported files.
func Render(filename string, src []byte) (out string, ok bool) {
	if !CanRender(filename) {
		return "", false
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	return string(policy.SanitizeBytes(md.ToHTML(src, p, nil))), true
}

// Highlighter turns source code into HTML. filename selects the language.
type Highlighter func(code, filename string) string

// Plain is the default Highlighter: an escaped listing with one anchored
// line per source line, so "#L12" links work without a lexer.
func Plain(code, _ string) string {
	var b strings.Builder
	b.WriteString(`<table class="code"><tbody>`)
	lines := strings.SplitAfter(code, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i, line := range lines {
		fmt.Fprintf(&b, `<tr id="L%d"><td class="lineno"><a href="#L%d">%d</a></td><td class="line">%s</td></tr>`,
			i+1, i+1, i+1, html.EscapeString(strings.TrimSuffix(line, "\n")))
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}
