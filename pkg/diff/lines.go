package diff

import (
	"bytes"
	"strings"
)

// Action classifies a rendered diff line.
type Action uint8

const (
	Unmodified Action = iota
	Added
	Deleted
)

func (a Action) String() string {
	switch a {
	case Added:
		return "add"
	case Deleted:
		return "del"
	}
	return "unmod"
}

// Prefix returns the unified diff marker for the action.
func (a Action) Prefix() byte {
	switch a {
	case Added:
		return '+'
	case Deleted:
		return '-'
	}
	return ' '
}

// Line is one line of a hunk. OldLineno is zero for added lines and
// NewLineno is zero for deleted lines.
type Line struct {
	OldLineno int
	NewLineno int
	Action    Action
	Text      string
	// NoNewline marks the last line of a side that lacks a trailing newline.
	NoNewline bool
	// Inline is the changed span of Text when this line is one half of a
	// single-line replacement that shares a prefix or suffix with the other.
	Inline *Span
}

// Hunk is a run of changed lines with surrounding context. Starts are
// 1-based; a zero-length side starts at the line before the hunk.
type Hunk struct {
	OldStart, OldLines int
	NewStart, NewLines int
	Lines              []Line
}

// Result is the line diff of two blobs.
type Result struct {
	Hunks     []Hunk
	Additions int
	Deletions int
}

// SplitLines splits data into lines, keeping the trailing "\n" of each. A
// final line without a newline is returned as is.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := make([]string, 0, bytes.Count(data, []byte{'\n'})+1)
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			lines = append(lines, string(data))
			break
		}
		lines = append(lines, string(data[:i+1]))
		data = data[i+1:]
	}
	return lines
}

// IsBinary reports whether data looks like binary content: any NUL byte
// counts, regardless of file name.
func IsBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}

// Lines diffs a against b with DefaultContext lines of context.
func Lines(a, b []byte) Result {
	return LinesContext(a, b, DefaultContext)
}

// LinesContext diffs a against b keeping n context lines around changes.
func LinesContext(a, b []byte, n int) Result {
	al, bl := SplitLines(a), SplitLines(b)

	var res Result
	for _, group := range GroupedOpcodes(al, bl, n) {
		first, last := group[0], group[len(group)-1]
		h := Hunk{
			OldStart: first.I1 + 1, OldLines: last.I2 - first.I1,
			NewStart: first.J1 + 1, NewLines: last.J2 - first.J1,
		}
		if h.OldLines == 0 {
			h.OldStart--
		}
		if h.NewLines == 0 {
			h.NewStart--
		}

		for _, op := range group {
			switch op.Tag {
			case TagEqual:
				for k := 0; k < op.I2-op.I1; k++ {
					h.Lines = append(h.Lines, newLine(Unmodified, op.I1+k+1, op.J1+k+1, al[op.I1+k]))
				}
				continue
			}

			start := len(h.Lines)
			for i := op.I1; i < op.I2; i++ {
				h.Lines = append(h.Lines, newLine(Deleted, i+1, 0, al[i]))
				res.Deletions++
			}
			for j := op.J1; j < op.J2; j++ {
				h.Lines = append(h.Lines, newLine(Added, 0, j+1, bl[j]))
				res.Additions++
			}
			if op.Tag == TagReplace && op.I2-op.I1 == 1 && op.J2-op.J1 == 1 {
				del, add := &h.Lines[start], &h.Lines[start+1]
				if oldSpan, newSpan, ok := Highlight(del.Text, add.Text); ok {
					del.Inline, add.Inline = &oldSpan, &newSpan
				}
			}
		}
		res.Hunks = append(res.Hunks, h)
	}
	return res
}

func newLine(action Action, oldLineno, newLineno int, raw string) Line {
	text, hadNewline := strings.CutSuffix(raw, "\n")
	return Line{
		OldLineno: oldLineno,
		NewLineno: newLineno,
		Action:    action,
		Text:      text,
		NoNewline: !hadNewline,
	}
}
