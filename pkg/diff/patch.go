package diff

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

const noNewlineMarker = `\ No newline at end of file`

// WritePatch writes c in the mbox layout of git format-patch followed by
// the unified diff of files.
func WritePatch(w io.Writer, h object.Hash, c *object.Commit, files []FileChange) error {
	bw := bufio.NewWriter(w)

	subject, body, _ := strings.Cut(strings.TrimRight(c.Message, "\n"), "\n")
	fmt.Fprintf(bw, "From %s Mon Sep 17 00:00:00 2001\n", h)
	fmt.Fprintf(bw, "From: %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Fprintf(bw, "Date: %s\n", c.Author.When.Format(time.RFC1123Z))
	fmt.Fprintf(bw, "Subject: [PATCH] %s\n\n", subject)
	if body = strings.Trim(body, "\n"); body != "" {
		bw.WriteString(body + "\n")
	}
	bw.WriteString("---\n\n")

	for _, f := range files {
		writeFilePatch(bw, f)
	}
	bw.WriteString("-- \ngitbrowse\n\n")
	return bw.Flush()
}

func writeFilePatch(w *bufio.Writer, f FileChange) {
	oldName, newName := f.OldFilename, f.NewFilename
	if f.Added() {
		oldName = newName
	}
	if f.Deleted() {
		newName = oldName
	}
	fmt.Fprintf(w, "diff --git a/%s b/%s\n", oldName, newName)

	switch {
	case f.Added():
		fmt.Fprintf(w, "new file mode %s\n", padMode(f.NewMode))
		fmt.Fprintf(w, "index %s..%s\n", zeroHash(f.NewHash), f.NewHash.Short())
	case f.Deleted():
		fmt.Fprintf(w, "deleted file mode %s\n", padMode(f.OldMode))
		fmt.Fprintf(w, "index %s..%s\n", f.OldHash.Short(), zeroHash(f.OldHash))
	case f.OldMode != f.NewMode:
		fmt.Fprintf(w, "old mode %s\nnew mode %s\n", padMode(f.OldMode), padMode(f.NewMode))
		fmt.Fprintf(w, "index %s..%s\n", f.OldHash.Short(), f.NewHash.Short())
	default:
		fmt.Fprintf(w, "index %s..%s %s\n", f.OldHash.Short(), f.NewHash.Short(), padMode(f.NewMode))
	}

	if f.IsBinary {
		fmt.Fprintf(w, "Binary files %s and %s differ\n", sideName("a", f.OldFilename), sideName("b", f.NewFilename))
		return
	}
	if len(f.Hunks) == 0 {
		return
	}
	fmt.Fprintf(w, "--- %s\n+++ %s\n", sideName("a", f.OldFilename), sideName("b", f.NewFilename))
	for _, h := range f.Hunks {
		fmt.Fprintf(w, "@@ -%s +%s @@\n", formatRange(h.OldStart, h.OldLines), formatRange(h.NewStart, h.NewLines))
		for _, l := range h.Lines {
			w.WriteByte(l.Action.Prefix())
			w.WriteString(l.Text)
			w.WriteByte('\n')
			if l.NoNewline {
				w.WriteString(noNewlineMarker + "\n")
			}
		}
	}
}

func sideName(side, name string) string {
	if name == DevNull {
		return DevNull
	}
	return side + "/" + name
}

func zeroHash(like object.Hash) string {
	return strings.Repeat("0", len(like.Short()))
}

func padMode(mode string) string {
	if len(mode) == 5 {
		return "0" + mode
	}
	return mode
}

func formatRange(start, length int) string {
	if length == 1 {
		return strconv.Itoa(start)
	}
	return strconv.Itoa(start) + "," + strconv.Itoa(length)
}

// FilePatch is one file section parsed back from a unified diff.
type FilePatch struct {
	OldFilename, NewFilename string
	IsBinary                 bool
	Additions, Deletions     int
	Hunks                    []Hunk
}

// ParsePatch reads the file sections of a git-style unified diff. Text
// outside "diff --git" sections, such as mail headers, is ignored.
func ParsePatch(r io.Reader) ([]FilePatch, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var (
		out              []FilePatch
		cur              *FilePatch
		hunk             *Hunk
		oldLine, newLine int
		lineno           int
	)
	flushHunk := func() {
		if cur != nil && hunk != nil {
			cur.Hunks = append(cur.Hunks, *hunk)
		}
		hunk = nil
	}
	flushFile := func() {
		flushHunk()
		if cur != nil {
			out = append(out, *cur)
		}
		cur = nil
	}

	for sc.Scan() {
		lineno++
		text := sc.Text()
		switch {
		case strings.HasPrefix(text, "diff --git "):
			flushFile()
			cur = &FilePatch{}
			names := strings.TrimPrefix(text, "diff --git ")
			if i := strings.LastIndex(names, " b/"); i >= 0 {
				cur.OldFilename = strings.TrimPrefix(names[:i], "a/")
				cur.NewFilename = names[i+3:]
			}
			continue
		case cur == nil:
			continue
		}

		if hunk != nil {
			remaining := hunk.OldStart+hunk.OldLines-oldLine > 0 || hunk.NewStart+hunk.NewLines-newLine > 0
			switch {
			case strings.HasPrefix(text, `\`):
				if n := len(hunk.Lines); n > 0 {
					hunk.Lines[n-1].NoNewline = true
				}
				continue
			case remaining && strings.HasPrefix(text, " "):
				hunk.Lines = append(hunk.Lines, Line{OldLineno: oldLine, NewLineno: newLine, Action: Unmodified, Text: text[1:]})
				oldLine++
				newLine++
				continue
			case remaining && strings.HasPrefix(text, "-"):
				hunk.Lines = append(hunk.Lines, Line{OldLineno: oldLine, Action: Deleted, Text: text[1:]})
				cur.Deletions++
				oldLine++
				continue
			case remaining && strings.HasPrefix(text, "+"):
				hunk.Lines = append(hunk.Lines, Line{NewLineno: newLine, Action: Added, Text: text[1:]})
				cur.Additions++
				newLine++
				continue
			}
			flushHunk()
		}

		switch {
		case strings.HasPrefix(text, "--- "):
			cur.OldFilename = stripSide(strings.TrimPrefix(text, "--- "), "a/")
		case strings.HasPrefix(text, "+++ "):
			cur.NewFilename = stripSide(strings.TrimPrefix(text, "+++ "), "b/")
		case strings.HasPrefix(text, "new file mode "):
			cur.OldFilename = DevNull
		case strings.HasPrefix(text, "deleted file mode "):
			cur.NewFilename = DevNull
		case strings.HasPrefix(text, "Binary files "):
			cur.IsBinary = true
		case strings.HasPrefix(text, "@@ "):
			h, err := parseHunkHeader(text)
			if err != nil {
				return nil, fmt.Errorf("patch line %d: %w", lineno, err)
			}
			hunk = &h
			oldLine, newLine = h.OldStart, h.NewStart
			if h.OldLines == 0 {
				oldLine++
			}
			if h.NewLines == 0 {
				newLine++
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read patch: %w", err)
	}
	flushFile()
	return out, nil
}

func stripSide(name, prefix string) string {
	if name == DevNull {
		return name
	}
	return strings.TrimPrefix(name, prefix)
}

// parseHunkHeader parses "@@ -a,b +c,d @@ ...".
func parseHunkHeader(text string) (Hunk, error) {
	fields := strings.Fields(text)
	if len(fields) < 4 || fields[0] != "@@" || fields[3] != "@@" {
		return Hunk{}, fmt.Errorf("invalid hunk header %q", text)
	}
	oldStart, oldLines, err := parseRange(fields[1], "-")
	if err != nil {
		return Hunk{}, err
	}
	newStart, newLines, err := parseRange(fields[2], "+")
	if err != nil {
		return Hunk{}, err
	}
	return Hunk{OldStart: oldStart, OldLines: oldLines, NewStart: newStart, NewLines: newLines}, nil
}

func parseRange(field, sign string) (start, length int, err error) {
	rest, ok := strings.CutPrefix(field, sign)
	if !ok {
		return 0, 0, fmt.Errorf("invalid hunk range %q", field)
	}
	startStr, lenStr, hasLen := strings.Cut(rest, ",")
	start, err = strconv.Atoi(startStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hunk range %q", field)
	}
	length = 1
	if hasLen {
		if length, err = strconv.Atoi(lenStr); err != nil {
			return 0, 0, fmt.Errorf("invalid hunk range %q", field)
		}
	}
	return start, length, nil
}
