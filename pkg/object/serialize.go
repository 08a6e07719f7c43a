package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// MarshalTree serializes a Tree in Git's binary format:
//
//	<mode> SP <name> NUL <raw hash>
//
// Entries are sorted the way Git sorts them: directories compare as if
// their name carried a trailing slash.
func MarshalTree(tr *Tree) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return treeSortKey(sorted[i]) < treeSortKey(sorted[j])
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		raw, err := hashHexToBytes(e.Hash)
		if err != nil {
			return nil, fmt.Errorf("marshal tree entry %q: %w", e.Name, err)
		}
		mode := e.Mode
		if mode == "" {
			mode = TreeModeFile
		}
		fmt.Fprintf(&buf, "%s %s\x00", mode, e.Name)
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

func treeSortKey(e TreeEntry) string {
	if e.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// UnmarshalTree parses a binary tree object whose entries carry raw
// digests of algo's size.
func UnmarshalTree(data []byte, algo HashAlgo) (*Tree, error) {
	size := algo.Size()
	tr := &Tree{}
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp <= 0 {
			return nil, fmt.Errorf("%w: tree entry missing mode", ErrMalformed)
		}
		mode := string(data[:sp])
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return nil, fmt.Errorf("%w: tree entry missing name terminator", ErrMalformed)
		}
		name := string(data[:nul])
		data = data[nul+1:]

		if len(data) < size {
			return nil, fmt.Errorf("%w: tree entry %q hash truncated", ErrMalformed, name)
		}
		tr.Entries = append(tr.Entries, TreeEntry{
			Name: name,
			Mode: normalizeMode(mode),
			Hash: hashFromRaw(data[:size]),
		})
		data = data[size:]
	}
	return tr, nil
}

// normalizeMode folds legacy zero-padded directory modes.
func normalizeMode(mode string) string {
	if mode == "040000" {
		return TreeModeDir
	}
	return mode
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a Commit:
//
//	tree H
//	parent H     (zero or more)
//	author S
//	committer S
//	<extra headers>
//
//	message
func MarshalCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", formatSignature(c.Author))
	fmt.Fprintf(&buf, "committer %s\n", formatSignature(c.Committer))
	for _, h := range c.ExtraHeaders {
		writeHeader(&buf, h)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a commit object.
func UnmarshalCommit(data []byte) (*Commit, error) {
	headers, message, err := splitHeaders(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal commit: %w", err)
	}

	c := &Commit{Message: message}
	for _, h := range headers {
		switch h.Key {
		case "tree":
			c.Tree = Hash(h.Value)
		case "parent":
			c.Parents = append(c.Parents, Hash(h.Value))
		case "author":
			sig, err := parseSignature(h.Value)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: author: %w", err)
			}
			c.Author = sig
		case "committer":
			sig, err := parseSignature(h.Value)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: committer: %w", err)
			}
			c.Committer = sig
		default:
			c.ExtraHeaders = append(c.ExtraHeaders, h)
		}
	}
	if c.Tree == "" {
		return nil, fmt.Errorf("unmarshal commit: %w: missing tree header", ErrMalformed)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Tag
// ---------------------------------------------------------------------------

// MarshalTag serializes an annotated tag object.
func MarshalTag(t *Tag) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.Object)
	fmt.Fprintf(&buf, "type %s\n", t.TargetType)
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	if t.Tagger != nil {
		fmt.Fprintf(&buf, "tagger %s\n", formatSignature(*t.Tagger))
	}
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// UnmarshalTag parses an annotated tag object.
func UnmarshalTag(data []byte) (*Tag, error) {
	headers, message, err := splitHeaders(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal tag: %w", err)
	}

	t := &Tag{Message: message}
	for _, h := range headers {
		switch h.Key {
		case "object":
			t.Object = Hash(h.Value)
		case "type":
			t.TargetType = ObjectType(h.Value)
		case "tag":
			t.Name = h.Value
		case "tagger":
			sig, err := parseSignature(h.Value)
			if err != nil {
				return nil, fmt.Errorf("unmarshal tag: tagger: %w", err)
			}
			t.Tagger = &sig
		}
	}
	if t.Object == "" {
		return nil, fmt.Errorf("unmarshal tag: %w: missing object header", ErrMalformed)
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Headers and signatures
// ---------------------------------------------------------------------------

// splitHeaders splits "key value" header lines from the message. Lines
// starting with a space continue the previous header (gpgsig, mergetag).
func splitHeaders(data []byte) ([]Header, string, error) {
	var (
		headers []Header
		rest    = data
	)
	for len(rest) > 0 {
		nl := bytes.IndexByte(rest, '\n')
		var line []byte
		if nl < 0 {
			line, rest = rest, nil
		} else {
			line, rest = rest[:nl], rest[nl+1:]
		}
		if len(line) == 0 {
			return headers, string(rest), nil
		}
		if line[0] == ' ' {
			if len(headers) == 0 {
				return nil, "", fmt.Errorf("%w: continuation line before any header", ErrMalformed)
			}
			last := &headers[len(headers)-1]
			last.Value += "\n" + string(line[1:])
			continue
		}
		key, val, ok := strings.Cut(string(line), " ")
		if !ok {
			return nil, "", fmt.Errorf("%w: header line %q", ErrMalformed, line)
		}
		headers = append(headers, Header{Key: key, Value: val})
	}
	return headers, "", nil
}

func writeHeader(buf *bytes.Buffer, h Header) {
	buf.WriteString(h.Key)
	buf.WriteByte(' ')
	buf.WriteString(strings.ReplaceAll(h.Value, "\n", "\n "))
	buf.WriteByte('\n')
}

// parseSignature parses "Name <email> 1234567890 +0200".
func parseSignature(s string) (Signature, error) {
	lt := strings.IndexByte(s, '<')
	gt := strings.LastIndexByte(s, '>')
	if lt < 0 || gt < lt {
		return Signature{Name: strings.TrimSpace(s)}, nil
	}
	sig := Signature{
		Name:  strings.TrimSpace(s[:lt]),
		Email: s[lt+1 : gt],
	}

	fields := strings.Fields(s[gt+1:])
	if len(fields) == 0 {
		return sig, nil
	}
	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformed, fields[0])
	}
	loc := time.UTC
	if len(fields) > 1 {
		loc = parseTimezone(fields[1])
	}
	sig.When = time.Unix(secs, 0).In(loc)
	return sig, nil
}

func parseTimezone(tz string) *time.Location {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return time.UTC
	}
	hours, err1 := strconv.Atoi(tz[1:3])
	mins, err2 := strconv.Atoi(tz[3:5])
	if err1 != nil || err2 != nil {
		return time.UTC
	}
	offset := hours*3600 + mins*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(tz, offset)
}

func formatSignature(s Signature) string {
	_, offset := s.When.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%s <%s> %d %c%02d%02d", s.Name, s.Email, s.When.Unix(), sign, offset/3600, (offset%3600)/60)
}
