package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/gitbrowse/pkg/diff"
	"github.com/odvcencio/gitbrowse/pkg/object"
)

// BlameLine attributes line Lineno (1-based) of a file to the commit that
// last changed it.
type BlameLine struct {
	Lineno int
	Commit Commit
}

// BlameRow is a BlameLine prepared for display. SameAsAbove is set when the
// previous row has the same commit, so the commit column can be left blank.
type BlameRow struct {
	Lineno      int
	Commit      Commit
	SameAsAbove bool
}

// Blame attributes every line of path at c by walking first parents. Lines
// that survive unchanged into a parent's version are followed further back;
// the rest belong to the commit being examined. A root commit, a parent
// without the file, or a parent missing from the store takes all lines
// still unattributed.
func (r *Repo) Blame(c Commit, p string) ([]BlameLine, error) {
	parts := splitPath(p)
	entry, ok, err := r.entryAt(c.Tree, parts)
	if err != nil {
		return nil, fmt.Errorf("blame %s: %w", p, err)
	}
	if !ok || entry.IsDir() || entry.Kind() == object.KindGitlink {
		return nil, notFound("path", p, ErrPathNotFound)
	}
	data, err := r.Store.ReadBlob(entry.Hash)
	if err != nil {
		return nil, fmt.Errorf("blame %s: %w", p, err)
	}

	lines := diff.SplitLines(data)
	result := make([]BlameLine, len(lines))

	// origin[i] is the index in result of line i of cur's version, or -1
	// once that line has been attributed.
	origin := make([]int, len(lines))
	for i := range origin {
		origin[i] = i
	}
	pending := len(lines)
	cur, curLines, curBlob := c, lines, entry.Hash

	attribute := func(idx int, to Commit) {
		result[idx] = BlameLine{Lineno: idx + 1, Commit: to}
		pending--
	}
	attributeRest := func(to Commit) {
		for _, idx := range origin {
			if idx >= 0 {
				attribute(idx, to)
			}
		}
	}

	for pending > 0 {
		parentHash := cur.FirstParent()
		if parentHash == "" {
			attributeRest(cur)
			break
		}
		pc, err := r.Store.ReadCommit(parentHash)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) {
				attributeRest(cur)
				break
			}
			return nil, fmt.Errorf("blame %s: read parent %s: %w", p, parentHash, err)
		}
		parent := Commit{Hash: parentHash, Commit: pc}

		pEntry, inParent, err := r.entryAt(pc.Tree, parts)
		if err != nil {
			return nil, fmt.Errorf("blame %s: %w", p, err)
		}
		if !inParent || pEntry.IsDir() || pEntry.Kind() == object.KindGitlink {
			attributeRest(cur)
			break
		}
		if pEntry.Hash == curBlob {
			cur = parent
			continue
		}

		pdata, err := r.Store.ReadBlob(pEntry.Hash)
		if err != nil {
			return nil, fmt.Errorf("blame %s: %w", p, err)
		}
		parentLines := diff.SplitLines(pdata)
		parentOrigin := make([]int, len(parentLines))
		for i := range parentOrigin {
			parentOrigin[i] = -1
		}
		for _, op := range diff.Opcodes(parentLines, curLines) {
			if op.Tag == diff.TagEqual {
				copy(parentOrigin[op.I1:op.I2], origin[op.J1:op.J2])
				continue
			}
			for j := op.J1; j < op.J2; j++ {
				if origin[j] >= 0 {
					attribute(origin[j], cur)
				}
			}
		}

		cur, curLines, curBlob, origin = parent, parentLines, pEntry.Hash, parentOrigin
	}
	return result, nil
}

// CollapseBlame marks rows whose commit equals the row directly above.
func CollapseBlame(lines []BlameLine) []BlameRow {
	rows := make([]BlameRow, len(lines))
	for i, l := range lines {
		rows[i] = BlameRow{
			Lineno:      l.Lineno,
			Commit:      l.Commit,
			SameAsAbove: i > 0 && lines[i-1].Commit.Hash == l.Commit.Hash,
		}
	}
	return rows
}
