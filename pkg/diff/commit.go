package diff

import (
	"errors"
	"fmt"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

// DevNull names the missing side of an added or deleted file.
const DevNull = "/dev/null"

// ObjectReader is the subset of the object store the commit diff needs.
type ObjectReader interface {
	TreeReader
	ReadBlob(h object.Hash) ([]byte, error)
	ReadCommit(h object.Hash) (*object.Commit, error)
}

// FileChange is the rendered diff of one file in a commit.
type FileChange struct {
	OldFilename, NewFilename string
	OldMode, NewMode         string
	OldHash, NewHash         object.Hash
	IsBinary                 bool
	Additions, Deletions     int
	Hunks                    []Hunk
}

// Added reports whether the file did not exist before the commit.
func (f FileChange) Added() bool { return f.OldHash == "" }

// Deleted reports whether the file no longer exists after the commit.
func (f FileChange) Deleted() bool { return f.NewHash == "" }

// Filename is the name the change is listed under.
func (f FileChange) Filename() string {
	if f.NewFilename != DevNull {
		return f.NewFilename
	}
	return f.OldFilename
}

// Summary totals the changes of a commit.
type Summary struct {
	NFiles     int
	NAdditions int
	NDeletions int
}

// CommitChanges diffs c against its first parent. A root commit, or one
// whose first parent is missing from a shallow clone, is diffed against
// the empty tree.
func CommitChanges(r ObjectReader, c *object.Commit) (Summary, []FileChange, error) {
	var parentTree object.Hash
	if p := c.FirstParent(); p != "" {
		parent, err := r.ReadCommit(p)
		switch {
		case errors.Is(err, object.ErrNotFound):
		case err != nil:
			return Summary{}, nil, fmt.Errorf("diff commit: read parent %s: %w", p, err)
		default:
			parentTree = parent.Tree
		}
	}
	return TreeDiff(r, parentTree, c.Tree)
}

// TreeDiff renders every changed file between two trees.
func TreeDiff(r ObjectReader, oldTree, newTree object.Hash) (Summary, []FileChange, error) {
	changes, err := TreeChanges(r, oldTree, newTree)
	if err != nil {
		return Summary{}, nil, err
	}

	var sum Summary
	files := make([]FileChange, 0, len(changes))
	for _, ch := range changes {
		fc, err := FileDiff(r, ch)
		if err != nil {
			return Summary{}, nil, err
		}
		sum.NFiles++
		sum.NAdditions += fc.Additions
		sum.NDeletions += fc.Deletions
		files = append(files, fc)
	}
	return sum, files, nil
}

// FileDiff renders a single tree change. Binary content (either side holds
// a NUL byte) gets no hunks; submodule entries are shown as their commit.
func FileDiff(r ObjectReader, ch Change) (FileChange, error) {
	fc := FileChange{
		OldFilename: ch.OldPath, NewFilename: ch.NewPath,
		OldMode: ch.OldMode, NewMode: ch.NewMode,
		OldHash: ch.OldHash, NewHash: ch.NewHash,
	}
	if fc.OldFilename == "" {
		fc.OldFilename = DevNull
	}
	if fc.NewFilename == "" {
		fc.NewFilename = DevNull
	}

	oldData, err := sideContent(r, ch.OldMode, ch.OldHash)
	if err != nil {
		return FileChange{}, fmt.Errorf("diff %s: %w", ch.Path(), err)
	}
	newData, err := sideContent(r, ch.NewMode, ch.NewHash)
	if err != nil {
		return FileChange{}, fmt.Errorf("diff %s: %w", ch.Path(), err)
	}

	if IsBinary(oldData) || IsBinary(newData) {
		fc.IsBinary = true
		return fc, nil
	}

	res := Lines(oldData, newData)
	fc.Hunks = res.Hunks
	fc.Additions = res.Additions
	fc.Deletions = res.Deletions
	return fc, nil
}

func sideContent(r ObjectReader, mode string, h object.Hash) ([]byte, error) {
	if h == "" {
		return nil, nil
	}
	if mode == object.TreeModeGitlink {
		return []byte("Subproject commit " + string(h) + "\n"), nil
	}
	return r.ReadBlob(h)
}
