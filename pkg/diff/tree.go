package diff

import (
	"fmt"
	"path"
	"sort"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

// TreeReader reads parsed trees by hash.
type TreeReader interface {
	ReadTree(h object.Hash) (*object.Tree, error)
}

// Change is a single file that differs between two trees. An added file has
// an empty OldPath, a deleted file an empty NewPath.
type Change struct {
	OldPath, NewPath string
	OldMode, NewMode string
	OldHash, NewHash object.Hash
}

// Path returns the path the change is reported under.
func (c Change) Path() string {
	if c.NewPath != "" {
		return c.NewPath
	}
	return c.OldPath
}

// TreeChanges lists the files that differ between oldTree and newTree,
// recursing into subdirectories. Either side may be empty to diff against
// nothing. Entries with identical mode and hash are skipped, and an entry
// that changes between file and directory is reported as a delete and adds.
func TreeChanges(r TreeReader, oldTree, newTree object.Hash) ([]Change, error) {
	var out []Change
	if err := diffTrees(r, "", oldTree, newTree, &out); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
	return out, nil
}

func readEntries(r TreeReader, h object.Hash) (map[string]object.TreeEntry, error) {
	if h == "" {
		return nil, nil
	}
	tr, err := r.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", h, err)
	}
	m := make(map[string]object.TreeEntry, len(tr.Entries))
	for _, e := range tr.Entries {
		m[e.Name] = e
	}
	return m, nil
}

func diffTrees(r TreeReader, prefix string, oldTree, newTree object.Hash, out *[]Change) error {
	if oldTree == newTree {
		return nil
	}
	oldEntries, err := readEntries(r, oldTree)
	if err != nil {
		return err
	}
	newEntries, err := readEntries(r, newTree)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(oldEntries)+len(newEntries))
	for name := range oldEntries {
		names = append(names, name)
	}
	for name := range newEntries {
		if _, ok := oldEntries[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		p := path.Join(prefix, name)
		oe, inOld := oldEntries[name]
		ne, inNew := newEntries[name]

		switch {
		case inOld && inNew && oe.Mode == ne.Mode && oe.Hash == ne.Hash:
			continue
		case inOld && inNew && oe.IsDir() && ne.IsDir():
			if err := diffTrees(r, p, oe.Hash, ne.Hash, out); err != nil {
				return err
			}
		case inOld && inNew && !oe.IsDir() && !ne.IsDir():
			*out = append(*out, Change{
				OldPath: p, NewPath: p,
				OldMode: oe.Mode, NewMode: ne.Mode,
				OldHash: oe.Hash, NewHash: ne.Hash,
			})
		default:
			if inOld {
				if err := removed(r, p, oe, out); err != nil {
					return err
				}
			}
			if inNew {
				if err := added(r, p, ne, out); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func removed(r TreeReader, p string, e object.TreeEntry, out *[]Change) error {
	if e.IsDir() {
		return diffTrees(r, p, e.Hash, "", out)
	}
	*out = append(*out, Change{OldPath: p, OldMode: e.Mode, OldHash: e.Hash})
	return nil
}

func added(r TreeReader, p string, e object.TreeEntry, out *[]Change) error {
	if e.IsDir() {
		return diffTrees(r, p, "", e.Hash, out)
	}
	*out = append(*out, Change{NewPath: p, NewMode: e.Mode, NewHash: e.Hash})
	return nil
}
