package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

// TreeReader reads parsed trees by hash; *object.Store implements it.
type TreeReader interface {
	ReadTree(h object.Hash) (*object.Tree, error)
}

// Node is the object found at a path: a directory (Tree set) or a file,
// symlink or submodule (Tree nil).
type Node struct {
	Path  string
	Entry object.TreeEntry // zero for the root directory
	Tree  *object.Tree
}

// IsTree reports whether the node is a directory.
func (n Node) IsTree() bool { return n.Tree != nil }

// DirEntry is one row of a directory listing.
type DirEntry struct {
	Name string
	Path string
	Hash object.Hash
	Mode string
	// URL is the submodule URL from .gitmodules, when known.
	URL string
}

// Listing is a directory split into subdirectories, files and submodules.
type Listing struct {
	Path       string
	Dirs       []DirEntry
	Files      []DirEntry
	Submodules []DirEntry
}

func splitPath(p string) []string {
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// BlobOrTree returns what lives at path in the commit's tree. The empty
// path is the root directory.
func (r *Repo) BlobOrTree(c Commit, p string) (Node, error) {
	parts := splitPath(p)
	clean := strings.Join(parts, "/")

	tree, err := r.Store.ReadTree(c.Tree)
	if err != nil {
		return Node{}, fmt.Errorf("read root tree of %s: %w", c.Hash.Short(), err)
	}
	node := Node{Tree: tree}
	for i, part := range parts {
		if node.Tree == nil {
			return Node{}, notFound("path", clean, ErrPathNotFound)
		}
		entry, ok := node.Tree.Entry(part)
		if !ok {
			return Node{}, notFound("path", clean, ErrPathNotFound)
		}
		node = Node{Path: strings.Join(parts[:i+1], "/"), Entry: entry}
		if entry.IsDir() {
			if node.Tree, err = r.Store.ReadTree(entry.Hash); err != nil {
				return Node{}, fmt.Errorf("read tree %s: %w", node.Path, err)
			}
		}
	}
	return node, nil
}

// ListDir lists the directory at path. When path names a file, its parent
// directory is listed instead. Each group is sorted case-insensitively and a
// non-root listing starts with a ".." entry.
func (r *Repo) ListDir(c Commit, p string) (Listing, error) {
	node, err := r.BlobOrTree(c, p)
	if err != nil {
		return Listing{}, err
	}
	if !node.IsTree() {
		node, err = r.BlobOrTree(c, parentPath(node.Path))
		if err != nil {
			return Listing{}, err
		}
	}

	listing := Listing{Path: node.Path}
	var mods map[string]Submodule
	for _, e := range node.Tree.Entries {
		de := DirEntry{Name: e.Name, Path: path.Join(node.Path, e.Name), Hash: e.Hash, Mode: e.Mode}
		switch e.Kind() {
		case object.KindTree:
			listing.Dirs = append(listing.Dirs, de)
		case object.KindGitlink:
			if mods == nil {
				if mods = r.submodules(c); mods == nil {
					mods = map[string]Submodule{}
				}
			}
			de.URL = mods[de.Path].URL
			listing.Submodules = append(listing.Submodules, de)
		default:
			listing.Files = append(listing.Files, de)
		}
	}
	for _, group := range [][]DirEntry{listing.Dirs, listing.Files, listing.Submodules} {
		sortEntries(group)
	}
	if node.Path != "" {
		up := DirEntry{Name: "..", Path: parentPath(node.Path), Mode: object.TreeModeDir}
		listing.Dirs = append([]DirEntry{up}, listing.Dirs...)
	}
	return listing, nil
}

func sortEntries(entries []DirEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := strings.ToLower(entries[i].Name), strings.ToLower(entries[j].Name)
		if a != b {
			return a < b
		}
		return entries[i].Name < entries[j].Name
	})
}

func parentPath(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// WalkTree calls fn for every entry below root in depth-first tree order.
// Returning fs.SkipDir from fn for a directory skips its contents; any
// other error stops the walk and is returned.
func WalkTree(r TreeReader, root object.Hash, fn func(p string, e object.TreeEntry) error) error {
	return walkTree(r, root, "", fn)
}

func walkTree(r TreeReader, h object.Hash, prefix string, fn func(string, object.TreeEntry) error) error {
	tree, err := r.ReadTree(h)
	if err != nil {
		return fmt.Errorf("walk tree %s: %w", h, err)
	}
	for _, e := range tree.Entries {
		p := path.Join(prefix, e.Name)
		err := fn(p, e)
		if errors.Is(err, fs.SkipDir) {
			continue
		}
		if err != nil {
			return err
		}
		if e.IsDir() {
			if err := walkTree(r, e.Hash, p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
