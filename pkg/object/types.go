package object

import (
	"errors"
	"time"
)

// Hash is a lowercase hex-encoded object name: 40 chars for SHA-1
// repositories, 64 for SHA-256 ones.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTag    ObjectType = "tag"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

// Tree mode constants in Git's canonical tree encoding.
const (
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
	TreeModeSymlink    = "120000"
	TreeModeGitlink    = "160000"
)

// MinPrefixLen is the shortest abbreviated hash accepted by ResolvePrefix.
const MinPrefixLen = 4

var (
	// ErrNotFound is returned (wrapped) when an object is not in the store.
	ErrNotFound = errors.New("object not found")
	// ErrAmbiguous is returned when an abbreviated hash matches several objects.
	ErrAmbiguous = errors.New("ambiguous object name")
	// ErrMalformed is returned when stored data cannot be decoded.
	ErrMalformed = errors.New("malformed object")
	// ErrTypeMismatch is returned when an object exists but has another type.
	ErrTypeMismatch = errors.New("object type mismatch")
)

// EntryKind classifies a tree entry by its mode.
type EntryKind int

const (
	KindBlob EntryKind = iota
	KindTree
	KindSymlink
	KindGitlink
)

func (k EntryKind) String() string {
	switch k {
	case KindTree:
		return "tree"
	case KindSymlink:
		return "symlink"
	case KindGitlink:
		return "submodule"
	default:
		return "blob"
	}
}

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Name string
	Mode string
	Hash Hash
}

// Kind derives the entry kind from its mode.
func (e TreeEntry) Kind() EntryKind {
	switch e.Mode {
	case TreeModeDir, "040000":
		return KindTree
	case TreeModeSymlink:
		return KindSymlink
	case TreeModeGitlink:
		return KindGitlink
	default:
		return KindBlob
	}
}

func (e TreeEntry) IsDir() bool { return e.Kind() == KindTree }

// Tree holds the entries of a directory snapshot in Git's stored order.
type Tree struct {
	Entries []TreeEntry
}

// Entry returns the entry with the given name.
func (t *Tree) Entry(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// Signature is an author, committer or tagger line.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

func (s Signature) String() string {
	if s.Email == "" {
		return s.Name
	}
	return s.Name + " <" + s.Email + ">"
}

// Commit is a parsed commit object.
type Commit struct {
	Tree      Hash
	Parents   []Hash
	Author    Signature
	Committer Signature
	// ExtraHeaders keeps headers such as gpgsig, mergetag and encoding
	// verbatim, in order.
	ExtraHeaders []Header
	Message      string
}

// Header is a commit or tag header that is not modelled explicitly.
type Header struct {
	Key   string
	Value string
}

// CommitTime is the committer timestamp, which orders history.
func (c *Commit) CommitTime() time.Time {
	return c.Committer.When
}

// Subject returns the first line of the commit message.
func (c *Commit) Subject() string {
	msg := c.Message
	for i := 0; i < len(msg); i++ {
		if msg[i] == '\n' {
			return msg[:i]
		}
	}
	return msg
}

// FirstParent returns the first parent hash, or "" for a root commit.
func (c *Commit) FirstParent() Hash {
	if len(c.Parents) == 0 {
		return ""
	}
	return c.Parents[0]
}

// Tag is a parsed annotated tag object.
type Tag struct {
	Object     Hash
	TargetType ObjectType
	Name       string
	Tagger     *Signature
	Message    string
}
