// Package repotest builds real on-disk Git repositories for tests. Objects
// are written with go-git, an independent implementation, so readers are
// exercised against data they did not produce themselves.
package repotest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Entry is the content of one path in a commit.
type Entry struct {
	Mode filemode.FileMode
	Data string
	// Hash is the commit a submodule entry points at.
	Hash string
}

// Text is a regular file.
func Text(data string) Entry { return Entry{Mode: filemode.Regular, Data: data} }

// Exec is an executable file.
func Exec(data string) Entry { return Entry{Mode: filemode.Executable, Data: data} }

// Symlink is a symbolic link to target.
func Symlink(target string) Entry { return Entry{Mode: filemode.Symlink, Data: target} }

// Submodule is a gitlink pointing at commit hash.
func Submodule(hash string) Entry { return Entry{Mode: filemode.Submodule, Hash: hash} }

// Files maps slash separated paths to their content.
type Files map[string]Entry

// Builder writes objects and refs into a bare repository.
type Builder struct {
	t    testing.TB
	Dir  string
	Repo *git.Repository

	now time.Time
}

// Epoch is the author and committer time of the first commit a Builder
// writes; each later commit is one minute newer unless At is used.
var Epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// New creates an empty bare repository named name.git in a temp dir.
func New(t testing.TB, name string) *Builder {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name+".git")
	r, err := git.PlainInit(dir, true)
	if err != nil {
		t.Fatalf("init fixture repository: %v", err)
	}
	return &Builder{t: t, Dir: dir, Repo: r, now: Epoch.Add(-time.Minute)}
}

// At sets the time used by the next commit or tag.
func (b *Builder) At(when time.Time) *Builder {
	b.now = when.Add(-time.Minute)
	return b
}

func (b *Builder) tick() time.Time {
	b.now = b.now.Add(time.Minute)
	return b.now
}

func (b *Builder) store(obj interface {
	Encode(plumbing.EncodedObject) error
}) plumbing.Hash {
	b.t.Helper()
	enc := b.Repo.Storer.NewEncodedObject()
	if err := obj.Encode(enc); err != nil {
		b.t.Fatalf("encode object: %v", err)
	}
	h, err := b.Repo.Storer.SetEncodedObject(enc)
	if err != nil {
		b.t.Fatalf("store object: %v", err)
	}
	return h
}

// Blob stores data and returns its hash.
func (b *Builder) Blob(data string) string {
	b.t.Helper()
	enc := b.Repo.Storer.NewEncodedObject()
	enc.SetType(plumbing.BlobObject)
	w, err := enc.Writer()
	if err != nil {
		b.t.Fatalf("blob writer: %v", err)
	}
	if _, err := w.Write([]byte(data)); err != nil {
		b.t.Fatalf("write blob: %v", err)
	}
	if err := w.Close(); err != nil {
		b.t.Fatalf("close blob: %v", err)
	}
	h, err := b.Repo.Storer.SetEncodedObject(enc)
	if err != nil {
		b.t.Fatalf("store blob: %v", err)
	}
	return h.String()
}

// Tree stores the directory hierarchy described by files and returns the
// root tree hash.
func (b *Builder) Tree(files Files) string {
	b.t.Helper()
	return b.tree(files).String()
}

func (b *Builder) tree(files Files) plumbing.Hash {
	b.t.Helper()
	subdirs := make(map[string]Files)
	var entries []object.TreeEntry
	for p, e := range files {
		head, rest, nested := strings.Cut(strings.Trim(p, "/"), "/")
		if nested {
			if subdirs[head] == nil {
				subdirs[head] = make(Files)
			}
			subdirs[head][rest] = e
			continue
		}
		var h plumbing.Hash
		if e.Mode == filemode.Submodule {
			h = plumbing.NewHash(e.Hash)
		} else {
			h = plumbing.NewHash(b.Blob(e.Data))
		}
		entries = append(entries, object.TreeEntry{Name: head, Mode: e.Mode, Hash: h})
	}
	for name, sub := range subdirs {
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: b.tree(sub)})
	}
	sort.Sort(object.TreeEntrySorter(entries))
	return b.store(&object.Tree{Entries: entries})
}

// Commit stores a commit of files with the given parents and returns its
// hash. It does not move any ref.
func (b *Builder) Commit(msg string, files Files, parents ...string) string {
	b.t.Helper()
	when := b.tick()
	sig := object.Signature{Name: "Fixture Author", Email: "author@example.com", When: when}
	c := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   msg,
		TreeHash:  b.tree(files),
	}
	for _, p := range parents {
		c.ParentHashes = append(c.ParentHashes, plumbing.NewHash(p))
	}
	return b.store(c).String()
}

// CommitOn commits files on branch, using the branch tip as the parent,
// and advances the branch.
func (b *Builder) CommitOn(branch, msg string, files Files) string {
	b.t.Helper()
	var parents []string
	ref, err := b.Repo.Storer.Reference(plumbing.NewBranchReferenceName(branch))
	if err == nil {
		parents = append(parents, ref.Hash().String())
	}
	h := b.Commit(msg, files, parents...)
	b.Branch(branch, h)
	return h
}

// Branch points refs/heads/name at hash.
func (b *Builder) Branch(name, hash string) {
	b.setRef(plumbing.NewBranchReferenceName(name), hash)
}

// Tag creates a lightweight tag.
func (b *Builder) Tag(name, hash string) {
	b.setRef(plumbing.NewTagReferenceName(name), hash)
}

// AnnotatedTag stores a tag object for the commit hash and points
// refs/tags/name at it. It returns the tag object's hash.
func (b *Builder) AnnotatedTag(name, hash, msg string) string {
	b.t.Helper()
	tag := &object.Tag{
		Name:       name,
		Tagger:     object.Signature{Name: "Fixture Tagger", Email: "tagger@example.com", When: b.tick()},
		Message:    msg,
		TargetType: plumbing.CommitObject,
		Target:     plumbing.NewHash(hash),
	}
	h := b.store(tag).String()
	b.setRef(plumbing.NewTagReferenceName(name), h)
	return h
}

// Head points HEAD at refs/heads/branch.
func (b *Builder) Head(branch string) {
	b.t.Helper()
	ref := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	if err := b.Repo.Storer.SetReference(ref); err != nil {
		b.t.Fatalf("set HEAD: %v", err)
	}
}

func (b *Builder) setRef(name plumbing.ReferenceName, hash string) {
	b.t.Helper()
	if err := b.Repo.Storer.SetReference(plumbing.NewHashReference(name, plumbing.NewHash(hash))); err != nil {
		b.t.Fatalf("set %s: %v", name, err)
	}
}

// Pack moves every reachable object into a single pack file (with deltas)
// and removes the loose copies. Repositories with submodules or dangling
// parents cannot be packed this way.
func (b *Builder) Pack() {
	b.t.Helper()
	if err := b.Repo.RepackObjects(&git.RepackConfig{}); err != nil {
		b.t.Fatalf("repack: %v", err)
	}
}

// PackRefs moves loose refs into packed-refs.
func (b *Builder) PackRefs() {
	b.t.Helper()
	if err := b.Repo.Storer.PackRefs(); err != nil {
		b.t.Fatalf("pack refs: %v", err)
	}
}

// WriteFile writes a file relative to the Git directory, for metadata such
// as description or config.
func (b *Builder) WriteFile(name, content string) {
	b.t.Helper()
	p := filepath.Join(b.Dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		b.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		b.t.Fatalf("write %s: %v", name, err)
	}
}
