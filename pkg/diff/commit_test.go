package diff

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

// memStore is an in-memory object store keyed by real object hashes.
type memStore struct {
	t       *testing.T
	blobs   map[object.Hash][]byte
	trees   map[object.Hash]*object.Tree
	commits map[object.Hash]*object.Commit
}

func newMemStore(t *testing.T) *memStore {
	return &memStore{
		t:       t,
		blobs:   make(map[object.Hash][]byte),
		trees:   make(map[object.Hash]*object.Tree),
		commits: make(map[object.Hash]*object.Commit),
	}
}

func (m *memStore) blob(data string) object.Hash {
	h := object.SHA1.HashObject(object.TypeBlob, []byte(data))
	m.blobs[h] = []byte(data)
	return h
}

func (m *memStore) tree(entries ...object.TreeEntry) object.Hash {
	m.t.Helper()
	tr := &object.Tree{Entries: entries}
	data, err := object.MarshalTree(tr)
	if err != nil {
		m.t.Fatalf("MarshalTree: %v", err)
	}
	h := object.SHA1.HashObject(object.TypeTree, data)
	m.trees[h] = tr
	return h
}

func (m *memStore) commit(tree object.Hash, msg string, parents ...object.Hash) (object.Hash, *object.Commit) {
	sig := object.Signature{Name: "Ann Author", Email: "ann@example.com", When: time.Unix(1700000000, 0).UTC()}
	c := &object.Commit{Tree: tree, Parents: parents, Author: sig, Committer: sig, Message: msg}
	h := object.SHA1.HashObject(object.TypeCommit, object.MarshalCommit(c))
	m.commits[h] = c
	return h, c
}

func (m *memStore) ReadBlob(h object.Hash) ([]byte, error) {
	if b, ok := m.blobs[h]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("blob %s: %w", h, object.ErrNotFound)
}

func (m *memStore) ReadTree(h object.Hash) (*object.Tree, error) {
	if tr, ok := m.trees[h]; ok {
		return tr, nil
	}
	return nil, fmt.Errorf("tree %s: %w", h, object.ErrNotFound)
}

func (m *memStore) ReadCommit(h object.Hash) (*object.Commit, error) {
	if c, ok := m.commits[h]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("commit %s: %w", h, object.ErrNotFound)
}

func file(name string, h object.Hash) object.TreeEntry {
	return object.TreeEntry{Name: name, Mode: object.TreeModeFile, Hash: h}
}

func dir(name string, h object.Hash) object.TreeEntry {
	return object.TreeEntry{Name: name, Mode: object.TreeModeDir, Hash: h}
}

func TestTreeChanges(t *testing.T) {
	m := newMemStore(t)
	keep := m.blob("keep\n")
	oldTree := m.tree(
		file("keep.txt", keep),
		file("edit.txt", m.blob("v1\n")),
		file("gone.txt", m.blob("bye\n")),
		dir("x", m.tree(file("a", m.blob("a\n")))),
	)
	newTree := m.tree(
		file("keep.txt", keep),
		file("edit.txt", m.blob("v2\n")),
		file("new.txt", m.blob("hi\n")),
		file("x", m.blob("now a file\n")),
	)

	changes, err := TreeChanges(m, oldTree, newTree)
	if err != nil {
		t.Fatalf("TreeChanges: %v", err)
	}
	var got []string
	for _, c := range changes {
		got = append(got, fmt.Sprintf("%s>%s", c.OldPath, c.NewPath))
	}
	want := []string{"edit.txt>edit.txt", "gone.txt>", ">new.txt", ">x", "x/a>"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("changes = %v, want %v", got, want)
	}

	if same, _ := TreeChanges(m, oldTree, oldTree); len(same) != 0 {
		t.Fatalf("identical trees produced %v", same)
	}
}

func TestTreeChangesModeOnly(t *testing.T) {
	m := newMemStore(t)
	b := m.blob("#!/bin/sh\n")
	oldTree := m.tree(file("run.sh", b))
	newTree := m.tree(object.TreeEntry{Name: "run.sh", Mode: object.TreeModeExecutable, Hash: b})
	changes, err := TreeChanges(m, oldTree, newTree)
	if err != nil {
		t.Fatalf("TreeChanges: %v", err)
	}
	if len(changes) != 1 || changes[0].OldMode != object.TreeModeFile || changes[0].NewMode != object.TreeModeExecutable {
		t.Fatalf("changes = %+v", changes)
	}
}

func TestCommitChangesRootCommit(t *testing.T) {
	m := newMemStore(t)
	_, c := m.commit(m.tree(file("a.txt", m.blob("hello\nworld\n"))), "init\n")

	sum, files, err := CommitChanges(m, c)
	if err != nil {
		t.Fatalf("CommitChanges: %v", err)
	}
	if sum != (Summary{NFiles: 1, NAdditions: 2}) {
		t.Fatalf("summary = %+v", sum)
	}
	f := files[0]
	if f.OldFilename != DevNull || f.NewFilename != "a.txt" || !f.Added() {
		t.Fatalf("file = %+v", f)
	}
}

func TestCommitChangesMissingParent(t *testing.T) {
	m := newMemStore(t)
	_, c := m.commit(m.tree(file("a.txt", m.blob("hello\n"))), "shallow\n", "1111111111111111111111111111111111111111")

	sum, files, err := CommitChanges(m, c)
	if err != nil {
		t.Fatalf("CommitChanges: %v", err)
	}
	if sum != (Summary{NFiles: 1, NAdditions: 1}) {
		t.Fatalf("summary = %+v", sum)
	}
	if len(files) != 1 || !files[0].Added() || files[0].NewFilename != "a.txt" {
		t.Fatalf("files = %+v", files)
	}
}

func TestCommitChangesSummary(t *testing.T) {
	m := newMemStore(t)
	parentHash, _ := m.commit(m.tree(
		file("a.txt", m.blob("one\ntwo\n")),
		file("bin.txt", m.blob("plain\n")),
		file("empty", m.blob("x\n")),
	), "first\n")
	_, c := m.commit(m.tree(
		file("a.txt", m.blob("one\n2\nthree\n")),
		file("bin.txt", m.blob("now\x00binary\n")),
		file("empty", m.blob("")),
		file("new-empty", m.blob("")),
		object.TreeEntry{Name: "sub", Mode: object.TreeModeGitlink, Hash: "1111111111111111111111111111111111111111"},
	), "second\n", parentHash)

	sum, files, err := CommitChanges(m, c)
	if err != nil {
		t.Fatalf("CommitChanges: %v", err)
	}
	if sum.NFiles != 5 {
		t.Fatalf("NFiles = %d, want 5", sum.NFiles)
	}

	byName := make(map[string]FileChange)
	for _, f := range files {
		byName[f.Filename()] = f
	}
	if f := byName["a.txt"]; f.Additions != 2 || f.Deletions != 1 {
		t.Fatalf("a.txt = +%d -%d", f.Additions, f.Deletions)
	}
	if f := byName["bin.txt"]; !f.IsBinary || len(f.Hunks) != 0 {
		t.Fatalf("bin.txt = %+v", f)
	}
	if f := byName["new-empty"]; len(f.Hunks) != 0 || !f.Added() {
		t.Fatalf("new-empty = %+v", f)
	}
	sub := byName["sub"]
	if len(sub.Hunks) != 1 || sub.Hunks[0].Lines[0].Text != "Subproject commit 1111111111111111111111111111111111111111" {
		t.Fatalf("sub = %+v", sub)
	}
	if sum.NAdditions != 3 || sum.NDeletions != 2 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestCommitChangesMissingBlob(t *testing.T) {
	m := newMemStore(t)
	_, c := m.commit(m.tree(file("ghost", "2222222222222222222222222222222222222222")), "broken\n")
	if _, _, err := CommitChanges(m, c); err == nil {
		t.Fatal("expected error for missing blob")
	}
}

func TestPatchRoundTrip(t *testing.T) {
	m := newMemStore(t)
	parentHash, _ := m.commit(m.tree(
		file("a.txt", m.blob("alpha\nbeta\ngamma\n")),
		file("tail", m.blob("x\ny")),
		file("old.bin", m.blob("\x00\x01")),
	), "first\n")
	h, c := m.commit(m.tree(
		file("a.txt", m.blob("alpha\nBETA\ngamma\ndelta\n")),
		file("tail", m.blob("x\nz")),
		file("fresh.txt", m.blob("new file\n")),
	), "Second change\n\nLonger description.\n", parentHash)

	_, files, err := CommitChanges(m, c)
	if err != nil {
		t.Fatalf("CommitChanges: %v", err)
	}
	var buf bytes.Buffer
	if err := WritePatch(&buf, h, c, files); err != nil {
		t.Fatalf("WritePatch: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"From " + string(h) + " Mon Sep 17 00:00:00 2001\n",
		"From: Ann Author <ann@example.com>\n",
		"Subject: [PATCH] Second change\n",
		"Longer description.\n",
		"new file mode 100644\n",
		"deleted file mode 100644\n",
		"Binary files a/old.bin and /dev/null differ\n",
		"\\ No newline at end of file\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("patch missing %q:\n%s", want, out)
		}
	}

	parsed, err := ParsePatch(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParsePatch: %v", err)
	}
	if len(parsed) != len(files) {
		t.Fatalf("parsed %d files, want %d", len(parsed), len(files))
	}
	for i, p := range parsed {
		f := files[i]
		if p.OldFilename != f.OldFilename || p.NewFilename != f.NewFilename || p.IsBinary != f.IsBinary {
			t.Fatalf("file %d = %+v, want names %s/%s", i, p, f.OldFilename, f.NewFilename)
		}
		if p.Additions != f.Additions || p.Deletions != f.Deletions || len(p.Hunks) != len(f.Hunks) {
			t.Fatalf("file %s counts differ: %+v vs %+v", f.Filename(), p, f)
		}
		for j, hunk := range p.Hunks {
			want := f.Hunks[j]
			if hunk.OldStart != want.OldStart || hunk.OldLines != want.OldLines ||
				hunk.NewStart != want.NewStart || hunk.NewLines != want.NewLines {
				t.Fatalf("hunk header %+v, want %+v", hunk, want)
			}
			for k, l := range hunk.Lines {
				w := want.Lines[k]
				w.Inline = nil
				if l != w {
					t.Fatalf("%s line %d = %+v, want %+v", f.Filename(), k, l, w)
				}
			}
		}
	}
}
