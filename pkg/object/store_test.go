package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempStore(t *testing.T, algo HashAlgo) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s := NewStore(dir, algo, 16)
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func TestHashObjectMatchesGit(t *testing.T) {
	// git hash-object on a file containing "hello\n"
	got := SHA1.HashObject(TypeBlob, []byte("hello\n"))
	if got != "ce013625030ba8dba906f756967f9e9ca394464a" {
		t.Fatalf("HashObject = %s, want ce013625030ba8dba906f756967f9e9ca394464a", got)
	}
	// empty tree
	if got := SHA1.HashObject(TypeTree, nil); got != "4b825dc642cb6eb9a060e54bf8d69288fbee4904" {
		t.Fatalf("empty tree = %s", got)
	}
}

func TestStoreReadLoose(t *testing.T) {
	s, dir := tempStore(t, SHA1)
	h := writeLoose(t, dir, SHA1, TypeBlob, []byte("hello\n"))

	objType, data, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if objType != TypeBlob || string(data) != "hello\n" {
		t.Fatalf("Read = (%q, %q), want (blob, %q)", objType, data, "hello\n")
	}
	if !s.Has(h) {
		t.Fatal("Has returned false for existing object")
	}
}

func TestStoreReadMissing(t *testing.T) {
	s, _ := tempStore(t, SHA1)
	_, _, err := s.Read(Hash("0000000000000000000000000000000000000000"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read missing err = %v, want ErrNotFound", err)
	}
	if s.Has(Hash("0000000000000000000000000000000000000000")) {
		t.Fatal("Has returned true for missing object")
	}
	if _, _, err := s.Read(Hash("not-a-hash")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read invalid err = %v, want ErrNotFound", err)
	}
}

func TestStoreTypeMismatch(t *testing.T) {
	s, dir := tempStore(t, SHA1)
	h := writeLoose(t, dir, SHA1, TypeBlob, []byte("x"))
	if _, err := s.ReadCommit(h); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("ReadCommit(blob) err = %v, want ErrTypeMismatch", err)
	}
}

func TestStoreReadPackedDeltas(t *testing.T) {
	for _, algo := range []HashAlgo{SHA1, SHA256} {
		t.Run(string(algo), func(t *testing.T) {
			s, dir := tempStore(t, algo)

			base := bytes.Repeat([]byte("line of base content\n"), 20)
			ofsTarget := append(append([]byte{}, base...), []byte("appended by ofs delta\n")...)
			refTarget := append(append([]byte{}, base...), []byte("appended by ref delta\n")...)

			pw := newPackWriter(t, algo, 3)
			baseHash, baseOffset := pw.add(TypeBlob, base)
			ofsHash, _ := pw.addOfsDelta(TypeBlob, baseOffset, base, ofsTarget)
			refHash := pw.addRefDelta(TypeBlob, baseHash, base, refTarget)
			pw.finish(dir)

			for _, tc := range []struct {
				name string
				hash Hash
				want []byte
			}{
				{"base", baseHash, base},
				{"ofs", ofsHash, ofsTarget},
				{"ref", refHash, refTarget},
			} {
				data, err := s.ReadBlob(tc.hash)
				if err != nil {
					t.Fatalf("ReadBlob(%s): %v", tc.name, err)
				}
				if !bytes.Equal(data, tc.want) {
					t.Fatalf("ReadBlob(%s) mismatch", tc.name)
				}
				if got := algo.HashObject(TypeBlob, data); got != tc.hash {
					t.Fatalf("%s content hash = %s, want %s", tc.name, got, tc.hash)
				}

				br, err := s.OpenBlob(tc.hash)
				if err != nil {
					t.Fatalf("OpenBlob(%s): %v", tc.name, err)
				}
				streamed, err := io.ReadAll(br)
				br.Close()
				if err != nil {
					t.Fatalf("read stream %s: %v", tc.name, err)
				}
				if !bytes.Equal(streamed, tc.want) || br.Size() != int64(len(tc.want)) {
					t.Fatalf("OpenBlob(%s) size=%d len=%d, want %d", tc.name, br.Size(), len(streamed), len(tc.want))
				}
			}
		})
	}
}

func TestStoreRefDeltaAgainstLooseBase(t *testing.T) {
	s, dir := tempStore(t, SHA1)
	base := []byte("loose base\n")
	target := []byte("loose base\nplus more\n")
	baseHash := writeLoose(t, dir, SHA1, TypeBlob, base)

	pw := newPackWriter(t, SHA1, 1)
	h := pw.addRefDelta(TypeBlob, baseHash, base, target)
	pw.finish(dir)

	data, err := s.ReadBlob(h)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(data) != string(target) {
		t.Fatalf("ReadBlob = %q, want %q", data, target)
	}
}

func TestStoreSeesPackWrittenLater(t *testing.T) {
	s, dir := tempStore(t, SHA1)
	first := newPackWriter(t, SHA1, 1)
	h1, _ := first.add(TypeBlob, []byte("first\n"))
	first.finish(dir)
	if _, err := s.ReadBlob(h1); err != nil {
		t.Fatalf("ReadBlob first: %v", err)
	}

	// Force a distinct directory mtime on filesystems with coarse clocks.
	later := time.Now().Add(2 * time.Second)
	second := newPackWriter(t, SHA1, 1)
	h2, _ := second.add(TypeBlob, []byte("second\n"))
	second.finish(dir)
	if err := os.Chtimes(filepath.Join(dir, "objects", "pack"), later, later); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	if _, err := s.ReadBlob(h2); err != nil {
		t.Fatalf("ReadBlob second after push: %v", err)
	}
}

func TestStoreResolvePrefix(t *testing.T) {
	s, dir := tempStore(t, SHA1)
	h := writeLoose(t, dir, SHA1, TypeBlob, []byte("hello\n"))

	got, err := s.ResolvePrefix(string(h[:7]))
	if err != nil {
		t.Fatalf("ResolvePrefix: %v", err)
	}
	if got != h {
		t.Fatalf("ResolvePrefix = %s, want %s", got, h)
	}
	if _, err := s.ResolvePrefix("ab"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("short prefix err = %v, want ErrNotFound", err)
	}
	if _, err := s.ResolvePrefix("zzzzzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("non-hex prefix err = %v, want ErrNotFound", err)
	}
}

func TestStoreResolvePrefixAmbiguous(t *testing.T) {
	s, dir := tempStore(t, SHA1)

	// Half the candidates go loose, half into a pack, until two share a
	// four character prefix.
	seen := make(map[string]bool)
	var (
		collision string
		packed    [][]byte
	)
	for i := 0; i < 20000 && collision == ""; i++ {
		data := []byte(fmt.Sprintf("candidate %d\n", i))
		prefix := string(SHA1.HashObject(TypeBlob, data)[:4])
		if seen[prefix] {
			collision = prefix
		}
		seen[prefix] = true
		if i%2 == 0 {
			writeLoose(t, dir, SHA1, TypeBlob, data)
		} else {
			packed = append(packed, data)
		}
	}
	if collision == "" {
		t.Fatal("no prefix collision found")
	}
	pw := newPackWriter(t, SHA1, uint32(len(packed)))
	for _, data := range packed {
		pw.add(TypeBlob, data)
	}
	pw.finish(dir)

	if _, err := s.ResolvePrefix(collision); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("ResolvePrefix(%s) err = %v, want ErrAmbiguous", collision, err)
	}
}

func TestStorePeelAnnotatedTag(t *testing.T) {
	s, dir := tempStore(t, SHA1)
	tree := writeLoose(t, dir, SHA1, TypeTree, nil)
	when := time.Unix(1700000000, 0).UTC()
	commit := writeLoose(t, dir, SHA1, TypeCommit, MarshalCommit(&Commit{
		Tree:      tree,
		Author:    Signature{Name: "A", Email: "a@example.com", When: when},
		Committer: Signature{Name: "A", Email: "a@example.com", When: when},
		Message:   "init\n",
	}))
	tag := writeLoose(t, dir, SHA1, TypeTag, MarshalTag(&Tag{
		Object: commit, TargetType: TypeCommit, Name: "v1",
		Tagger:  &Signature{Name: "T", Email: "t@example.com", When: when},
		Message: "release\n",
	}))
	tagOfTag := writeLoose(t, dir, SHA1, TypeTag, MarshalTag(&Tag{
		Object: tag, TargetType: TypeTag, Name: "v1-again", Message: "again\n",
	}))

	got, objType, err := s.Peel(tagOfTag)
	if err != nil {
		t.Fatalf("Peel: %v", err)
	}
	if got != commit || objType != TypeCommit {
		t.Fatalf("Peel = (%s, %s), want (%s, commit)", got, objType, commit)
	}

	c, err := s.ReadCommit(commit)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.Tree != tree || c.Subject() != "init" {
		t.Fatalf("commit = %+v", c)
	}
	again, _ := s.ReadCommit(commit)
	if again != c {
		t.Fatal("second ReadCommit did not come from the cache")
	}
}
