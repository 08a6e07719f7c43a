package object

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zlib"
)

// DefaultCacheSize is the number of parsed commits and trees kept per store.
const DefaultCacheSize = 4096

// maxTagDepth bounds tag-to-tag chains followed by Peel.
const maxTagDepth = 16

// Store reads a Git object database: zlib-compressed loose objects under
// objects/ab/cdef... and pack files under objects/pack.
//
// Parsed commits and trees are cached by hash. Cached values are shared
// between callers and must not be modified.
type Store struct {
	root  string
	algo  HashAlgo
	cache *lru.Cache[Hash, any]

	packsMu      sync.RWMutex
	packs        []*packFile
	retired      []*packFile
	packsModTime time.Time
	packsLoaded  bool
}

// NewStore creates a Store for the Git directory root (the directory that
// holds objects/). cacheSize <= 0 selects DefaultCacheSize.
func NewStore(root string, algo HashAlgo, cacheSize int) *Store {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[Hash, any](cacheSize)
	if err != nil {
		panic(fmt.Sprintf("object cache: %v", err))
	}
	return &Store{root: root, algo: algo, cache: cache}
}

// Algo reports the object format of the store.
func (s *Store) Algo() HashAlgo {
	return s.algo
}

// Close releases open pack files.
func (s *Store) Close() error {
	s.packsMu.Lock()
	defer s.packsMu.Unlock()

	var errs []error
	for _, p := range append(s.packs, s.retired...) {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.packs, s.retired, s.packsLoaded = nil, nil, false
	return errors.Join(errs...)
}

// objectPath returns the filesystem path for a loose object.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !s.algo.Valid(h) {
		return false
	}
	if _, err := os.Stat(s.objectPath(h)); err == nil {
		return true
	}
	_, _, ok := s.findPacked(h)
	return ok
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if !s.algo.Valid(h) {
		return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
	}

	objType, data, err := s.readLoose(h)
	if err == nil {
		return objType, data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}

	p, entry, ok := s.findPacked(h)
	if !ok {
		return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
	}
	objType, data, err = p.read(entry.Offset, s.Read)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	return objType, data, nil
}

func (s *Store) readLoose(h Hash) (ObjectType, []byte, error) {
	f, err := os.Open(s.objectPath(h))
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	zr, err := zlib.NewReader(bufio.NewReader(f))
	if err != nil {
		return "", nil, fmt.Errorf("%w: zlib: %v", ErrMalformed, err)
	}
	defer zr.Close()

	br := bufio.NewReader(zr)
	objType, size, err := readLooseHeader(br)
	if err != nil {
		return "", nil, err
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(br, data); err != nil {
		return "", nil, fmt.Errorf("%w: content truncated: %v", ErrMalformed, err)
	}
	return objType, data, nil
}

// readLooseHeader parses the "type len\0" envelope of a loose object.
func readLooseHeader(br *bufio.Reader) (ObjectType, int64, error) {
	header, err := br.ReadString(0)
	if err != nil {
		return "", 0, fmt.Errorf("%w: invalid format (no NUL)", ErrMalformed)
	}
	header = strings.TrimSuffix(header, "\x00")
	typ, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", 0, fmt.Errorf("%w: invalid header %q", ErrMalformed, header)
	}
	size, err := strconv.ParseInt(lenStr, 10, 64)
	if err != nil || size < 0 {
		return "", 0, fmt.Errorf("%w: invalid length %q", ErrMalformed, lenStr)
	}
	return ObjectType(typ), size, nil
}

// BlobReader streams blob content without holding it in one buffer.
type BlobReader struct {
	io.Reader
	size   int64
	closer func() error
}

// Size returns the uncompressed content length.
func (b *BlobReader) Size() int64 { return b.size }

func (b *BlobReader) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// OpenBlob returns a streaming reader over a blob's content.
func (s *Store) OpenBlob(h Hash) (*BlobReader, error) {
	if !s.algo.Valid(h) {
		return nil, fmt.Errorf("object open %s: %w", h, ErrNotFound)
	}

	f, err := os.Open(s.objectPath(h))
	if err == nil {
		br, err := s.openLoose(h, f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return br, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("object open %s: %w", h, err)
	}

	p, entry, ok := s.findPacked(h)
	if !ok {
		return nil, fmt.Errorf("object open %s: %w", h, ErrNotFound)
	}
	objType, size, rc, err := p.open(entry.Offset, s.Read)
	if err != nil {
		return nil, fmt.Errorf("object open %s: %w", h, err)
	}
	if objType != TypeBlob {
		rc.Close()
		return nil, fmt.Errorf("object %s: %w: got %q, want %q", h, ErrTypeMismatch, objType, TypeBlob)
	}
	return &BlobReader{Reader: rc, size: size, closer: rc.Close}, nil
}

func (s *Store) openLoose(h Hash, f *os.File) (*BlobReader, error) {
	zr, err := zlib.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("object open %s: %w: zlib: %v", h, ErrMalformed, err)
	}
	br := bufio.NewReader(zr)
	objType, size, err := readLooseHeader(br)
	if err != nil {
		zr.Close()
		return nil, fmt.Errorf("object open %s: %w", h, err)
	}
	if objType != TypeBlob {
		zr.Close()
		return nil, fmt.Errorf("object %s: %w: got %q, want %q", h, ErrTypeMismatch, objType, TypeBlob)
	}
	return &BlobReader{
		Reader: io.LimitReader(br, size),
		size:   size,
		closer: func() error {
			zr.Close()
			return f.Close()
		},
	}, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: %w: got %q, want %q", h, ErrTypeMismatch, objType, want)
	}
	return data, nil
}

// ReadBlob reads a whole blob into memory.
func (s *Store) ReadBlob(h Hash) ([]byte, error) {
	return s.readTyped(h, TypeBlob)
}

// ReadTree reads and parses a tree.
func (s *Store) ReadTree(h Hash) (*Tree, error) {
	if v, ok := s.cache.Get(h); ok {
		if tr, ok := v.(*Tree); ok {
			return tr, nil
		}
	}
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	tr, err := UnmarshalTree(data, s.algo)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	s.cache.Add(h, tr)
	return tr, nil
}

// ReadCommit reads and parses a commit.
func (s *Store) ReadCommit(h Hash) (*Commit, error) {
	if v, ok := s.cache.Get(h); ok {
		if c, ok := v.(*Commit); ok {
			return c, nil
		}
	}
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	c, err := UnmarshalCommit(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	s.cache.Add(h, c)
	return c, nil
}

// ReadTag reads and parses an annotated tag.
func (s *Store) ReadTag(h Hash) (*Tag, error) {
	data, err := s.readTyped(h, TypeTag)
	if err != nil {
		return nil, err
	}
	t, err := UnmarshalTag(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return t, nil
}

// Peel follows annotated tags until it reaches a non-tag object and returns
// that object's hash and type.
func (s *Store) Peel(h Hash) (Hash, ObjectType, error) {
	for depth := 0; depth < maxTagDepth; depth++ {
		objType, data, err := s.Read(h)
		if err != nil {
			return "", "", err
		}
		if objType != TypeTag {
			return h, objType, nil
		}
		t, err := UnmarshalTag(data)
		if err != nil {
			return "", "", fmt.Errorf("object %s: %w", h, err)
		}
		h = t.Object
	}
	return "", "", fmt.Errorf("peel %s: %w: tag chain too long", h, ErrMalformed)
}
