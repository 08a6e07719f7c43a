package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// maxDeltaDepth bounds delta chains so a corrupt pack cannot recurse forever.
const maxDeltaDepth = 10000

// packFile gives random access to the entries of one .pack file through its
// .idx. The file handle stays open; ReadAt is safe for concurrent use.
type packFile struct {
	name string
	algo HashAlgo
	idx  *PackIndex
	f    *os.File
	size int64
}

func openPackFile(idxPath string, algo HashAlgo) (*packFile, error) {
	idxData, err := os.ReadFile(idxPath)
	if err != nil {
		return nil, fmt.Errorf("read pack index %s: %w", filepath.Base(idxPath), err)
	}
	idx, err := ReadPackIndex(idxData, algo)
	if err != nil {
		return nil, fmt.Errorf("parse pack index %s: %w", filepath.Base(idxPath), err)
	}

	packPath := packPathForIndex(idxPath)
	f, err := os.Open(packPath)
	if err != nil {
		return nil, fmt.Errorf("open pack %s: %w", filepath.Base(packPath), err)
	}
	p := &packFile{name: filepath.Base(packPath), algo: algo, idx: idx, f: f}
	if err := p.validate(); err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

// validate checks the header and that the trailer matches the checksum the
// index was built for. The full pack is not rehashed.
func (p *packFile) validate() error {
	info, err := p.f.Stat()
	if err != nil {
		return fmt.Errorf("stat pack %s: %w", p.name, err)
	}
	p.size = info.Size()
	hashSize := int64(p.algo.Size())
	if p.size < packHeaderSize+hashSize {
		return fmt.Errorf("pack %s too short: %d", p.name, p.size)
	}

	header := make([]byte, packHeaderSize)
	if _, err := p.f.ReadAt(header, 0); err != nil {
		return fmt.Errorf("read pack %s header: %w", p.name, err)
	}
	h, err := UnmarshalPackHeader(header)
	if err != nil {
		return fmt.Errorf("pack %s: %w", p.name, err)
	}
	if int(h.NumObjects) != p.idx.Len() {
		return fmt.Errorf("pack %s: object count %d does not match index %d", p.name, h.NumObjects, p.idx.Len())
	}

	trailer := make([]byte, hashSize)
	if _, err := p.f.ReadAt(trailer, p.size-hashSize); err != nil {
		return fmt.Errorf("read pack %s trailer: %w", p.name, err)
	}
	if hashFromRaw(trailer) != p.idx.PackChecksum {
		return fmt.Errorf("pack %s: checksum does not match its index", p.name)
	}
	return nil
}

func (p *packFile) Close() error {
	return p.f.Close()
}

// entryReader positions a buffered reader at offset.
func (p *packFile) entryReader(offset uint64) (*bufio.Reader, error) {
	if int64(offset) < packHeaderSize || int64(offset) >= p.size {
		return nil, fmt.Errorf("pack %s: offset %d out of range", p.name, offset)
	}
	return bufio.NewReader(io.NewSectionReader(p.f, int64(offset), p.size-int64(offset))), nil
}

// read decodes the entry at offset, resolving deltas. refBase looks up
// REF_DELTA bases, which may live in another pack or as loose objects.
func (p *packFile) read(offset uint64, refBase func(Hash) (ObjectType, []byte, error)) (ObjectType, []byte, error) {
	return p.readDepth(offset, refBase, 0)
}

func (p *packFile) readDepth(offset uint64, refBase func(Hash) (ObjectType, []byte, error), depth int) (ObjectType, []byte, error) {
	if depth > maxDeltaDepth {
		return "", nil, fmt.Errorf("pack %s: delta chain too deep at offset %d", p.name, offset)
	}
	br, err := p.entryReader(offset)
	if err != nil {
		return "", nil, err
	}
	packType, size, err := readPackEntryHeader(br)
	if err != nil {
		return "", nil, fmt.Errorf("pack %s offset %d: %w", p.name, offset, err)
	}

	var (
		baseType ObjectType
		base     []byte
	)
	switch packType {
	case PackCommit, PackTree, PackBlob, PackTag:
		objType, _ := packType.objectType()
		data, err := inflateExact(br, size)
		if err != nil {
			return "", nil, fmt.Errorf("pack %s offset %d: %w", p.name, offset, err)
		}
		return objType, data, nil
	case PackOfsDelta:
		dist, err := readOfsDeltaDistance(br)
		if err != nil {
			return "", nil, fmt.Errorf("pack %s offset %d: %w", p.name, offset, err)
		}
		if dist == 0 || dist > offset {
			return "", nil, fmt.Errorf("pack %s offset %d: invalid ofs-delta distance %d", p.name, offset, dist)
		}
		baseType, base, err = p.readDepth(offset-dist, refBase, depth+1)
		if err != nil {
			return "", nil, err
		}
	case PackRefDelta:
		raw := make([]byte, p.algo.Size())
		if _, err := io.ReadFull(br, raw); err != nil {
			return "", nil, fmt.Errorf("pack %s offset %d: ref-delta base: %w", p.name, offset, err)
		}
		baseHash := hashFromRaw(raw)
		if e, ok := p.idx.Find(baseHash); ok {
			baseType, base, err = p.readDepth(e.Offset, refBase, depth+1)
		} else {
			baseType, base, err = refBase(baseHash)
		}
		if err != nil {
			return "", nil, fmt.Errorf("pack %s offset %d: ref-delta base %s: %w", p.name, offset, baseHash, err)
		}
	default:
		return "", nil, fmt.Errorf("pack %s offset %d: %w: unknown entry type %d", p.name, offset, ErrMalformed, packType)
	}

	delta, err := inflateExact(br, size)
	if err != nil {
		return "", nil, fmt.Errorf("pack %s offset %d: delta: %w", p.name, offset, err)
	}
	data, err := applyDelta(base, delta)
	if err != nil {
		return "", nil, fmt.Errorf("pack %s offset %d: %w: %v", p.name, offset, ErrMalformed, err)
	}
	return baseType, data, nil
}

// open returns a streaming reader for an undeltified entry. Deltified
// entries are materialised since a delta needs its whole base.
func (p *packFile) open(offset uint64, refBase func(Hash) (ObjectType, []byte, error)) (ObjectType, int64, io.ReadCloser, error) {
	br, err := p.entryReader(offset)
	if err != nil {
		return "", 0, nil, err
	}
	packType, size, err := readPackEntryHeader(br)
	if err != nil {
		return "", 0, nil, fmt.Errorf("pack %s offset %d: %w", p.name, offset, err)
	}
	if objType, ok := packType.objectType(); ok {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return "", 0, nil, fmt.Errorf("pack %s offset %d: zlib: %w", p.name, offset, err)
		}
		return objType, int64(size), zr, nil
	}

	objType, data, err := p.read(offset, refBase)
	if err != nil {
		return "", 0, nil, err
	}
	return objType, int64(len(data)), io.NopCloser(bytes.NewReader(data)), nil
}

// inflateExact decompresses exactly size bytes of a zlib stream.
func inflateExact(r io.Reader, size uint64) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer zr.Close()

	out := make([]byte, size)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}

func packPathForIndex(idxPath string) string {
	return strings.TrimSuffix(idxPath, ".idx") + ".pack"
}
