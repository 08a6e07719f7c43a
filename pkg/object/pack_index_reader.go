package object

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

const (
	packIndexVersion        = 2
	packIndexHeaderSize     = 8
	packIndexFanoutSize     = 256 * 4
	packIndexLargeOffsetBit = uint32(1 << 31)
)

var packIndexMagic = [4]byte{0xff, 't', 'O', 'c'}

// PackIndexEntry is one row in a pack index file.
type PackIndexEntry struct {
	Hash   Hash
	Offset uint64
	CRC32  uint32
}

// PackIndex is an in-memory representation of an idx v2 file.
type PackIndex struct {
	fanout        [256]uint32
	entries       []PackIndexEntry
	PackChecksum  Hash
	IndexChecksum Hash
}

// Len returns the number of objects in the index.
func (idx *PackIndex) Len() int {
	return len(idx.entries)
}

// Entries returns a copy of all index entries in lexicographic hash order.
func (idx *PackIndex) Entries() []PackIndexEntry {
	out := make([]PackIndexEntry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// bucket returns the [start, end) entry range sharing h's first byte.
func (idx *PackIndex) bucket(prefix string) (int, int, bool) {
	if len(prefix) < 2 {
		return 0, 0, false
	}
	raw := hexByte(prefix[0], prefix[1])
	if raw < 0 {
		return 0, 0, false
	}
	start := uint32(0)
	if raw > 0 {
		start = idx.fanout[raw-1]
	}
	end := idx.fanout[raw]
	return int(start), int(end), end > start
}

// Find performs fanout-bounded binary search for a hash in the index.
func (idx *PackIndex) Find(h Hash) (PackIndexEntry, bool) {
	start, end, ok := idx.bucket(string(h))
	if !ok {
		return PackIndexEntry{}, false
	}
	i := start + sort.Search(end-start, func(i int) bool {
		return idx.entries[start+i].Hash >= h
	})
	if i < end && idx.entries[i].Hash == h {
		return idx.entries[i], true
	}
	return PackIndexEntry{}, false
}

// FindPrefix returns up to limit hashes starting with the lowercase hex
// prefix.
func (idx *PackIndex) FindPrefix(prefix string, limit int) []Hash {
	start, end, ok := idx.bucket(prefix)
	if !ok {
		return nil
	}
	i := start + sort.Search(end-start, func(i int) bool {
		return string(idx.entries[start+i].Hash) >= prefix
	})
	var out []Hash
	for ; i < end && len(out) < limit; i++ {
		if !strings.HasPrefix(string(idx.entries[i].Hash), prefix) {
			break
		}
		out = append(out, idx.entries[i].Hash)
	}
	return out
}

// ReadPackIndex parses and validates an idx v2 file for a repository using
// algo object names.
func ReadPackIndex(data []byte, algo HashAlgo) (*PackIndex, error) {
	hashSize := algo.Size()
	trailerSize := 2 * hashSize
	minLen := packIndexHeaderSize + packIndexFanoutSize + trailerSize
	if len(data) < minLen {
		return nil, fmt.Errorf("pack index too short: %d", len(data))
	}
	if string(data[:4]) != string(packIndexMagic[:]) {
		return nil, fmt.Errorf("unsupported pack index format (version 1 or bad magic %q)", data[:4])
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != packIndexVersion {
		return nil, fmt.Errorf("unsupported pack index version %d", version)
	}

	h := algo.New()
	h.Write(data[:len(data)-hashSize])
	if !bytes.Equal(h.Sum(nil), data[len(data)-hashSize:]) {
		return nil, fmt.Errorf("pack index checksum mismatch")
	}

	var fanout [256]uint32
	cursor := packIndexHeaderSize
	for i := 0; i < 256; i++ {
		fanout[i] = binary.BigEndian.Uint32(data[cursor:])
		if i > 0 && fanout[i] < fanout[i-1] {
			return nil, fmt.Errorf("pack index fanout not monotonic at %d", i)
		}
		cursor += 4
	}
	n := int(fanout[255])

	namesLen := n * hashSize
	crcLen := n * 4
	offsetLen := n * 4
	if cursor+namesLen+crcLen+offsetLen+trailerSize > len(data) {
		return nil, fmt.Errorf("pack index truncated")
	}

	namesStart := cursor
	crcStart := namesStart + namesLen
	offsetStart := crcStart + crcLen
	cursor = offsetStart + offsetLen

	largeStart := cursor
	largeCount := (len(data) - trailerSize - largeStart) / 8
	if largeStart+largeCount*8+trailerSize != len(data) {
		return nil, fmt.Errorf("pack index trailing data")
	}

	entries := make([]PackIndexEntry, n)
	for i := 0; i < n; i++ {
		v := binary.BigEndian.Uint32(data[offsetStart+(i*4):])
		offset := uint64(v)
		if v&packIndexLargeOffsetBit != 0 {
			ref := int(v &^ packIndexLargeOffsetBit)
			if ref >= largeCount {
				return nil, fmt.Errorf("pack index invalid large offset reference %d", ref)
			}
			offset = binary.BigEndian.Uint64(data[largeStart+ref*8:])
		}
		entries[i] = PackIndexEntry{
			Hash:   hashFromRaw(data[namesStart+(i*hashSize) : namesStart+((i+1)*hashSize)]),
			CRC32:  binary.BigEndian.Uint32(data[crcStart+(i*4):]),
			Offset: offset,
		}
		if i > 0 && entries[i].Hash <= entries[i-1].Hash {
			return nil, fmt.Errorf("pack index hash table not sorted at %d", i)
		}
	}

	trailer := data[len(data)-trailerSize:]
	return &PackIndex{
		fanout:        fanout,
		entries:       entries,
		PackChecksum:  hashFromRaw(trailer[:hashSize]),
		IndexChecksum: hashFromRaw(trailer[hashSize:]),
	}, nil
}

func hexByte(hi, lo byte) int {
	h, l := unhex(hi), unhex(lo)
	if h < 0 || l < 0 {
		return -1
	}
	return h<<4 | l
}

func unhex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return -1
	}
}
