package object

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zlib"
)

// The writers below build fixture object databases in the on-disk format
// git itself produces, so the readers can be tested without a git binary.

type countingWriter struct {
	w io.Writer
	n uint64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}

func deflate(t testing.TB, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

// packWriter writes a version 2 pack and remembers index rows for each
// entry. The trailer checksum uses the repository hash algorithm.
type packWriter struct {
	t       testing.TB
	algo    HashAlgo
	buf     bytes.Buffer
	hasher  hash.Hash
	out     io.Writer
	counter *countingWriter
	entries []PackIndexEntry
	count   uint32
}

func newPackWriter(t testing.TB, algo HashAlgo, numObjects uint32) *packWriter {
	t.Helper()
	pw := &packWriter{t: t, algo: algo, hasher: algo.New()}
	pw.counter = &countingWriter{w: &pw.buf}
	pw.out = io.MultiWriter(pw.counter, pw.hasher)

	header := make([]byte, packHeaderSize)
	copy(header, packMagic[:])
	binary.BigEndian.PutUint32(header[4:], supportedPackVersion)
	binary.BigEndian.PutUint32(header[8:], numObjects)
	pw.out.Write(header)
	pw.count = numObjects
	return pw
}

func encodePackEntryHeader(objType PackObjectType, size uint64) []byte {
	b := byte((objType&0x7)<<4) | byte(size&0x0f)
	size >>= 4
	out := make([]byte, 0, 10)
	if size > 0 {
		b |= 0x80
	}
	out = append(out, b)
	for size > 0 {
		next := byte(size & 0x7f)
		size >>= 7
		if size > 0 {
			next |= 0x80
		}
		out = append(out, next)
	}
	return out
}

func encodeOfsDeltaDistance(distance uint64) []byte {
	b := []byte{byte(distance & 0x7f)}
	for distance >>= 7; distance > 0; distance >>= 7 {
		distance--
		b = append([]byte{byte((distance & 0x7f) | 0x80)}, b...)
	}
	return b
}

func encodeDeltaVarint(v uint64) []byte {
	out := make([]byte, 0, 10)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v > 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

// buildDelta encodes target as a copy of the longest common prefix with
// base followed by literal inserts.
func buildDelta(base, target []byte) []byte {
	var out bytes.Buffer
	out.Write(encodeDeltaVarint(uint64(len(base))))
	out.Write(encodeDeltaVarint(uint64(len(target))))

	prefix := 0
	for prefix < len(base) && prefix < len(target) && prefix < 0xffff && base[prefix] == target[prefix] {
		prefix++
	}
	if prefix > 0 {
		// copy offset 0, two size bytes
		out.WriteByte(0x80 | 0x10 | 0x20)
		out.WriteByte(byte(prefix))
		out.WriteByte(byte(prefix >> 8))
	}
	for pos := prefix; pos < len(target); {
		chunk := min(len(target)-pos, 127)
		out.WriteByte(byte(chunk))
		out.Write(target[pos : pos+chunk])
		pos += chunk
	}
	return out.Bytes()
}

func (pw *packWriter) record(h Hash, offset uint64, raw []byte) {
	pw.entries = append(pw.entries, PackIndexEntry{Hash: h, Offset: offset, CRC32: crc32.ChecksumIEEE(raw)})
}

// add writes an undeltified entry and returns its offset.
func (pw *packWriter) add(objType ObjectType, data []byte) (Hash, uint64) {
	pw.t.Helper()
	packType := map[ObjectType]PackObjectType{
		TypeCommit: PackCommit, TypeTree: PackTree, TypeBlob: PackBlob, TypeTag: PackTag,
	}[objType]
	offset := pw.counter.n
	raw := append(encodePackEntryHeader(packType, uint64(len(data))), deflate(pw.t, data)...)
	pw.out.Write(raw)
	h := pw.algo.HashObject(objType, data)
	pw.record(h, offset, raw)
	return h, offset
}

// addOfsDelta writes target as an OFS_DELTA against the entry at baseOffset.
func (pw *packWriter) addOfsDelta(objType ObjectType, baseOffset uint64, base, target []byte) (Hash, uint64) {
	pw.t.Helper()
	offset := pw.counter.n
	delta := buildDelta(base, target)
	raw := encodePackEntryHeader(PackOfsDelta, uint64(len(delta)))
	raw = append(raw, encodeOfsDeltaDistance(offset-baseOffset)...)
	raw = append(raw, deflate(pw.t, delta)...)
	pw.out.Write(raw)
	h := pw.algo.HashObject(objType, target)
	pw.record(h, offset, raw)
	return h, offset
}

// addRefDelta writes target as a REF_DELTA against baseHash.
func (pw *packWriter) addRefDelta(objType ObjectType, baseHash Hash, base, target []byte) Hash {
	pw.t.Helper()
	offset := pw.counter.n
	rawBase, err := hashHexToBytes(baseHash)
	if err != nil {
		pw.t.Fatalf("ref delta base: %v", err)
	}
	delta := buildDelta(base, target)
	raw := encodePackEntryHeader(PackRefDelta, uint64(len(delta)))
	raw = append(raw, rawBase...)
	raw = append(raw, deflate(pw.t, delta)...)
	pw.out.Write(raw)
	h := pw.algo.HashObject(objType, target)
	pw.record(h, offset, raw)
	return h
}

// finish appends the trailer and writes pack + idx into gitDir.
func (pw *packWriter) finish(gitDir string) (packPath string) {
	pw.t.Helper()
	if uint32(len(pw.entries)) != pw.count {
		pw.t.Fatalf("pack object count mismatch: wrote %d, expected %d", len(pw.entries), pw.count)
	}
	sum := pw.hasher.Sum(nil)
	pw.buf.Write(sum)

	dir := filepath.Join(gitDir, "objects", "pack")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		pw.t.Fatalf("mkdir pack dir: %v", err)
	}
	base := filepath.Join(dir, fmt.Sprintf("pack-%x", sum))
	if err := os.WriteFile(base+".pack", pw.buf.Bytes(), 0o644); err != nil {
		pw.t.Fatalf("write pack: %v", err)
	}
	if err := os.WriteFile(base+".idx", writePackIndex(pw.t, pw.algo, pw.entries, sum), 0o644); err != nil {
		pw.t.Fatalf("write idx: %v", err)
	}
	return base + ".pack"
}

// writePackIndex encodes an idx v2 file for entries.
func writePackIndex(t testing.TB, algo HashAlgo, entries []PackIndexEntry, packChecksum []byte) []byte {
	t.Helper()
	sorted := make([]PackIndexEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Hash < sorted[j].Hash })

	var buf bytes.Buffer
	buf.Write(packIndexMagic[:])
	binary.Write(&buf, binary.BigEndian, uint32(packIndexVersion))

	var counts [256]uint32
	for _, e := range sorted {
		raw, _ := hashHexToBytes(e.Hash)
		counts[raw[0]]++
	}
	var running uint32
	for i := 0; i < 256; i++ {
		running += counts[i]
		binary.Write(&buf, binary.BigEndian, running)
	}
	for _, e := range sorted {
		raw, _ := hashHexToBytes(e.Hash)
		buf.Write(raw)
	}
	for _, e := range sorted {
		binary.Write(&buf, binary.BigEndian, e.CRC32)
	}
	var large []uint64
	for _, e := range sorted {
		if e.Offset < uint64(packIndexLargeOffsetBit) {
			binary.Write(&buf, binary.BigEndian, uint32(e.Offset))
			continue
		}
		binary.Write(&buf, binary.BigEndian, packIndexLargeOffsetBit|uint32(len(large)))
		large = append(large, e.Offset)
	}
	for _, off := range large {
		binary.Write(&buf, binary.BigEndian, off)
	}
	buf.Write(packChecksum)
	h := algo.New()
	h.Write(buf.Bytes())
	buf.Write(h.Sum(nil))
	return buf.Bytes()
}

// writeLoose stores a zlib-compressed loose object under gitDir.
func writeLoose(t testing.TB, gitDir string, algo HashAlgo, objType ObjectType, data []byte) Hash {
	t.Helper()
	h := algo.HashObject(objType, data)
	envelope := append([]byte(fmt.Sprintf("%s %d\x00", objType, len(data))), data...)
	dir := filepath.Join(gitDir, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, string(h[2:])), deflate(t, envelope), 0o444); err != nil {
		t.Fatalf("write loose object: %v", err)
	}
	return h
}

func TestEncodeOfsDeltaDistanceRoundTrip(t *testing.T) {
	for _, want := range []uint64{1, 2, 10, 127, 128, 255, 1024, 65535, 1 << 20, (1 << 31) + 17} {
		got, err := readOfsDeltaDistance(bytes.NewReader(encodeOfsDeltaDistance(want)))
		if err != nil {
			t.Fatalf("decode distance %d: %v", want, err)
		}
		if got != want {
			t.Fatalf("distance round-trip mismatch: got %d want %d", got, want)
		}
	}
}

func TestPackEntryHeaderRoundTrip(t *testing.T) {
	for _, size := range []uint64{0, 1, 15, 16, 127, 128, 1 << 20, 1<<35 + 3} {
		typ, got, err := readPackEntryHeader(bytes.NewReader(encodePackEntryHeader(PackBlob, size)))
		if err != nil {
			t.Fatalf("readPackEntryHeader(%d): %v", size, err)
		}
		if typ != PackBlob || got != size {
			t.Fatalf("header = (%d, %d), want (%d, %d)", typ, got, PackBlob, size)
		}
	}
}
