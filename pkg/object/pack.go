package object

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	packHeaderSize       = 12
	supportedPackVersion = 2
)

var packMagic = [4]byte{'P', 'A', 'C', 'K'}

// PackObjectType is the Git pack object type encoding used in object entry
// headers. Values match the canonical Git storage format.
type PackObjectType uint8

const (
	PackCommit   PackObjectType = 1
	PackTree     PackObjectType = 2
	PackBlob     PackObjectType = 3
	PackTag      PackObjectType = 4
	PackOfsDelta PackObjectType = 6
	PackRefDelta PackObjectType = 7
)

// PackHeader is the fixed-size Git pack header.
//
// Bytes:
//   - 0..3:  "PACK"
//   - 4..7:  version (big-endian)
//   - 8..11: number of objects (big-endian)
type PackHeader struct {
	Version    uint32
	NumObjects uint32
}

// UnmarshalPackHeader parses a canonical Git pack header.
func UnmarshalPackHeader(data []byte) (*PackHeader, error) {
	if len(data) < packHeaderSize {
		return nil, fmt.Errorf("pack header too short: got %d bytes", len(data))
	}
	if string(data[:4]) != string(packMagic[:]) {
		return nil, fmt.Errorf("invalid pack magic %q", data[:4])
	}

	version := binary.BigEndian.Uint32(data[4:8])
	if version != supportedPackVersion && version != 3 {
		return nil, fmt.Errorf("unsupported pack version %d", version)
	}

	return &PackHeader{
		Version:    version,
		NumObjects: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

func (t PackObjectType) objectType() (ObjectType, bool) {
	switch t {
	case PackCommit:
		return TypeCommit, true
	case PackTree:
		return TypeTree, true
	case PackBlob:
		return TypeBlob, true
	case PackTag:
		return TypeTag, true
	default:
		return "", false
	}
}

// readPackEntryHeader decodes the variable-length type/size header that
// starts every pack entry.
func readPackEntryHeader(r io.ByteReader) (PackObjectType, uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, fmt.Errorf("entry header truncated: %w", err)
	}
	objType := PackObjectType((b >> 4) & 0x7)
	size := uint64(b & 0x0f)
	shift := uint(4)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, fmt.Errorf("entry header truncated: %w", err)
		}
		if shift > 57 {
			return 0, 0, fmt.Errorf("entry header size overflow")
		}
		size |= uint64(b&0x7f) << shift
		shift += 7
	}
	return objType, size, nil
}

// readOfsDeltaDistance decodes the backward base distance of an OFS_DELTA
// entry.
func readOfsDeltaDistance(r io.ByteReader) (uint64, error) {
	c, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("ofs-delta distance truncated: %w", err)
	}
	offset := uint64(c & 0x7f)
	for c&0x80 != 0 {
		c, err = r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("ofs-delta distance truncated: %w", err)
		}
		offset = ((offset + 1) << 7) | uint64(c&0x7f)
	}
	return offset, nil
}
