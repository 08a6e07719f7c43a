package object

import (
	"bytes"
	"fmt"
	"io"
)

func decodeDeltaVarint(r io.ByteReader) (uint64, error) {
	var (
		value uint64
		shift uint
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("delta varint too large")
		}
	}
}

// applyDelta applies Git delta instructions to base and returns the result.
// A delta is two varints (base size, result size) followed by copy commands
// (high bit set, offset/size bytes selected by the low seven bits) and insert
// commands (low seven bits give the literal length).
func applyDelta(base, delta []byte) ([]byte, error) {
	dr := bytes.NewReader(delta)

	baseSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("read base size: %w", err)
	}
	if int(baseSize) != len(base) {
		return nil, fmt.Errorf("delta base size mismatch: got %d want %d", baseSize, len(base))
	}
	resultSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("read result size: %w", err)
	}

	out := make([]byte, 0, resultSize)
	for dr.Len() > 0 {
		cmd, err := dr.ReadByte()
		if err != nil {
			return nil, err
		}
		if cmd&0x80 != 0 {
			var offset, size uint64
			for i := uint(0); i < 4; i++ {
				if cmd&(1<<i) == 0 {
					continue
				}
				b, err := readDeltaCopyArgByte(dr, "offset", i)
				if err != nil {
					return nil, err
				}
				offset |= uint64(b) << (8 * i)
			}
			for i := uint(0); i < 3; i++ {
				if cmd&(0x10<<i) == 0 {
					continue
				}
				b, err := readDeltaCopyArgByte(dr, "size", i)
				if err != nil {
					return nil, err
				}
				size |= uint64(b) << (8 * i)
			}
			if size == 0 {
				size = 0x10000
			}
			if offset+size > uint64(len(base)) {
				return nil, fmt.Errorf("delta copy out of bounds: offset %d size %d base %d", offset, size, len(base))
			}
			out = append(out, base[offset:offset+size]...)
			continue
		}

		if cmd == 0 {
			return nil, fmt.Errorf("invalid delta command: 0")
		}
		start := len(out)
		out = append(out, make([]byte, int(cmd))...)
		if _, err := io.ReadFull(dr, out[start:]); err != nil {
			return nil, fmt.Errorf("delta insert: %w", err)
		}
	}

	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("delta result size mismatch: got %d expected %d", len(out), resultSize)
	}
	return out, nil
}

func readDeltaCopyArgByte(r io.ByteReader, field string, i uint) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("delta copy %s byte %d: %w", field, i, err)
	}
	return b, nil
}
