package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrRLELength = errors.New("rle: decoded length mismatch")

// EncodeRLE encodes tile ids as base64 of uvarint (tile, run) pairs.
func EncodeRLE(ids []uint8) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(ids); {
		t := ids[i]
		run := 1
		for i+run < len(ids) && ids[i+run] == t {
			run++
		}
		buf.WriteByte(t)
		n := binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE reverses EncodeRLE. want is the expected tile count; runs that would
// exceed it fail instead of allocating.
func DecodeRLE(b64 string, want int) ([]uint8, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]uint8, 0, want)
	for i := 0; i < len(raw); {
		t := raw[i]
		i++
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("rle: bad varint at %d", i)
		}
		i += n
		if run == 0 || run > uint64(want-len(out)) {
			return nil, fmt.Errorf("%w: run %d at %d", ErrRLELength, run, len(out))
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, t)
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("%w: got %d want %d", ErrRLELength, len(out), want)
	}
	return out, nil
}
