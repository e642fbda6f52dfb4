package delta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"
)

// Decode replays a delta against the exact old bytes it was encoded from
// and returns the reconstructed new bytes. Replay is bit-exact and fully
// validated: wrong source bytes or a damaged delta fail with ErrCorrupt,
// never a silently wrong result.
func Decode(oldData, deltaData []byte) ([]byte, error) {
	r := bytes.NewReader(deltaData)

	oldLen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	newLen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	var sums [16]byte
	if _, err := io.ReadFull(r, sums[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	oldSum := binary.LittleEndian.Uint64(sums[:8])
	newSum := binary.LittleEndian.Uint64(sums[8:])

	if oldLen != uint64(len(oldData)) {
		return nil, fmt.Errorf("%w: source is %d bytes, delta expects %d", ErrCorrupt, len(oldData), oldLen)
	}
	if xxh3.Hash(oldData) != oldSum {
		return nil, fmt.Errorf("%w: source checksum mismatch", ErrCorrupt)
	}

	opCount, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated operation count", ErrCorrupt)
	}

	// newLen is untrusted until the final length check; preallocation stays
	// bounded so a damaged header cannot drive a huge allocation.
	capHint := newLen
	if capHint > maxPrealloc {
		capHint = maxPrealloc
	}
	out := make([]byte, 0, capHint)
	for k := uint64(0); k < opCount; k++ {
		kind, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated operation stream", ErrCorrupt)
		}
		switch kind {
		case opCopy:
			off, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, fmt.Errorf("%w: truncated copy operation", ErrCorrupt)
			}
			n, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, fmt.Errorf("%w: truncated copy operation", ErrCorrupt)
			}
			if off > uint64(len(oldData)) || n > uint64(len(oldData))-off {
				return nil, fmt.Errorf("%w: copy range [%d,%d) outside source", ErrCorrupt, off, off+n)
			}
			if uint64(len(out))+n > newLen {
				return nil, fmt.Errorf("%w: output exceeds declared length", ErrCorrupt)
			}
			out = append(out, oldData[off:off+n]...)
		case opInsert:
			n, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, fmt.Errorf("%w: truncated insert operation", ErrCorrupt)
			}
			if n > uint64(r.Len()) {
				return nil, fmt.Errorf("%w: insert literal truncated", ErrCorrupt)
			}
			if uint64(len(out))+n > newLen {
				return nil, fmt.Errorf("%w: output exceeds declared length", ErrCorrupt)
			}
			lit := make([]byte, n)
			if _, err := io.ReadFull(r, lit); err != nil {
				return nil, fmt.Errorf("%w: insert literal truncated", ErrCorrupt)
			}
			out = append(out, lit...)
		default:
			return nil, fmt.Errorf("%w: unknown operation kind 0x%02x", ErrCorrupt, kind)
		}
	}

	if uint64(len(out)) != newLen {
		return nil, fmt.Errorf("%w: replay produced %d bytes, expected %d", ErrCorrupt, len(out), newLen)
	}
	if xxh3.Hash(out) != newSum {
		return nil, fmt.Errorf("%w: target checksum mismatch", ErrCorrupt)
	}
	return out, nil
}
