// Package delta computes and replays compact binary deltas between two
// byte sequences as a sequence of copy (from the old bytes) and insert
// (literal) operations.
package delta

import "errors"

// ErrCorrupt reports a delta that cannot be replayed faithfully: malformed
// operations, out-of-range copy references, or checksum mismatches between
// the delta and the bytes it is applied to.
var ErrCorrupt = errors.New("corrupt delta")

const (
	opCopy   = 0x00
	opInsert = 0x01
)

// rolling hash parameters (polynomial Rabin-Karp over a fixed window)
const hashBase = 0x01000193

// maxPrealloc caps the output buffer reserved up front during decode.
const maxPrealloc = 1 << 20

// blockSize picks the match granularity from the old file size. Small files
// get fine-grained matching, large files a coarser index to bound memory.
func blockSize(oldLen int) int {
	switch {
	case oldLen < 4*1024:
		return 64
	case oldLen < 1<<20:
		return 512
	default:
		return 2048
	}
}

type op struct {
	kind byte
	off  int    // copy: offset into old
	n    int    // copy: length
	lit  []byte // insert: literal bytes
}
