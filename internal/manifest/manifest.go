package manifest

import (
	"encoding/hex"
	"io"
	"sort"

	"github.com/zeebo/blake3"
)

// Sum is a 256-bit BLAKE3 content fingerprint.
type Sum [32]byte

// Zero is the fingerprint of "no content" (absent file).
var Zero Sum

func (s Sum) String() string { return hex.EncodeToString(s[:]) }

func (s Sum) IsZero() bool { return s == Zero }

// SumBytes fingerprints an in-memory byte slice.
func SumBytes(data []byte) Sum {
	return Sum(blake3.Sum256(data))
}

// SumReader fingerprints a stream and reports how many bytes it read.
func SumReader(r io.Reader) (Sum, int64, error) {
	h := blake3.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Zero, 0, err
	}
	var s Sum
	copy(s[:], h.Sum(nil))
	return s, n, nil
}

// FileEntry describes one regular file inside a scanned tree.
// Paths are relative, forward-slash separated and case-sensitive.
type FileEntry struct {
	Path string
	Size int64
	Sum  Sum
	Exec bool
}

// Manifest maps relative paths to file entries for a single tree.
// Entries from different trees must never be mixed in one manifest.
type Manifest map[string]FileEntry

// Paths returns all manifest paths in byte-wise sorted order.
func (m Manifest) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
