// Package patch defines the versioned binary payload container that carries
// a patch from build time into the generated updater.
package patch

import (
	"errors"

	"github.com/keshon/bpg/internal/manifest"
)

// Magic marks the start of a payload.
const Magic = "BPGPATCH"

// FormatVersion is the newest container layout this code understands.
const FormatVersion = 1

var (
	// ErrCorruptPatch reports a malformed or truncated payload.
	ErrCorruptPatch = errors.New("corrupt patch payload")
	// ErrUnsupportedFormat reports a payload written by a newer format version.
	ErrUnsupportedFormat = errors.New("unsupported payload format")
	// ErrEmptyPatch reports a build where the trees are identical and the
	// version labels are too; building a no-op updater is a caller error.
	ErrEmptyPatch = errors.New("empty patch: no changes between identical versions")
)

// Meta describes the product and version transition carried by a payload.
// It is written once by the packager and read-only afterwards.
type Meta struct {
	Product     string
	FromVersion string
	ToVersion   string
	DeleteExtra bool
}

// Kind tags one packaged change record. Wire values are fixed.
type Kind byte

const (
	KindUnchanged     Kind = 1
	KindAdded         Kind = 2
	KindRemoved       Kind = 3
	KindModifiedDelta Kind = 4
	KindModifiedFull  Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindUnchanged:
		return "unchanged"
	case KindAdded:
		return "added"
	case KindRemoved:
		return "removed"
	case KindModifiedDelta:
		return "modified (delta)"
	case KindModifiedFull:
		return "modified (full)"
	}
	return "unknown"
}

func (k Kind) valid() bool {
	return k >= KindUnchanged && k <= KindModifiedFull
}

// Record is one packaged change. OldSum is the fingerprint the target file
// must have before applying (zero for Added); NewSum is the fingerprint the
// file must have afterwards (zero for Removed). Blob holds the delta or the
// full new content; it is empty for Unchanged and Removed records.
type Record struct {
	Kind   Kind
	Path   string
	Exec   bool
	OldSum manifest.Sum
	NewSum manifest.Sum
	Blob   []byte
}

// Payload is the parsed form of an embedded patch.
type Payload struct {
	Meta    Meta
	Records []Record
}

// Counts reports how many records of each mutating kind the payload carries.
func (p *Payload) Counts() (added, modified, removed int) {
	for _, r := range p.Records {
		switch r.Kind {
		case KindAdded:
			added++
		case KindModifiedDelta, KindModifiedFull:
			modified++
		case KindRemoved:
			removed++
		}
	}
	return
}
