package diff

import (
	"github.com/keshon/bpg/internal/manifest"
	"github.com/keshon/bpg/internal/util"
)

// Kind classifies one path across the old and new trees.
type Kind int

const (
	Unchanged Kind = iota
	Added
	Removed
	Modified
)

func (k Kind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	}
	return "unknown"
}

// Change is one classified difference between the two manifests.
// Old is zero for Added entries, New is zero for Removed entries.
type Change struct {
	Kind Kind
	Path string
	Old  manifest.FileEntry
	New  manifest.FileEntry
}

// Diff compares two manifests and returns one change per path in the union
// of both trees, sorted byte-wise by path. It is pure: the result depends
// only on the two inputs, never on construction order.
func Diff(oldm, newm manifest.Manifest) []Change {
	union := make(map[string]struct{}, len(oldm)+len(newm))
	for p := range oldm {
		union[p] = struct{}{}
	}
	for p := range newm {
		union[p] = struct{}{}
	}

	changes := make([]Change, 0, len(union))
	for _, p := range util.SortedKeys(union) {
		oldE, inOld := oldm[p]
		newE, inNew := newm[p]
		switch {
		case inOld && !inNew:
			changes = append(changes, Change{Kind: Removed, Path: p, Old: oldE})
		case !inOld && inNew:
			changes = append(changes, Change{Kind: Added, Path: p, New: newE})
		case oldE.Sum != newE.Sum:
			changes = append(changes, Change{Kind: Modified, Path: p, Old: oldE, New: newE})
		default:
			changes = append(changes, Change{Kind: Unchanged, Path: p, Old: oldE, New: newE})
		}
	}
	return changes
}
