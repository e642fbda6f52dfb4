package diff_test

import (
	"reflect"
	"testing"

	"github.com/keshon/bpg/internal/diff"
	"github.com/keshon/bpg/internal/manifest"
)

func entry(path, content string) manifest.FileEntry {
	return manifest.FileEntry{
		Path: path,
		Size: int64(len(content)),
		Sum:  manifest.SumBytes([]byte(content)),
	}
}

func TestDiffScenario(t *testing.T) {
	oldm := manifest.Manifest{
		"a.txt": entry("a.txt", "hello"),
		"b.txt": entry("b.txt", "world"),
	}
	newm := manifest.Manifest{
		"a.txt": entry("a.txt", "hello!"),
		"c.txt": entry("c.txt", "new"),
	}

	changes := diff.Diff(oldm, newm)
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d: %+v", len(changes), changes)
	}

	want := []struct {
		kind diff.Kind
		path string
	}{
		{diff.Modified, "a.txt"},
		{diff.Removed, "b.txt"},
		{diff.Added, "c.txt"},
	}
	for i, w := range want {
		if changes[i].Kind != w.kind || changes[i].Path != w.path {
			t.Errorf("change %d: got %s %s, want %s %s",
				i, changes[i].Kind, changes[i].Path, w.kind, w.path)
		}
	}
}

func TestDiffUnchanged(t *testing.T) {
	m := manifest.Manifest{
		"x": entry("x", "same"),
	}
	changes := diff.Diff(m, m)
	if len(changes) != 1 || changes[0].Kind != diff.Unchanged {
		t.Fatalf("expected single unchanged entry, got %+v", changes)
	}
}

func TestDiffEmptyTrees(t *testing.T) {
	if changes := diff.Diff(manifest.Manifest{}, manifest.Manifest{}); len(changes) != 0 {
		t.Fatalf("expected no changes for empty trees, got %+v", changes)
	}
}

func TestDiffIdempotent(t *testing.T) {
	oldm := manifest.Manifest{
		"dir/a": entry("dir/a", "one"),
		"b":     entry("b", "two"),
		"z":     entry("z", "three"),
	}
	newm := manifest.Manifest{
		"dir/a": entry("dir/a", "one"),
		"b":     entry("b", "changed"),
		"q":     entry("q", "fresh"),
	}

	first := diff.Diff(oldm, newm)
	second := diff.Diff(oldm, newm)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("diffing the same manifests twice produced different change sets")
	}

	for i := 1; i < len(first); i++ {
		if first[i-1].Path >= first[i].Path {
			t.Fatalf("changes not sorted by path: %q before %q", first[i-1].Path, first[i].Path)
		}
	}
}
