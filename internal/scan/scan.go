package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/keshon/bpg/internal/manifest"
	"github.com/keshon/bpg/internal/util"
)

// Scanner walks one directory tree and produces its manifest.
type Scanner struct {
	Root string
}

// Result is a manifest plus diagnostics for entries that were skipped.
type Result struct {
	Manifest    manifest.Manifest
	Diagnostics []string
}

func New(root string) *Scanner {
	return &Scanner{Root: root}
}

// Scan walks the root recursively and fingerprints every regular file.
// Traversal order is lexical by path so repeated scans of the same tree
// produce identical results. Symlinks and other non-regular entries are
// recorded as diagnostics, not errors. A missing or unreadable root is fatal:
// a partial manifest would silently produce a broken patch.
func (s *Scanner) Scan() (*Result, error) {
	fi, err := os.Stat(s.Root)
	if err != nil {
		return nil, fmt.Errorf("scan root %q: %w", s.Root, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("scan root %q: not a directory", s.Root)
	}

	var paths []string
	var diags []string
	err = filepath.WalkDir(s.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			rel, _ := filepath.Rel(s.Root, path)
			diags = append(diags, fmt.Sprintf("skipped non-regular entry %s", filepath.ToSlash(rel)))
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", s.Root, err)
	}
	sort.Strings(paths)

	// Fingerprint concurrently, but keep results indexed by path position so
	// the manifest is independent of worker completion order.
	entries := make([]manifest.FileEntry, len(paths))
	idxs := make([]int, len(paths))
	for i := range idxs {
		idxs[i] = i
	}
	err = util.Parallel(idxs, util.WorkerCount(), func(i int) error {
		e, err := s.scanFile(paths[i])
		if err != nil {
			return err
		}
		entries[i] = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	m := make(manifest.Manifest, len(entries))
	for _, e := range entries {
		m[e.Path] = e
	}
	return &Result{Manifest: m, Diagnostics: diags}, nil
}

func (s *Scanner) scanFile(path string) (manifest.FileEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return manifest.FileEntry{}, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return manifest.FileEntry{}, fmt.Errorf("stat %q: %w", path, err)
	}

	sum, size, err := manifest.SumReader(f)
	if err != nil {
		return manifest.FileEntry{}, fmt.Errorf("hash %q: %w", path, err)
	}

	rel, err := filepath.Rel(s.Root, path)
	if err != nil {
		return manifest.FileEntry{}, fmt.Errorf("relativize %q: %w", path, err)
	}

	return manifest.FileEntry{
		Path: filepath.ToSlash(rel),
		Size: size,
		Sum:  sum,
		Exec: fi.Mode()&0o111 != 0,
	}, nil
}
