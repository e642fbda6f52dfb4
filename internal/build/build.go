// Package build orchestrates the patch pipeline: scan both trees, diff,
// encode per-file deltas and package the payload.
package build

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/keshon/bpg/internal/config"
	"github.com/keshon/bpg/internal/delta"
	"github.com/keshon/bpg/internal/diff"
	"github.com/keshon/bpg/internal/patch"
	"github.com/keshon/bpg/internal/progress"
	"github.com/keshon/bpg/internal/scan"
	"github.com/keshon/bpg/internal/util"
)

// Result carries the serialized payload plus build statistics.
type Result struct {
	Payload     []byte
	Added       int
	Modified    int
	Removed     int
	Unchanged   int
	Diagnostics []string
}

// Run builds the patch payload for the configured tree pair. Any failure
// aborts the whole build; no partial payload is ever returned.
func Run(cfg config.Build) (*Result, error) {
	oldRes, newRes, err := scanTrees(cfg.OldDir, cfg.NewDir)
	if err != nil {
		return nil, err
	}

	changes := diff.Diff(oldRes.Manifest, newRes.Manifest)
	records, stats, err := packageChanges(cfg, changes)
	if err != nil {
		return nil, err
	}

	meta := patch.Meta{
		Product:     cfg.Product,
		FromVersion: cfg.FromVersion,
		ToVersion:   cfg.ToVersion,
		DeleteExtra: cfg.DeleteExtra,
	}

	var buf bytes.Buffer
	if err := patch.Write(&buf, meta, records); err != nil {
		return nil, err
	}

	stats.Payload = buf.Bytes()
	stats.Diagnostics = append(oldRes.Diagnostics, newRes.Diagnostics...)
	return stats, nil
}

// scanTrees scans the old and new roots as two independent tasks.
func scanTrees(oldDir, newDir string) (oldRes, newRes *scan.Result, err error) {
	var wg sync.WaitGroup
	var oldErr, newErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		oldRes, oldErr = scan.New(oldDir).Scan()
	}()
	go func() {
		defer wg.Done()
		newRes, newErr = scan.New(newDir).Scan()
	}()
	wg.Wait()

	if oldErr != nil {
		return nil, nil, fmt.Errorf("scan old tree: %w", oldErr)
	}
	if newErr != nil {
		return nil, nil, fmt.Errorf("scan new tree: %w", newErr)
	}
	return oldRes, newRes, nil
}

// packageChanges turns the change set into payload records. Content work
// (reading files, encoding deltas) runs on a worker pool; records keep the
// change set's path order so payload bytes stay reproducible.
func packageChanges(cfg config.Build, changes []diff.Change) ([]patch.Record, *Result, error) {
	stats := &Result{}
	records := make([]patch.Record, len(changes))

	var work []int
	for i, c := range changes {
		switch c.Kind {
		case diff.Added:
			stats.Added++
			work = append(work, i)
		case diff.Modified:
			stats.Modified++
			work = append(work, i)
		case diff.Removed:
			stats.Removed++
			if cfg.DeleteExtra {
				records[i] = patch.Record{
					Kind:   patch.KindRemoved,
					Path:   c.Path,
					OldSum: c.Old.Sum,
				}
			}
		case diff.Unchanged:
			stats.Unchanged++
			records[i] = patch.Record{
				Kind:   patch.KindUnchanged,
				Path:   c.Path,
				Exec:   c.New.Exec,
				OldSum: c.Old.Sum,
				NewSum: c.New.Sum,
			}
		}
	}

	if len(work) > 0 {
		bar := progress.NewProgress(len(work), "Encoding changes")
		defer bar.Finish()

		err := util.Parallel(work, util.WorkerCount(), func(i int) error {
			defer bar.Increment()
			rec, err := encodeChange(cfg, changes[i])
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
	}

	// compact away dropped removed entries
	out := records[:0]
	for _, r := range records {
		if r.Kind != 0 {
			out = append(out, r)
		}
	}
	return out, stats, nil
}

func encodeChange(cfg config.Build, c diff.Change) (patch.Record, error) {
	newBytes, err := os.ReadFile(filepath.Join(cfg.NewDir, filepath.FromSlash(c.Path)))
	if err != nil {
		return patch.Record{}, fmt.Errorf("read new %s: %w", c.Path, err)
	}

	rec := patch.Record{
		Path:   c.Path,
		Exec:   c.New.Exec,
		OldSum: c.Old.Sum,
		NewSum: c.New.Sum,
	}

	if c.Kind == diff.Added {
		rec.Kind = patch.KindAdded
		rec.Blob = newBytes
		return rec, nil
	}

	oldBytes, err := os.ReadFile(filepath.Join(cfg.OldDir, filepath.FromSlash(c.Path)))
	if err != nil {
		return patch.Record{}, fmt.Errorf("read old %s: %w", c.Path, err)
	}

	// whole-file replacement wins whenever the delta is not smaller
	d := delta.Encode(oldBytes, newBytes)
	if len(d) >= len(newBytes) {
		rec.Kind = patch.KindModifiedFull
		rec.Blob = newBytes
	} else {
		rec.Kind = patch.KindModifiedDelta
		rec.Blob = d
	}
	return rec, nil
}
