// Package apply holds the logic baked into the generated updater: it loads
// the embedded payload, verifies the target installation against the
// recorded old state, stages new content and commits it into place.
package apply

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/keshon/bpg/internal/delta"
	"github.com/keshon/bpg/internal/fs"
	"github.com/keshon/bpg/internal/manifest"
	"github.com/keshon/bpg/internal/patch"
)

// ErrVersionMismatch reports that the target installation does not match
// the old state the patch was built against. Nothing is touched.
var ErrVersionMismatch = errors.New("installation does not match the patch's expected old state")

// stageDirName is created under the target root while staging; it is
// removed again before the run finishes.
const stageDirName = ".bpg-stage"

// Report is the terminal outcome of an apply run.
type Report struct {
	Added    int
	Modified int
	Removed  int
	// Committed lists the paths moved into place, in commit order. After a
	// failure it tells the operator exactly which files already changed.
	Committed []string
	Err       error
}

// Partial reports whether the run failed after some files were committed.
// There is no automatic rollback once commit begins.
func (r *Report) Partial() bool {
	return r.Err != nil && len(r.Committed) > 0
}

// Applier applies a parsed payload to one installation directory.
type Applier struct {
	Target string
	FS     fs.FS
	// Skip holds absolute paths excluded from the delete-extra pass,
	// typically the running updater executable itself.
	Skip []string
}

func New(target string, fsys fs.FS) *Applier {
	return &Applier{Target: target, FS: fsys}
}

// Run parses the payload bytes and applies them. Load or verify failures
// leave the target untouched; commit failures surface as partial success.
func (a *Applier) Run(payloadBytes []byte) *Report {
	p, err := patch.ReadBytes(payloadBytes)
	if err != nil {
		return &Report{Err: err}
	}
	return a.Apply(p)
}

// Apply runs the Verify, Stage and Commit phases against the target.
func (a *Applier) Apply(p *patch.Payload) *Report {
	if err := a.verify(p); err != nil {
		return &Report{Err: err}
	}

	staged, err := a.stage(p)
	if err != nil {
		a.cleanupStage()
		return &Report{Err: err}
	}

	rep := a.commit(p, staged)
	a.cleanupStage()
	return rep
}

func (a *Applier) targetPath(rel string) string {
	return filepath.Join(a.Target, filepath.FromSlash(rel))
}

// verify hashes every file the patch expects to exist (modified, removed
// and unchanged entries) and compares against the recorded old fingerprint.
// All verification happens before any mutation.
func (a *Applier) verify(p *patch.Payload) error {
	for _, r := range p.Records {
		switch r.Kind {
		case patch.KindModifiedDelta, patch.KindModifiedFull, patch.KindRemoved, patch.KindUnchanged:
		default:
			continue
		}
		target := a.targetPath(r.Path)
		data, err := a.FS.ReadFile(target)
		if err != nil {
			if a.FS.IsNotExist(err) {
				return fmt.Errorf("%w: expected file missing: %s", ErrVersionMismatch, r.Path)
			}
			return fmt.Errorf("verify %s: %w", r.Path, err)
		}
		if manifest.SumBytes(data) != r.OldSum {
			return fmt.Errorf("%w: %s has been modified", ErrVersionMismatch, r.Path)
		}
	}
	return nil
}

type stagedFile struct {
	rec patch.Record
	tmp string
}

// stage computes the new content for every added and modified entry and
// writes it to a temporary location, so a failure here never corrupts an
// existing file. Staged content is re-fingerprinted against the recorded
// new-state hash before anything is allowed to commit.
func (a *Applier) stage(p *patch.Payload) ([]stagedFile, error) {
	stageDir := filepath.Join(a.Target, stageDirName)
	if err := a.FS.MkdirAll(stageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	var staged []stagedFile
	for _, r := range p.Records {
		var content []byte
		switch r.Kind {
		case patch.KindAdded, patch.KindModifiedFull:
			content = r.Blob
		case patch.KindModifiedDelta:
			oldBytes, err := a.FS.ReadFile(a.targetPath(r.Path))
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", r.Path, err)
			}
			content, err = delta.Decode(oldBytes, r.Blob)
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", r.Path, err)
			}
		default:
			continue
		}

		if manifest.SumBytes(content) != r.NewSum {
			return nil, fmt.Errorf("%w: staged content for %s does not match its recorded fingerprint",
				patch.ErrCorruptPatch, r.Path)
		}

		tmp, tmpPath, err := a.FS.CreateTempFile(stageDir, "stage-*")
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", r.Path, err)
		}
		if _, err := tmp.Write(content); err != nil {
			tmp.Close()
			return nil, fmt.Errorf("stage %s: %w", r.Path, err)
		}
		if err := tmp.Close(); err != nil {
			return nil, fmt.Errorf("stage %s: %w", r.Path, err)
		}
		staged = append(staged, stagedFile{rec: r, tmp: tmpPath})
	}
	return staged, nil
}

// commit moves staged files into place, ancestors before descendants, then
// runs the deletion pass. Deletions happen only after every addition and
// modification has committed, and only when the payload was built with
// delete-extra.
func (a *Applier) commit(p *patch.Payload, staged []stagedFile) *Report {
	rep := &Report{}

	sort.SliceStable(staged, func(i, j int) bool {
		di := strings.Count(staged[i].rec.Path, "/")
		dj := strings.Count(staged[j].rec.Path, "/")
		if di != dj {
			return di < dj
		}
		return staged[i].rec.Path < staged[j].rec.Path
	})

	for _, s := range staged {
		target := a.targetPath(s.rec.Path)
		if err := a.FS.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			rep.Err = fmt.Errorf("commit %s: %w", s.rec.Path, err)
			return rep
		}
		if err := a.FS.Rename(s.tmp, target); err != nil {
			rep.Err = fmt.Errorf("commit %s: %w", s.rec.Path, err)
			return rep
		}
		perm := os.FileMode(0o644)
		if s.rec.Exec {
			perm = 0o755
		}
		if err := a.FS.Chmod(target, perm); err != nil {
			rep.Err = fmt.Errorf("commit %s: %w", s.rec.Path, err)
			rep.Committed = append(rep.Committed, s.rec.Path)
			return rep
		}
		rep.Committed = append(rep.Committed, s.rec.Path)
		if s.rec.Kind == patch.KindAdded {
			rep.Added++
		} else {
			rep.Modified++
		}
	}

	if !p.Meta.DeleteExtra {
		return rep
	}

	known := make(map[string]bool, len(p.Records))
	for _, r := range p.Records {
		known[r.Path] = r.Kind != patch.KindRemoved
	}

	for _, r := range p.Records {
		if r.Kind != patch.KindRemoved {
			continue
		}
		target := a.targetPath(r.Path)
		if !a.FS.Exists(target) {
			continue
		}
		if err := a.FS.Remove(target); err != nil {
			rep.Err = fmt.Errorf("remove %s: %w", r.Path, err)
			return rep
		}
		rep.Removed++
	}

	if err := a.removeExtras(known, rep); err != nil {
		rep.Err = err
		return rep
	}
	return rep
}
