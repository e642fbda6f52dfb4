package apply

import (
	"fmt"
	"path/filepath"
	"sort"
)

// removeExtras deletes target files not named by any payload record, then
// prunes directories left empty, deepest first. The staging dir and any
// Skip path (the running updater) are never touched.
func (a *Applier) removeExtras(known map[string]bool, rep *Report) error {
	skip := make(map[string]bool, len(a.Skip)+1)
	for _, s := range a.Skip {
		skip[filepath.Clean(s)] = true
	}

	var extras []string
	var dirs []string
	err := a.walk("", &extras, &dirs, known, skip)
	if err != nil {
		return fmt.Errorf("scan for extra files: %w", err)
	}

	for _, rel := range extras {
		if err := a.FS.Remove(a.targetPath(rel)); err != nil {
			return fmt.Errorf("remove extra %s: %w", rel, err)
		}
		rep.Removed++
	}

	// deepest directories first so emptied parents collapse too
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, rel := range dirs {
		p := a.targetPath(rel)
		if entries, err := a.FS.ReadDir(p); err == nil && len(entries) == 0 {
			_ = a.FS.Remove(p)
		}
	}
	return nil
}

func (a *Applier) walk(rel string, extras, dirs *[]string, known map[string]bool, skip map[string]bool) error {
	dir := a.Target
	if rel != "" {
		dir = a.targetPath(rel)
	}
	entries, err := a.FS.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		childRel := e.Name()
		if rel != "" {
			childRel = rel + "/" + e.Name()
		}
		if rel == "" && e.Name() == stageDirName {
			continue
		}
		if skip[filepath.Clean(a.targetPath(childRel))] {
			continue
		}
		if e.IsDir() {
			*dirs = append(*dirs, childRel)
			if err := a.walk(childRel, extras, dirs, known, skip); err != nil {
				return err
			}
			continue
		}
		if _, ok := known[childRel]; !ok {
			*extras = append(*extras, childRel)
		}
	}
	return nil
}

// cleanupStage removes leftover staged temp files and the staging dir.
func (a *Applier) cleanupStage() {
	stageDir := filepath.Join(a.Target, stageDirName)
	entries, err := a.FS.ReadDir(stageDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		_ = a.FS.Remove(filepath.Join(stageDir, e.Name()))
	}
	_ = a.FS.Remove(stageDir)
}
