// bpgstub is the applier stub. A built copy of it is embedded into every
// generated updater; at run time it extracts the payload appended to its
// own executable and applies it to the installation directory.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/keshon/bpg/internal/apply"
	"github.com/keshon/bpg/internal/delta"
	"github.com/keshon/bpg/internal/embed"
	"github.com/keshon/bpg/internal/fs"
	"github.com/keshon/bpg/internal/patch"
)

// exit codes per failure category
const (
	exitOK              = 0
	exitIOFailure       = 1
	exitCorruptPatch    = 2
	exitVersionMismatch = 3
	exitPartialSuccess  = 5
)

func main() {
	target := "."
	for i := 1; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch {
		case arg == "--target" && i+1 < len(os.Args):
			target = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--target="):
			target = strings.TrimPrefix(arg, "--target=")
		}
	}

	exe, err := os.Executable()
	if err != nil {
		fail(exitIOFailure, fmt.Errorf("locate own executable: %w", err))
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		fail(exitIOFailure, fmt.Errorf("resolve target %q: %w", target, err))
	}

	payload, err := embed.ExtractPayload(exe)
	if err != nil {
		fail(categorize(err), err)
	}
	p, err := patch.ReadBytes(payload)
	if err != nil {
		fail(categorize(err), err)
	}

	applier := apply.New(absTarget, fs.NewOSFS())
	applier.Skip = []string{exe}

	rep := applier.Apply(p)
	if rep.Err != nil {
		if rep.Partial() {
			fmt.Printf("Partially applied: %d files committed before failure\n", len(rep.Committed))
			for _, p := range rep.Committed {
				fmt.Printf("  committed: %s\n", p)
			}
			fail(exitPartialSuccess, rep.Err)
		}
		fail(categorize(rep.Err), rep.Err)
	}

	fmt.Printf("Patched %s from %s to %s (%d added, %d modified, %d removed)\n",
		p.Meta.Product, p.Meta.FromVersion, p.Meta.ToVersion,
		rep.Added, rep.Modified, rep.Removed)
	os.Exit(exitOK)
}

func categorize(err error) int {
	switch {
	case errors.Is(err, apply.ErrVersionMismatch):
		return exitVersionMismatch
	case errors.Is(err, patch.ErrCorruptPatch),
		errors.Is(err, patch.ErrUnsupportedFormat),
		errors.Is(err, delta.ErrCorrupt):
		return exitCorruptPatch
	default:
		return exitIOFailure
	}
}

func fail(code int, err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(code)
}
