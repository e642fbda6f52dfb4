// Package embed wraps payload bytes and the prebuilt applier stub into a
// runnable updater, and extracts the payload back out at run time.
package embed

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/mmap"

	"github.com/keshon/bpg/internal/fs"
	"github.com/keshon/bpg/internal/patch"
)

// trailerMagic closes a generated updater: payload length (8 bytes LE)
// followed by this marker, so the stub can find its own payload from the
// end of the file.
const trailerMagic = "BPGEXE01"

const trailerLen = 8 + len(trailerMagic)

// Embedder produces a runnable updater at output from payload bytes.
type Embedder interface {
	Embed(payload []byte, output string) error
}

// StubEmbedder appends the payload and a length trailer to a copy of a
// prebuilt stub executable. The output is written atomically: either a
// complete runnable updater appears at the output path, or nothing.
type StubEmbedder struct {
	StubPath string
	FS       fs.FS
}

func NewStubEmbedder(stubPath string) *StubEmbedder {
	return &StubEmbedder{StubPath: stubPath, FS: fs.NewOSFS()}
}

func (e *StubEmbedder) Embed(payload []byte, output string) error {
	stub, err := e.FS.ReadFile(e.StubPath)
	if err != nil {
		return fmt.Errorf("read stub %q: %w", e.StubPath, err)
	}

	dir := filepath.Dir(output)
	if err := e.FS.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %q: %w", dir, err)
	}

	tmp, tmpPath, err := e.FS.CreateTempFile(dir, ".bpg-out-*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer e.FS.Remove(tmpPath)

	var trailer [trailerLen]byte
	binary.LittleEndian.PutUint64(trailer[:8], uint64(len(payload)))
	copy(trailer[8:], trailerMagic)

	for _, chunk := range [][]byte{stub, payload, trailer[:]} {
		if _, err := tmp.Write(chunk); err != nil {
			tmp.Close()
			return fmt.Errorf("write output: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	if err := e.FS.Chmod(tmpPath, 0o755); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := e.FS.Rename(tmpPath, output); err != nil {
		return fmt.Errorf("rename output to %q: %w", output, err)
	}
	return nil
}

// ExtractPayload reads the payload embedded in a generated updater. The
// executable is mapped rather than read whole; only the trailer and the
// payload region are touched.
func ExtractPayload(exePath string) ([]byte, error) {
	r, err := mmap.Open(exePath)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", exePath, err)
	}
	defer r.Close()

	size := r.Len()
	if size < trailerLen {
		return nil, fmt.Errorf("%w: executable too small for a payload trailer", patch.ErrCorruptPatch)
	}

	var trailer [trailerLen]byte
	if _, err := r.ReadAt(trailer[:], int64(size-trailerLen)); err != nil {
		return nil, fmt.Errorf("read trailer: %w", err)
	}
	if string(trailer[8:]) != trailerMagic {
		return nil, fmt.Errorf("%w: no embedded payload trailer", patch.ErrCorruptPatch)
	}

	n := binary.LittleEndian.Uint64(trailer[:8])
	if n > uint64(size-trailerLen) {
		return nil, fmt.Errorf("%w: payload length %d exceeds executable size", patch.ErrCorruptPatch, n)
	}

	payload := make([]byte, n)
	if _, err := r.ReadAt(payload, int64(uint64(size-trailerLen)-n)); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return payload, nil
}

// DefaultStubPath looks for the stub executable next to the running binary.
func DefaultStubPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "bpgstub"
	}
	return filepath.Join(filepath.Dir(exe), "bpgstub")
}
