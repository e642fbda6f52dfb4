package embed_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/keshon/bpg/internal/embed"
	"github.com/keshon/bpg/internal/patch"
)

func makeTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "bpg-embed-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestEmbedExtractRoundTrip(t *testing.T) {
	dir := makeTempDir(t)
	stubPath := filepath.Join(dir, "stub")
	stub := []byte("FAKE-STUB-EXECUTABLE-BYTES")
	if err := os.WriteFile(stubPath, stub, 0o755); err != nil {
		t.Fatal(err)
	}

	payload := bytes.Repeat([]byte("payload "), 100)
	output := filepath.Join(dir, "out", "updater")

	e := embed.NewStubEmbedder(stubPath)
	if err := e.Embed(payload, output); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	fi, err := os.Stat(output)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if fi.Mode()&0o111 == 0 {
		t.Error("output not executable")
	}

	got, err := embed.ExtractPayload(output)
	if err != nil {
		t.Fatalf("ExtractPayload failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("extracted payload differs from embedded payload")
	}

	// stub bytes must lead the output unmodified
	raw, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, stub) {
		t.Error("output does not start with the stub bytes")
	}
}

func TestExtractFromPlainFile(t *testing.T) {
	dir := makeTempDir(t)
	plain := filepath.Join(dir, "not-an-updater")
	if err := os.WriteFile(plain, bytes.Repeat([]byte("x"), 100), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := embed.ExtractPayload(plain)
	if !errors.Is(err, patch.ErrCorruptPatch) {
		t.Fatalf("expected ErrCorruptPatch, got %v", err)
	}
}

func TestExtractTinyFile(t *testing.T) {
	dir := makeTempDir(t)
	tiny := filepath.Join(dir, "tiny")
	if err := os.WriteFile(tiny, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := embed.ExtractPayload(tiny)
	if !errors.Is(err, patch.ErrCorruptPatch) {
		t.Fatalf("expected ErrCorruptPatch, got %v", err)
	}
}

func TestEmbedMissingStub(t *testing.T) {
	dir := makeTempDir(t)
	e := embed.NewStubEmbedder(filepath.Join(dir, "no-such-stub"))
	if err := e.Embed([]byte("p"), filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected error for missing stub")
	}
}
