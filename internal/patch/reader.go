package patch

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

const (
	maxStringLen = 1 << 20 // metadata strings and paths
	maxRecords   = 1 << 24
	maxBlobLen   = 1 << 32 // single packaged file or delta
)

// Read parses a payload container. Any structural damage, from a bad magic
// marker to a truncated record, fails with ErrCorruptPatch before the caller
// sees a partially parsed payload. A format version newer than this code
// fails with ErrUnsupportedFormat instead of being misparsed.
func Read(r io.Reader) (*Payload, error) {
	br := bufio.NewReader(r)

	head := make([]byte, len(Magic))
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, fmt.Errorf("%w: missing magic marker", ErrCorruptPatch)
	}
	if string(head) != Magic {
		return nil, fmt.Errorf("%w: bad magic marker %q", ErrCorruptPatch, head)
	}

	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: missing format version", ErrCorruptPatch)
	}
	if version == 0 {
		return nil, fmt.Errorf("%w: format version 0", ErrCorruptPatch)
	}
	if version > FormatVersion {
		return nil, fmt.Errorf("%w: payload version %d, this applier understands up to %d",
			ErrUnsupportedFormat, version, FormatVersion)
	}

	var meta Meta
	var err error
	if meta.Product, err = readString(br); err != nil {
		return nil, err
	}
	if meta.FromVersion, err = readString(br); err != nil {
		return nil, err
	}
	if meta.ToVersion, err = readString(br); err != nil {
		return nil, err
	}
	if meta.DeleteExtra, err = readBool(br); err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: record stream: %v", ErrCorruptPatch, err)
	}
	defer gz.Close()
	gr := bufio.NewReader(gz)

	count, err := binary.ReadUvarint(gr)
	if err != nil || count > maxRecords {
		return nil, fmt.Errorf("%w: record count", ErrCorruptPatch)
	}

	records := make([]Record, 0, count)
	for i := uint64(0); i < count; i++ {
		rec, err := readRecord(gr)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}

	// Drain to force the gzip trailer check; a payload cut inside the
	// trailer would otherwise parse as valid.
	if _, err := gr.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: damaged record stream end", ErrCorruptPatch)
	}

	return &Payload{Meta: meta, Records: records}, nil
}

// ReadBytes parses a payload from an in-memory buffer.
func ReadBytes(b []byte) (*Payload, error) {
	return Read(bytes.NewReader(b))
}

func readRecord(r *bufio.Reader) (Record, error) {
	var rec Record

	kind, err := r.ReadByte()
	if err != nil {
		return rec, fmt.Errorf("%w: truncated record", ErrCorruptPatch)
	}
	rec.Kind = Kind(kind)
	if !rec.Kind.valid() {
		return rec, fmt.Errorf("%w: unknown record kind 0x%02x", ErrCorruptPatch, kind)
	}

	if rec.Path, err = readString(r); err != nil {
		return rec, err
	}
	if err := validatePath(rec.Path); err != nil {
		return rec, err
	}
	if rec.Exec, err = readBool(r); err != nil {
		return rec, err
	}
	if _, err := io.ReadFull(r, rec.OldSum[:]); err != nil {
		return rec, fmt.Errorf("%w: truncated fingerprint", ErrCorruptPatch)
	}
	if _, err := io.ReadFull(r, rec.NewSum[:]); err != nil {
		return rec, fmt.Errorf("%w: truncated fingerprint", ErrCorruptPatch)
	}

	blobLen, err := binary.ReadUvarint(r)
	if err != nil || blobLen > maxBlobLen {
		return rec, fmt.Errorf("%w: blob length", ErrCorruptPatch)
	}
	if blobLen > 0 {
		if rec.Blob, err = readBlob(r, blobLen); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// readBlob grows the buffer chunk by chunk; the declared length is untrusted,
// so a truncated payload must fail before the full allocation, not after.
func readBlob(r *bufio.Reader, n uint64) ([]byte, error) {
	const chunk = 1 << 20
	buf := make([]byte, 0, min(n, chunk))
	for remaining := n; remaining > 0; {
		step := remaining
		if step > chunk {
			step = chunk
		}
		start := len(buf)
		buf = append(buf, make([]byte, step)...)
		if _, err := io.ReadFull(r, buf[start:]); err != nil {
			return nil, fmt.Errorf("%w: truncated blob", ErrCorruptPatch)
		}
		remaining -= step
	}
	return buf, nil
}

// validatePath rejects paths that could escape the installation root.
func validatePath(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty record path", ErrCorruptPatch)
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return fmt.Errorf("%w: record path %q is not relative", ErrCorruptPatch, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == "" {
			return fmt.Errorf("%w: record path %q escapes the target", ErrCorruptPatch, p)
		}
	}
	return nil
}

func readString(r *bufio.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil || n > maxStringLen {
		return "", fmt.Errorf("%w: string length", ErrCorruptPatch)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: truncated string", ErrCorruptPatch)
	}
	return string(buf), nil
}

func readBool(r *bufio.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, fmt.Errorf("%w: truncated flag", ErrCorruptPatch)
	}
	return b != 0, nil
}
