package patch

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// Write serializes the payload container: magic, format version and metadata
// in the clear, followed by a gzip stream with the count-prefixed records.
// Records are written in the order given; the builder supplies them sorted
// by path so payload bytes are reproducible.
func Write(w io.Writer, meta Meta, records []Record) error {
	changed := 0
	for _, r := range records {
		if r.Kind != KindUnchanged {
			changed++
		}
	}
	if changed == 0 && meta.FromVersion == meta.ToVersion {
		return fmt.Errorf("%w (%s)", ErrEmptyPatch, meta.FromVersion)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Magic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(FormatVersion)); err != nil {
		return fmt.Errorf("write format version: %w", err)
	}
	if err := writeString(bw, meta.Product); err != nil {
		return err
	}
	if err := writeString(bw, meta.FromVersion); err != nil {
		return err
	}
	if err := writeString(bw, meta.ToVersion); err != nil {
		return err
	}
	if err := writeBool(bw, meta.DeleteExtra); err != nil {
		return err
	}

	gz := gzip.NewWriter(bw)
	if err := writeUvarint(gz, uint64(len(records))); err != nil {
		return err
	}
	for _, r := range records {
		if err := writeRecord(gz, r); err != nil {
			return fmt.Errorf("write record %q: %w", r.Path, err)
		}
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close record stream: %w", err)
	}
	return bw.Flush()
}

func writeRecord(w io.Writer, r Record) error {
	if _, err := w.Write([]byte{byte(r.Kind)}); err != nil {
		return err
	}
	if err := writeString(w, r.Path); err != nil {
		return err
	}
	if err := writeBool(w, r.Exec); err != nil {
		return err
	}
	if _, err := w.Write(r.OldSum[:]); err != nil {
		return err
	}
	if _, err := w.Write(r.NewSum[:]); err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(len(r.Blob))); err != nil {
		return err
	}
	_, err := w.Write(r.Blob)
	return err
}

func writeUvarint(w io.Writer, v uint64) error {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	_, err := w.Write(tmp[:n])
	return err
}

func writeString(w io.Writer, s string) error {
	if err := writeUvarint(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeBool(w io.Writer, b bool) error {
	v := byte(0)
	if b {
		v = 1
	}
	_, err := w.Write([]byte{v})
	return err
}
