package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/crc32c"
	"github.com/hupe1980/crc32c/internal/fs"
)

// Encode writes payload to w in the checksummed file format and returns
// the stored checksum.
func Encode(e *crc32c.Engine, w io.Writer, payload []byte) (uint32, error) {
	cw := NewChecksumWriter(e, w)
	hdr := FileHeader{Magic: MagicNumber, Version: Version, Length: uint64(len(payload))}
	if _, err := cw.Write(hdr.marshal()); err != nil {
		return 0, err
	}
	if _, err := cw.Write(payload); err != nil {
		return 0, err
	}
	sum := cw.Sum()
	if err := WriteFooter(w, sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// Decode reads one checksummed payload from r and verifies it.
func Decode(e *crc32c.Engine, r io.Reader) ([]byte, error) {
	cr := NewChecksumReader(e, r)

	hb := make([]byte, headerSize)
	if _, err := io.ReadFull(cr, hb); err != nil {
		return nil, truncated(err)
	}
	hdr, err := parseHeader(hb)
	if err != nil {
		return nil, err
	}

	// Grow as data actually arrives so a corrupt length cannot force a
	// huge allocation up front.
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, cr, int64(hdr.Length))
	if err != nil {
		return nil, truncated(err)
	}
	if uint64(n) != hdr.Length {
		return nil, ErrTruncated
	}

	var footer [footerSize]byte
	if _, err := io.ReadFull(r, footer[:]); err != nil {
		return nil, truncated(err)
	}
	if err := cr.Verify(binary.LittleEndian.Uint32(footer[:])); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrTruncated
	}
	return err
}

// WriteFile atomically writes payload to path in the checksummed format.
func WriteFile(e *crc32c.Engine, path string, payload []byte) error {
	return WriteFileFS(fs.Default, e, path, payload)
}

// WriteFileFS is like WriteFile but goes through fsys.
func WriteFileFS(fsys fs.FileSystem, e *crc32c.Engine, path string, payload []byte) error {
	dir := filepath.Dir(path)
	name := filepath.Base(path)

	// Temp file in the same directory for atomic rename
	tmpPath := path + ".tmp"
	tmp, err := fsys.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("persistence: failed to create temp file for %s: %w", name, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = fsys.Remove(tmpPath)
		}
	}()

	if _, err := Encode(e, tmp, payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("persistence: failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("persistence: failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persistence: failed to close %s: %w", name, err)
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("persistence: failed to rename %s: %w", name, err)
	}
	committed = true

	// Best-effort: fsync directory
	if d, err := fsys.OpenFile(dir, os.O_RDONLY, 0); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// ReadFile reads and verifies a file written by WriteFile.
func ReadFile(e *crc32c.Engine, path string) ([]byte, error) {
	return ReadFileFS(fs.Default, e, path)
}

// ReadFileFS is like ReadFile but goes through fsys.
func ReadFileFS(fsys fs.FileSystem, e *crc32c.Engine, path string) ([]byte, error) {
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := Decode(e, f)
	if err != nil {
		var mm *crc32c.ChecksumMismatchError
		if errors.As(err, &mm) {
			mm.Name = path
		}
		return nil, fmt.Errorf("persistence: %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// WriteFooter appends crc to w as 4 little-endian bytes.
func WriteFooter(w io.Writer, crc uint32) error {
	var footer [footerSize]byte
	binary.LittleEndian.PutUint32(footer[:], crc)
	_, err := w.Write(footer[:])
	return err
}

// ReadVerified reads all of r, treats the last 4 bytes as a little-endian
// CRC32C footer and verifies the payload in front of it.
func ReadVerified(e *crc32c.Engine, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < footerSize {
		return nil, ErrTruncated
	}
	payload := data[:len(data)-footerSize]
	expected := binary.LittleEndian.Uint32(data[len(data)-footerSize:])
	if err := e.Verify(expected, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
