package persistence

import (
	"io"

	"github.com/hupe1980/crc32c"
)

// ChecksumWriter wraps an io.Writer and computes a running CRC32C checksum.
type ChecksumWriter struct {
	w      io.Writer
	digest *crc32c.Digest
}

// NewChecksumWriter creates a new checksumming writer.
func NewChecksumWriter(e *crc32c.Engine, w io.Writer) *ChecksumWriter {
	return &ChecksumWriter{
		w:      w,
		digest: e.NewDigest(0),
	}
}

// Write implements io.Writer.
// Only the bytes the underlying writer accepted are checksummed.
func (cw *ChecksumWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		_, _ = cw.digest.Write(p[:n])
	}
	return n, err
}

// Sum returns the current checksum value.
func (cw *ChecksumWriter) Sum() uint32 {
	return cw.digest.Sum32()
}

// Len returns the number of bytes written.
func (cw *ChecksumWriter) Len() uint64 {
	return cw.digest.Len()
}

// Part returns the checksum and length of everything written so far.
func (cw *ChecksumWriter) Part() crc32c.Part {
	return cw.digest.Part()
}

// Reset resets the checksum to initial state.
func (cw *ChecksumWriter) Reset() {
	cw.digest.Reset()
}

// ChecksumReader wraps an io.Reader and computes a running CRC32C checksum.
type ChecksumReader struct {
	r      io.Reader
	digest *crc32c.Digest
}

// NewChecksumReader creates a new checksumming reader.
func NewChecksumReader(e *crc32c.Engine, r io.Reader) *ChecksumReader {
	return &ChecksumReader{
		r:      r,
		digest: e.NewDigest(0),
	}
}

// Read implements io.Reader.
func (cr *ChecksumReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		_, _ = cr.digest.Write(p[:n])
	}
	return n, err
}

// Sum returns the current checksum value.
func (cr *ChecksumReader) Sum() uint32 {
	return cr.digest.Sum32()
}

// Len returns the number of bytes read.
func (cr *ChecksumReader) Len() uint64 {
	return cr.digest.Len()
}

// Reset resets the checksum to initial state.
func (cr *ChecksumReader) Reset() {
	cr.digest.Reset()
}

// Verify checks if the computed checksum matches the expected value.
func (cr *ChecksumReader) Verify(expected uint32) error {
	actual := cr.Sum()
	if actual != expected {
		return &crc32c.ChecksumMismatchError{
			Expected: expected,
			Actual:   actual,
		}
	}
	return nil
}
