// Package transport frames messages over byte streams with a CRC32C trailer.
//
// Frame format (little endian):
//
//	[Length: 4 bytes] [Payload: Length bytes] [CRC32C: 4 bytes, masked]
//
// The trailer is crc32c.Mask of the payload checksum, so payloads that
// embed their own checksums do not weaken it.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hupe1980/crc32c"
)

// DefaultMaxFrameSize is the payload limit used when none is given.
const DefaultMaxFrameSize = 16 << 20

const (
	lenSize     = 4
	trailerSize = 4
)

var (
	ErrCorruptFrame  = errors.New("transport: corrupt frame")
	ErrFrameTooLarge = errors.New("transport: frame too large")
)

// FrameWriter writes checksummed frames to an io.Writer.
// Each frame is handed to the writer in a single Write call; concurrent
// WriteFrame calls are serialized.
type FrameWriter struct {
	mu     sync.Mutex
	w      io.Writer
	engine *crc32c.Engine
	buf    []byte
	frames uint64
	bytes  uint64
}

// NewFrameWriter creates a new frame writer. A nil engine uses
// crc32c.Default().
func NewFrameWriter(e *crc32c.Engine, w io.Writer) *FrameWriter {
	if e == nil {
		e = crc32c.Default()
	}
	return &FrameWriter{w: w, engine: e}
}

// WriteFrame writes payload as one frame.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	if uint64(len(payload)) > 1<<32-1 {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	n := lenSize + len(payload) + trailerSize
	if cap(fw.buf) < n {
		fw.buf = make([]byte, n)
	}
	buf := fw.buf[:n]
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[lenSize:], payload)
	binary.LittleEndian.PutUint32(buf[lenSize+len(payload):], crc32c.Mask(fw.engine.Checksum(0, payload)))

	if _, err := fw.w.Write(buf); err != nil {
		return err
	}
	fw.frames++
	fw.bytes += uint64(n)
	return nil
}

// Stats returns the number of frames and bytes written.
func (fw *FrameWriter) Stats() (frames, bytes uint64) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.frames, fw.bytes
}

// FrameReader reads checksummed frames from an io.Reader.
// It is not safe for concurrent use.
type FrameReader struct {
	r        io.Reader
	engine   *crc32c.Engine
	maxFrame int
	hdr      [lenSize]byte
}

// NewFrameReader creates a new frame reader. Frames with a payload larger
// than maxFrame are rejected; maxFrame <= 0 means DefaultMaxFrameSize.
func NewFrameReader(e *crc32c.Engine, r io.Reader, maxFrame int) *FrameReader {
	if e == nil {
		e = crc32c.Default()
	}
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &FrameReader{r: r, engine: e, maxFrame: maxFrame}
}

// ReadFrame reads the next frame and returns its payload.
//
// It returns io.EOF when the stream ends cleanly between frames and
// io.ErrUnexpectedEOF when it ends inside one. A checksum failure is
// reported as ErrCorruptFrame wrapping a *crc32c.ChecksumMismatchError;
// the stream is out of sync after it and should be closed.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.hdr[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(fr.hdr[:])
	if uint64(length) > uint64(fr.maxFrame) {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, length, fr.maxFrame)
	}

	buf := make([]byte, int(length)+trailerSize)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := buf[:length]
	expected := crc32c.Unmask(binary.LittleEndian.Uint32(buf[length:]))
	if err := fr.engine.Verify(expected, payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptFrame, err)
	}
	return payload, nil
}
