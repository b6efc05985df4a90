package block

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/crc32c"
)

const (
	// HeaderSize is the size of the fixed block header.
	HeaderSize = 13

	// MaxBlockSize is the largest raw block Encode accepts.
	MaxBlockSize = 64 << 20
)

var (
	// ErrCorrupt is returned when a block fails structural checks.
	ErrCorrupt = errors.New("block: corrupt")
	// ErrUnknownCompression is returned for an unknown compression type.
	ErrUnknownCompression = errors.New("block: unknown compression")
	// ErrTooLarge is returned when a block exceeds MaxBlockSize.
	ErrTooLarge = errors.New("block: too large")
)

// Encoder writes blocks with one compression setting.
// It is safe for concurrent use.
type Encoder struct {
	engine      *crc32c.Engine
	compression Compression
}

// NewEncoder creates an encoder. A nil engine uses crc32c.Default().
func NewEncoder(e *crc32c.Engine, c Compression) (*Encoder, error) {
	if !c.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
	if e == nil {
		e = crc32c.Default()
	}
	return &Encoder{engine: e, compression: c}, nil
}

// Compression returns the configured compression.
func (enc *Encoder) Compression() Compression {
	return enc.compression
}

// Encode appends the encoded block for data to dst.
func (enc *Encoder) Encode(dst, data []byte) ([]byte, error) {
	if len(data) > MaxBlockSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	typ := enc.compression
	stored := data
	if typ != CompressionNone && len(data) > 0 {
		compressed, err := compress(typ, data)
		if err != nil {
			return nil, fmt.Errorf("block: compress %s: %w", typ, err)
		}
		// If compression doesn't help (ratio > 0.9), store uncompressed
		if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
			typ = CompressionNone
		} else {
			stored = compressed
		}
	} else {
		typ = CompressionNone
	}

	start := len(dst)
	var hdr [HeaderSize]byte
	hdr[4] = byte(typ)
	binary.LittleEndian.PutUint32(hdr[5:], uint32(len(data)))
	binary.LittleEndian.PutUint32(hdr[9:], uint32(len(stored)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, stored...)

	crc := enc.engine.Checksum(0, dst[start+4:])
	binary.LittleEndian.PutUint32(dst[start:], crc32c.Mask(crc))
	return dst, nil
}

// Header describes a block without decoding it.
type Header struct {
	Compression Compression
	RawLen      int
	StoredLen   int
}

// ParseHeader reads the fixed header at the start of src.
func ParseHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need %d for header", ErrCorrupt, len(src), HeaderSize)
	}
	h := Header{
		Compression: Compression(src[4]),
		RawLen:      int(binary.LittleEndian.Uint32(src[5:])),
		StoredLen:   int(binary.LittleEndian.Uint32(src[9:])),
	}
	if h.RawLen > MaxBlockSize || h.StoredLen > MaxBlockSize+MaxBlockSize/8 {
		return Header{}, fmt.Errorf("%w: raw %d stored %d", ErrTooLarge, h.RawLen, h.StoredLen)
	}
	return h, nil
}

// Decode verifies and decodes the block at the start of src.
// It returns the raw data and the number of bytes consumed from src, so
// concatenated blocks can be decoded one after another. For uncompressed
// blocks the returned data aliases src.
func Decode(e *crc32c.Engine, src []byte) ([]byte, int, error) {
	if e == nil {
		e = crc32c.Default()
	}
	h, err := ParseHeader(src)
	if err != nil {
		return nil, 0, err
	}
	n := HeaderSize + h.StoredLen
	if len(src) < n {
		return nil, 0, fmt.Errorf("%w: truncated, have %d bytes, need %d", ErrCorrupt, len(src), n)
	}

	expected := crc32c.Unmask(binary.LittleEndian.Uint32(src))
	if err := e.Verify(expected, src[4:n]); err != nil {
		return nil, 0, err
	}

	stored := src[HeaderSize:n]
	switch h.Compression {
	case CompressionNone:
		if h.RawLen != h.StoredLen {
			return nil, 0, fmt.Errorf("%w: raw %d != stored %d", ErrCorrupt, h.RawLen, h.StoredLen)
		}
		return stored, n, nil
	case CompressionLZ4, CompressionZSTD, CompressionS2:
		out, err := decompress(h.Compression, stored, h.RawLen)
		if err != nil {
			return nil, 0, err
		}
		if len(out) != h.RawLen {
			return nil, 0, fmt.Errorf("%w: decoded %d bytes, header says %d", ErrCorrupt, len(out), h.RawLen)
		}
		return out, n, nil
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(h.Compression))
	}
}
