package persistence

import (
	"encoding/binary"
	"errors"
)

const (
	// MagicNumber identifies checksummed files (ASCII: "CRCF").
	MagicNumber = 0x43524346
	// Version is the current file format version.
	Version = 1

	headerSize = 16
	footerSize = 4
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrTruncated      = errors.New("truncated file")
)

// FileHeader is the 16-byte header at the start of every checksummed file.
type FileHeader struct {
	Magic   uint32 // 0x43524346 ("CRCF")
	Version uint32 // File format version
	Length  uint64 // Payload length in bytes
}

func (h FileHeader) marshal() []byte {
	b := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(b[0:], h.Magic)
	binary.LittleEndian.PutUint32(b[4:], h.Version)
	binary.LittleEndian.PutUint64(b[8:], h.Length)
	return b
}

func parseHeader(b []byte) (FileHeader, error) {
	if len(b) < headerSize {
		return FileHeader{}, ErrTruncated
	}
	h := FileHeader{
		Magic:   binary.LittleEndian.Uint32(b[0:]),
		Version: binary.LittleEndian.Uint32(b[4:]),
		Length:  binary.LittleEndian.Uint64(b[8:]),
	}
	if h.Magic != MagicNumber {
		return FileHeader{}, ErrInvalidMagic
	}
	if h.Version != Version {
		return FileHeader{}, ErrInvalidVersion
	}
	return h, nil
}
