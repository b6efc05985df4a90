//go:build !purego

package kernel

import (
	"github.com/hupe1980/crc32c/internal/cpu"
	"github.com/klauspost/crc32"
)

// castagnoliSSE42 feeds the 8-byte words of p through the CRC32Q
// instruction. crc is the raw (non-inverted) register and len(p) must be
// a multiple of 8.
//
//go:noescape
func castagnoliSSE42(crc uint32, p []byte) uint32

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

func archKernels() []Kernel {
	return []Kernel{
		{Name: "sse42-triple", Requires: cpu.SSE42, Update: updateInterleaved},
		{Name: "sse42", Requires: cpu.SSE42, Update: updateSSE42},
	}
}

func updateSSE42(crc uint32, p []byte) uint32 {
	if n := len(p) &^ 7; n > 0 {
		crc = ^castagnoliSSE42(^crc, p[:n])
		p = p[n:]
	}
	return Portable(crc, p)
}

// updateInterleaved uses klauspost/crc32, which runs three CRC32 streams in
// parallel on large buffers and merges them with table shifts. It needs
// nothing beyond SSE4.2.
func updateInterleaved(crc uint32, p []byte) uint32 {
	return crc32.Update(crc, castagnoliTable, p)
}
