//go:build !purego

package kernel

import (
	"github.com/hupe1980/crc32c/internal/cpu"
	"github.com/klauspost/crc32"
)

// castagnoliARM64 feeds the 8-byte words of p through CRC32CX. crc is the
// raw (non-inverted) register and len(p) must be a multiple of 8.
//
//go:noescape
func castagnoliARM64(crc uint32, p []byte) uint32

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

func archKernels() []Kernel {
	return []Kernel{
		{Name: "armv8-crc-lib", Requires: cpu.ARM64CRC32, Update: updateInterleaved},
		{Name: "armv8-crc", Requires: cpu.ARM64CRC32, Update: updateARM64},
	}
}

func updateARM64(crc uint32, p []byte) uint32 {
	if n := len(p) &^ 7; n > 0 {
		crc = ^castagnoliARM64(^crc, p[:n])
		p = p[n:]
	}
	return Portable(crc, p)
}

// updateInterleaved uses klauspost/crc32, which only needs the CRC32
// extension.
func updateInterleaved(crc uint32, p []byte) uint32 {
	return crc32.Update(crc, castagnoliTable, p)
}
