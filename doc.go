// Package crc32c computes CRC-32C (Castagnoli) checksums with a kernel
// chosen once from the host's CPU features.
//
// # Engine
//
// An Engine is created once at startup. It detects CPU features, walks an
// ordered registry of kernels (most specialized first, the portable table
// kernel last) and keeps the first eligible one for its lifetime:
//
//	e, _ := crc32c.New(crc32c.WithLogger(crc32c.NewTextLogger(slog.LevelDebug)))
//	sum := e.Checksum(0, data)
//
// Pass the Engine to the components that checksum data. For code that does
// not carry one, the package-level functions use Default().
//
// # Streaming
//
// A checksum result is also a seed, so data can be checksummed as it arrives:
//
//	crc := e.Checksum(0, chunk1)
//	crc = e.Checksum(crc, chunk2) // == e.Checksum(0, chunk1+chunk2)
//
// Or through hash.Hash32:
//
//	d := e.NewDigest(0)
//	d.Write(chunk1)
//	d.Write(chunk2)
//	crc := d.Sum32()
//
// # Combining
//
// Fragments checksummed independently (multipart uploads, stripes, partial
// writes) combine without re-reading the data:
//
//	crcAB := e.Combine(crcA, crcB, uint64(len(b)))
//	whole := e.CombineAll(parts...)
//
// # Overrides
//
//	CRC32C_IMPL=portable      force a kernel by name (ignored if not eligible)
//	CRC32C_DISABLE=sse4.2     hide CPU features from selection
//
// CRC32C detects accidental corruption. It is not a cryptographic hash and
// must not be used for tamper detection.
package crc32c
