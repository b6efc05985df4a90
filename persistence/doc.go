// Package persistence wraps storage write and read paths with CRC32C.
//
// The write path computes a checksum while bytes flow to the destination
// and stores it next to the data; the read path recomputes it over the
// bytes it gets back and reports a *crc32c.ChecksumMismatchError when they
// differ. What to do about a mismatch (retry, repair, alert) is up to the
// caller.
//
// # Streams
//
//	cw := persistence.NewChecksumWriter(engine, f)
//	io.Copy(cw, src)
//	sum := cw.Sum()
//
//	cr := persistence.NewChecksumReader(engine, f)
//	io.Copy(dst, cr)
//	err := cr.Verify(sum)
//
// # Files
//
// WriteFile and ReadFile store a payload as
//
//	[FileHeader 16 bytes][payload][CRC32C of header+payload, 4 bytes LE]
//
// WriteFile goes through a temp file and rename, so readers never observe
// a half-written file.
package persistence
