// Package block encodes self-verifying, optionally compressed blocks.
//
// Block layout (little endian):
//
//	+------------+---------+-------------+----------------+-------------+
//	| crc uint32 | type u8 | rawLen u32  | storedLen u32  | stored ...  |
//	+------------+---------+-------------+----------------+-------------+
//
// crc is the masked CRC32C (crc32c.Mask) of everything after it: the rest
// of the header and the stored bytes. It is checked before any
// decompression is attempted, so a corrupt block never reaches a
// decompressor.
//
// If compression does not pay off the block is stored uncompressed and its
// type is rewritten to CompressionNone.
package block
