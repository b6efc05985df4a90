package crc32c

const maskDelta = 0xa282ead8

// Mask returns a masked representation of crc.
//
// Computing the checksum of data that embeds checksums is weak, so
// checksums stored inside checksummed records (log records, frames) are
// masked first. The scheme matches LevelDB and RocksDB.
func Mask(crc uint32) uint32 {
	return (crc>>15 | crc<<17) + maskDelta
}

// Unmask reverses Mask.
func Unmask(masked uint32) uint32 {
	rot := masked - maskDelta
	return rot>>17 | rot<<15
}
