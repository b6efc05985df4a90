package kernel

// Polynomial is the Castagnoli polynomial in reversed (LSB-first) notation.
// The normal form is 0x1EDC6F41.
const Polynomial = 0x82f63b78

// Size is the size of a CRC32C checksum in bytes.
const Size = 4

var table = makeTable(Polynomial)

func makeTable(poly uint32) *[256]uint32 {
	t := new([256]uint32)
	for i := range t {
		crc := uint32(i)
		for j := 0; j < 8; j++ {
			if crc&1 == 1 {
				crc = crc>>1 ^ poly
			} else {
				crc >>= 1
			}
		}
		t[i] = crc
	}
	return t
}

// Portable is the byte-at-a-time reference implementation every other
// kernel must match.
//
// crc is a finished checksum (or zero): the register is inverted on the
// way in and on the way out, so Portable(Portable(s, a), b) equals
// Portable(s, a+b).
func Portable(crc uint32, p []byte) uint32 {
	crc = ^crc
	for _, v := range p {
		crc = table[byte(crc)^v] ^ crc>>8
	}
	return ^crc
}
