package kernel

// Polynomials are stored reflected: bit 31 holds the coefficient of x^0 and
// bit 0 the coefficient of x^31.

const one = uint32(1) << 31

// x2n[k] = x^(2^k) mod P. A 64-bit byte count shifted left by 3 needs up to
// 67 entries; P is reducible, so the powers are not periodic in 32 and the
// table must not wrap.
var x2n [67]uint32

func init() {
	p := one >> 1 // x^1
	x2n[0] = p
	for k := 1; k < len(x2n); k++ {
		p = multModP(p, p)
		x2n[k] = p
	}
}

// multModP returns a(x)*b(x) mod P.
func multModP(a, b uint32) uint32 {
	var p uint32
	for m := one; m != 0; m >>= 1 {
		if a&m != 0 {
			p ^= b
			if a&(m-1) == 0 {
				break
			}
		}
		if b&1 != 0 {
			b = b>>1 ^ Polynomial
		} else {
			b >>= 1
		}
	}
	return p
}

// xPow8N returns x^(8n) mod P.
func xPow8N(n uint64) uint32 {
	p := one
	for k := 3; n != 0; k++ {
		if n&1 != 0 {
			p = multModP(x2n[k], p)
		}
		n >>= 1
	}
	return p
}

// Shift multiplies crc by x^(8n), the contribution crc makes after n more
// bytes have been fed through the raw register.
func Shift(crc uint32, n uint64) uint32 {
	if n == 0 || crc == 0 {
		return crc
	}
	return multModP(xPow8N(n), crc)
}

// Combine returns the checksum of A+B given crcA = Portable(seed, A),
// crcB = Portable(0, B) and lenB = len(B).
func Combine(crcA, crcB uint32, lenB uint64) uint32 {
	return Shift(crcA, lenB) ^ crcB
}

// ExtendZeros returns Portable(crc, make([]byte, n)) without allocating.
func ExtendZeros(crc uint32, n uint64) uint32 {
	return ^Shift(^crc, n)
}
