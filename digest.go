package crc32c

import "hash"

// Digest is a streaming CRC32C that implements hash.Hash32.
//
// Unlike hash/crc32, a Digest can start from (and be reset to) any seed,
// which lets a reader resume a checksum persisted by an earlier pass.
type Digest struct {
	e    *Engine
	seed uint32
	crc  uint32
	n    uint64
}

var _ hash.Hash32 = (*Digest)(nil)

// NewDigest returns a Digest starting at seed.
func (e *Engine) NewDigest(seed uint32) *Digest {
	return &Digest{e: e, seed: seed, crc: seed}
}

// NewDigest returns a Digest on the default engine.
func NewDigest(seed uint32) *Digest {
	return Default().NewDigest(seed)
}

// Write never returns an error.
func (d *Digest) Write(p []byte) (int, error) {
	d.crc = d.e.Checksum(d.crc, p)
	d.n += uint64(len(p))
	return len(p), nil
}

// Sum appends the big-endian checksum to b.
func (d *Digest) Sum(b []byte) []byte {
	s := d.crc
	return append(b, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

// Sum32 returns the current checksum.
func (d *Digest) Sum32() uint32 { return d.crc }

// Reset returns the digest to its seed.
func (d *Digest) Reset() {
	d.crc = d.seed
	d.n = 0
}

// Reseed sets a new seed and resets the digest to it.
func (d *Digest) Reseed(seed uint32) {
	d.seed = seed
	d.Reset()
}

// Len returns the number of bytes written since the last reset.
func (d *Digest) Len() uint64 { return d.n }

// Part returns the checksum and length written so far, for CombineAll.
func (d *Digest) Part() Part {
	return Part{CRC: d.crc, Length: d.n}
}

// Size returns the number of bytes Sum appends (4).
func (d *Digest) Size() int { return Size }

// BlockSize returns 1.
func (d *Digest) BlockSize() int { return 1 }
