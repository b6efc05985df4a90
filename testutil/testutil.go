package testutil

import (
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint32 returns a pseudo-random uint32.
func (r *RNG) Uint32() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint32()
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Fill fills dst with pseudo-random bytes.
// Locks only once per call.
func (r *RNG) Fill(dst []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.rand.Read(dst)
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	b := make([]byte, n)
	r.Fill(b)
	return b
}

// Split cuts data at a random offset in [0, len(data)].
func (r *RNG) Split(data []byte) (a, b []byte) {
	off := r.Intn(len(data) + 1)
	return data[:off], data[off:]
}

// Chunks cuts data into pieces of random length in [1, maxLen].
// The pieces alias data and concatenate back to it.
func (r *RNG) Chunks(data []byte, maxLen int) [][]byte {
	if maxLen < 1 {
		maxLen = 1
	}
	var out [][]byte
	for len(data) > 0 {
		n := 1 + r.Intn(maxLen)
		if n > len(data) {
			n = len(data)
		}
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

// Corrupt returns a copy of data with one random bit flipped.
// It panics on empty input.
func (r *RNG) Corrupt(data []byte) []byte {
	out := append([]byte(nil), data...)
	i := r.Intn(len(out))
	out[i] ^= 1 << uint(r.Intn(8))
	return out
}
