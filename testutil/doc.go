// Package testutil provides testing utilities for crc32c.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe source of pseudo-random byte data for
// property tests over checksums.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	data := rng.Bytes(1 << 20)
//	a, b := rng.Split(data)       // random cut point
//	pieces := rng.Chunks(data, 64) // random-length fragments
//	bad := rng.Corrupt(data)       // single bit flip
package testutil
