// Package testutil provides testing utilities for flagcube.
//
// This package is intended for use in tests and benchmarks only. It provides
// a seeded, thread-safe random source and helpers for generating synthetic
// flag data.
//
// # Random Flags
//
//	rng := testutil.NewRNG(seed)
//	flags := rng.Bools(n, 0.05)      // ~5% set
//	mask := rng.Mask(4)              // non-empty mask over 4 bits
package testutil
