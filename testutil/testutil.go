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

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// Bools returns n booleans, each true with probability rate.
func (r *RNG) Bools(n int, rate float64) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]bool, n)
	for i := range out {
		out[i] = r.rand.Float64() < rate
	}
	return out
}

// Mask returns a random non-empty mask over the low bits bits.
func (r *RNG) Mask(bits int) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := uint64(1)<<uint(bits) - 1
	if bits >= 64 {
		full = ^uint64(0)
	}
	for {
		if m := r.rand.Uint64() & full; m != 0 {
			return m
		}
	}
}
