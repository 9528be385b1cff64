package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBools(t *testing.T) {
	rng := NewRNG(4711)

	assert.Len(t, rng.Bools(10, 0.5), 10)
	assert.NotContains(t, rng.Bools(100, 0), true)
	assert.NotContains(t, rng.Bools(100, 1), false)
}

func TestMask(t *testing.T) {
	rng := NewRNG(4711)

	for range 100 {
		m := rng.Mask(2)
		assert.NotZero(t, m)
		assert.LessOrEqual(t, m, uint64(0b11))
	}
	assert.NotZero(t, rng.Mask(64))
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.Bools(32, 0.5)

	rng.Reset()
	v2 := rng.Bools(32, 0.5)

	assert.Equal(t, v1, v2)
}
