package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flagcube"
	"github.com/hupe1980/flagcube/dataset"
)

func TestGenerator_Fill(t *testing.T) {
	shape := flagcube.Shape{NumCorrelations: 2, NumChannels: 8, NumBaselines: 4, NumTimeSlots: 3}

	frames := func(seed int64, absentRate, flagRate float64) []*flagcube.Frame {
		mem := dataset.NewMemory(shape)
		newGenerator(seed).fill(mem, shape, absentRate, flagRate)
		out := make([]*flagcube.Frame, shape.NumTimeSlots)
		for tm := range out {
			f, err := mem.ReadFlags(t.Context(), tm)
			require.NoError(t, err)
			out[tm] = f
		}
		return out
	}

	assert.Equal(t, frames(5, 0.3, 0.2), frames(5, 0.3, 0.2), "same seed, same data")

	for _, f := range frames(5, 0, 0) {
		assert.NotContains(t, f.Present, false)
		assert.NotContains(t, f.Flags, true)
	}
	for _, f := range frames(5, 1, 1) {
		assert.NotContains(t, f.Present, true)
		assert.NotContains(t, f.Flags, false)
	}
}

func TestGenerator_Amplitudes(t *testing.T) {
	g := newGenerator(1)
	amps := g.amplitudes(4, 16, 1, 0)
	require.Len(t, amps, 4)
	for _, row := range amps {
		require.Len(t, row, 16)
		for _, v := range row {
			assert.InDelta(t, 1, v, 1e-6)
		}
	}

	assert.Equal(t, 64, g.outliers(amps, 1, 10))
	assert.InDelta(t, 10, amps[3][15], 1e-5)
	assert.Zero(t, g.outliers(amps, 0, 10))
}
