package cli

import (
	"math/rand"

	"github.com/hupe1980/flagcube"
	"github.com/hupe1980/flagcube/dataset"
)

// generator produces the synthetic dataset of a run. The same seed yields
// the same presence, flags and amplitudes. It is not safe for concurrent use.
type generator struct {
	rand *rand.Rand
}

func newGenerator(seed int64) *generator {
	return &generator{rand: rand.New(rand.NewSource(seed))} //nolint:gosec // reproducible simulation data
}

// fill writes presence and pre-existing flags for every slot into mem.
func (g *generator) fill(mem *dataset.Memory, shape flagcube.Shape, absentRate, flagRate float64) {
	for t := range shape.NumTimeSlots {
		for ifr := range shape.NumBaselines {
			mem.SetPresent(t, ifr, g.rand.Float64() >= absentRate)
		}
		for i := range shape.NumCorrelations * shape.Cells() {
			if g.rand.Float64() >= flagRate {
				continue
			}
			corr := i % shape.NumCorrelations
			cell := i / shape.NumCorrelations
			mem.SetFlag(t, corr, cell%shape.NumChannels, cell/shape.NumChannels, true)
		}
	}
}

// amplitudes returns one row of numChannels values per baseline, normally
// distributed around mean.
func (g *generator) amplitudes(numBaselines, numChannels int, mean, spread float32) [][]float32 {
	data := make([]float32, numBaselines*numChannels)
	rows := make([][]float32, numBaselines)
	for i := range rows {
		row := data[i*numChannels : (i+1)*numChannels]
		for j := range row {
			row[j] = mean + float32(g.rand.NormFloat64())*spread
		}
		rows[i] = row
	}
	return rows
}

// outliers multiplies each value by gain with probability rate and returns
// how many values changed.
func (g *generator) outliers(rows [][]float32, rate float64, gain float32) int {
	n := 0
	for _, row := range rows {
		for j := range row {
			if g.rand.Float64() < rate {
				row[j] *= gain
				n++
			}
		}
	}
	return n
}
