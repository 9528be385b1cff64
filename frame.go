package flagcube

import "context"

// Frame is one time slot of plain boolean flags as exchanged with the
// external flag source and sink.
//
// Flags is indexed corr + NumCorrelations*(ch + NumChannels*ifr). Flags of
// rows that are not Present carry no meaning on input.
type Frame struct {
	Time            int
	NumCorrelations int
	NumChannels     int
	NumBaselines    int

	// Present marks the rows contained in the slot, per baseline.
	Present []bool
	// RowFlags marks whole-row rejection, per baseline.
	RowFlags []bool
	// Flags holds the cell flags.
	Flags []bool
}

// Source supplies pre-existing flags for a time slot.
type Source interface {
	ReadFlags(ctx context.Context, t int) (*Frame, error)
}

// Sink receives merged flags for a time slot.
type Sink interface {
	WriteFlags(ctx context.Context, f *Frame) error
}

// NewFrame returns an all-clear frame for time t where every row is absent.
func NewFrame(t int, shape Shape) *Frame {
	return &Frame{
		Time:            t,
		NumCorrelations: shape.NumCorrelations,
		NumChannels:     shape.NumChannels,
		NumBaselines:    shape.NumBaselines,
		Present:         make([]bool, shape.NumBaselines),
		RowFlags:        make([]bool, shape.NumBaselines),
		Flags:           make([]bool, shape.NumCorrelations*shape.NumChannels*shape.NumBaselines),
	}
}

// Index returns the position of (corr, ch, ifr) in Flags.
func (f *Frame) Index(corr, ch, ifr int) int {
	return corr + f.NumCorrelations*(ch+f.NumChannels*ifr)
}

// Flag returns the flag of one cell correlation.
func (f *Frame) Flag(corr, ch, ifr int) bool {
	return f.Flags[f.Index(corr, ch, ifr)]
}

// SetFlag sets the flag of one cell correlation.
func (f *Frame) SetFlag(corr, ch, ifr int, v bool) {
	f.Flags[f.Index(corr, ch, ifr)] = v
}

// CellMask returns the flagged correlations of one cell as a mask.
func (f *Frame) CellMask(ch, ifr int) CorrMask {
	var m CorrMask
	base := f.Index(0, ch, ifr)
	for c, v := range f.Flags[base : base+f.NumCorrelations] {
		if v {
			m |= 1 << uint(c)
		}
	}
	return m
}

// Shape returns the frame's dimensions for the given number of time slots.
func (f *Frame) Shape(numTimeSlots int) Shape {
	return Shape{
		NumCorrelations: f.NumCorrelations,
		NumChannels:     f.NumChannels,
		NumBaselines:    f.NumBaselines,
		NumTimeSlots:    numTimeSlots,
	}
}

// SizeBytes returns the number of booleans carried by the frame, used to
// meter IO.
func (f *Frame) SizeBytes() int {
	return len(f.Present) + len(f.RowFlags) + len(f.Flags)
}

// validate checks f against the allocated shape before anything is mutated.
func (f *Frame) validate(shape Shape, t int) error {
	checks := []struct {
		field          string
		expected, have int
	}{
		{"time", t, f.Time},
		{"correlations", shape.NumCorrelations, f.NumCorrelations},
		{"channels", shape.NumChannels, f.NumChannels},
		{"baselines", shape.NumBaselines, f.NumBaselines},
		{"present", shape.NumBaselines, len(f.Present)},
		{"row flags", shape.NumBaselines, len(f.RowFlags)},
		{"flags", shape.NumCorrelations * shape.Cells(), len(f.Flags)},
	}
	for _, c := range checks {
		if c.expected != c.have {
			return &ShapeMismatchError{Field: c.field, Expected: c.expected, Actual: c.have}
		}
	}
	return nil
}
