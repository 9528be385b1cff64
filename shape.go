package flagcube

import (
	"fmt"

	"github.com/hupe1980/flagcube/internal/corrmask"
	"github.com/hupe1980/flagcube/internal/flagword"
)

// MaxCorrelations is the largest correlation count a CorrMask can address.
const MaxCorrelations = 64

// Mode is the storage strategy picked at allocation.
type Mode = flagword.Mode

const (
	// ModeCompact packs pre-flags and agent bits into one word per cell.
	ModeCompact = flagword.ModeCompact
	// ModeWide keeps one boolean per correlation and tracks agents separately.
	ModeWide = flagword.ModeWide
)

// CorrMask selects correlations by bit index.
type CorrMask uint64

// FullCorrMask returns the mask selecting every one of numCorr correlations.
func FullCorrMask(numCorr int) CorrMask {
	return CorrMask(corrmask.FullMask(numCorr))
}

// Has reports whether correlation c is selected.
func (m CorrMask) Has(c int) bool {
	return c >= 0 && c < MaxCorrelations && m&(1<<uint(c)) != 0
}

// Shape is the extent of the flagged dataset chunk.
type Shape struct {
	NumCorrelations int `json:"num_correlations" yaml:"num_correlations"`
	NumChannels     int `json:"num_channels" yaml:"num_channels"`
	NumBaselines    int `json:"num_baselines" yaml:"num_baselines"`
	NumTimeSlots    int `json:"num_time_slots" yaml:"num_time_slots"`
}

// Validate checks that every dimension is positive and correlations fit a CorrMask.
func (s Shape) Validate() error {
	switch {
	case s.NumCorrelations <= 0 || s.NumCorrelations > MaxCorrelations:
		return fmt.Errorf("%w: %d correlations (want 1..%d)", ErrInvalidShape, s.NumCorrelations, MaxCorrelations)
	case s.NumChannels <= 0:
		return fmt.Errorf("%w: %d channels", ErrInvalidShape, s.NumChannels)
	case s.NumBaselines <= 0:
		return fmt.Errorf("%w: %d baselines", ErrInvalidShape, s.NumBaselines)
	case s.NumTimeSlots <= 0:
		return fmt.Errorf("%w: %d time slots", ErrInvalidShape, s.NumTimeSlots)
	}
	return nil
}

// Cells returns the number of (channel, baseline) cells in one time slot.
func (s Shape) Cells() int {
	return s.NumChannels * s.NumBaselines
}
