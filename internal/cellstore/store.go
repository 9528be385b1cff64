// Package cellstore holds the per-(channel, baseline) flag state of the
// current time slot.
//
// Two implementations share the Store interface: Compact packs pre-flags and
// agent bits into one atomic word per cell, Wide keeps one boolean per
// correlation and records agent membership in a roaring bitmap per baseline.
// The implementation is picked once when storage is allocated.
//
// Cells of distinct baselines never share memory, so Set and Clear may run
// concurrently for disjoint baselines. Advance and SetPre are barriers.
package cellstore

import (
	"errors"

	"github.com/hupe1980/flagcube/internal/flagword"
)

// ErrInvalidPosition is returned when a time index is outside the allocated range.
var ErrInvalidPosition = errors.New("invalid time position")

// Config is the shape of a cell store.
type Config struct {
	NumCorrelations int
	NumChannels     int
	NumBaselines    int
	NumTimeSlots    int

	// Depth is the number of time slots kept by a compact store.
	// 0 or anything above NumTimeSlots keeps every slot.
	Depth int
}

// Store is the shared cell grid.
type Store interface {
	// Mode returns the storage strategy.
	Mode() flagword.Mode

	// Time returns the time index the cursor is positioned at.
	Time() int

	// Advance moves the cursor to time index t.
	Advance(t int) error

	// Resident reports whether the cell state of time index t is still held.
	// Advance may hand a slot to a later time index, after which the earlier
	// one is gone.
	Resident(t int) bool

	// Set raises agent's flag on a cell and reports whether anything changed.
	Set(agent, ch, ifr int) bool

	// Clear lowers agent's flag on a cell and reports whether anything changed.
	Clear(agent, ch, ifr int) bool

	// Satisfies reports whether the cell is flagged for any correlation in mask,
	// either by a pre-flag or by an agent whose mask intersects it.
	Satisfies(ch, ifr int, mask uint64) bool

	// SatisfiesAt is Satisfies for a resident time index t. It does not move
	// the cursor.
	SatisfiesAt(t, ch, ifr int, mask uint64) bool

	// PreFlagged reports whether any correlation in mask is pre-flagged.
	PreFlagged(ch, ifr int, mask uint64) bool

	// SetPre replaces the pre-flag bits of a cell. Agent state is kept.
	SetPre(ch, ifr int, pre uint64)

	// Bytes returns the memory held by the store.
	Bytes() int64
}
