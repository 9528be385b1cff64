package flagword

import (
	"errors"
	"fmt"
	"math/bits"
)

// Word is one packed flag word.
type Word uint32

const (
	// Width is the number of bits in a Word.
	Width = 32

	// Size is the number of bytes in a Word.
	Size = 4

	// ReservedRowBits is the number of low bits reserved in row words.
	// It is also the minimum offset of the first agent bit.
	ReservedRowBits = 2
)

const (
	// RowAbsent marks a row that was not present in the most recent load.
	RowAbsent Word = 1 << 0

	// RowFlagged marks a row whose pre-existing row flag was set.
	RowFlagged Word = 1 << 1

	// RowReserved covers both reserved row bits.
	RowReserved = RowAbsent | RowFlagged
)

// ErrCapacityExceeded is returned when correlations and agents do not fit a Word.
var ErrCapacityExceeded = errors.New("flag word capacity exceeded")

// Mode selects the storage strategy.
type Mode uint8

const (
	// ModeCompact packs pre-flags and agent bits into one Word per cell.
	ModeCompact Mode = iota
	// ModeWide stores one boolean per correlation and tracks agents separately.
	ModeWide
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeCompact:
		return "compact"
	case ModeWide:
		return "wide"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// SelectMode picks the storage mode for the given agent and correlation counts.
//
// One bit is kept spare so that the agent range never touches the top bit of
// the word.
func SelectMode(numAgents, numCorr, width int, forceWide bool) Mode {
	if forceWide || numAgents+numCorr+1 > width {
		return ModeWide
	}
	return ModeCompact
}

// Layout describes where pre-flag and agent bits live for one run.
type Layout struct {
	numCorr   int
	numAgents int
	base      uint
}

// NewLayout returns the layout for numCorr correlations and numAgents agents.
func NewLayout(numCorr, numAgents int) (Layout, error) {
	if numCorr <= 0 || numAgents < 0 {
		return Layout{}, fmt.Errorf("invalid layout: %d correlations, %d agents", numCorr, numAgents)
	}
	base := max(numCorr, ReservedRowBits)
	if base+numAgents > Width {
		return Layout{}, fmt.Errorf("%w: %d correlations + %d agents > %d bits",
			ErrCapacityExceeded, numCorr, numAgents, Width)
	}
	return Layout{numCorr: numCorr, numAgents: numAgents, base: uint(base)}, nil
}

// NumCorrelations returns the number of correlation bits.
func (l Layout) NumCorrelations() int { return l.numCorr }

// NumAgents returns the number of agent bits.
func (l Layout) NumAgents() int { return l.numAgents }

// Base returns the bit offset of agent 0.
func (l Layout) Base() uint { return l.base }

// CorrBits returns the mask of all pre-flag bits ("every correlation flagged").
func (l Layout) CorrBits() Word {
	return Word(1)<<uint(l.numCorr) - 1
}

// AgentBit returns the bit owned by agent i.
func (l Layout) AgentBit(i int) Word {
	return Word(1) << (l.base + uint(i))
}

// AgentBits returns the mask of every agent bit.
func (l Layout) AgentBits() Word {
	return (Word(1)<<uint(l.numAgents) - 1) << l.base
}

// Pre extracts the pre-flag bits of w.
func (l Layout) Pre(w Word) Word {
	return w & l.CorrBits()
}

// WithPre replaces the pre-flag bits of w with pre, keeping agent bits.
func (l Layout) WithPre(w, pre Word) Word {
	return w&^l.CorrBits() | pre&l.CorrBits()
}

// Agents extracts the agent bits of w.
func (l Layout) Agents(w Word) Word {
	return w & l.AgentBits()
}

// AgentOf returns the agent index owning the single bit b.
func (l Layout) AgentOf(b Word) int {
	return bits.TrailingZeros32(uint32(b)) - int(l.base)
}
