// Package corrmask maps correlation selections to the agents whose verdicts
// apply to them.
package corrmask

import (
	"math/bits"

	"github.com/hupe1980/flagcube/internal/flagword"
)

// maxCachedCorr bounds the precomputed mask table to 256 entries.
const maxCachedCorr = 8

// Table is the reverse map from correlation bits to agents.
//
// It is immutable once built and safe for concurrent reads.
type Table struct {
	numCorr int
	full    uint64
	masks   []uint64

	// byCorr[c] lists the agents whose mask contains correlation c.
	byCorr [][]int

	// Populated by Compile for compact layouts.
	compiled   bool
	layout     flagword.Layout
	bitsByCorr []flagword.Word
	flagMasks  []flagword.Word
}

// New builds a table for numCorr correlations and one mask per agent slot.
// Mask bits at or above numCorr are ignored.
func New(numCorr int, masks []uint64) *Table {
	full := FullMask(numCorr)
	t := &Table{
		numCorr: numCorr,
		full:    full,
		masks:   make([]uint64, len(masks)),
		byCorr:  make([][]int, numCorr),
	}
	for a, m := range masks {
		m &= full
		t.masks[a] = m
		for c := range numCorr {
			if m&(1<<uint(c)) != 0 {
				t.byCorr[c] = append(t.byCorr[c], a)
			}
		}
	}
	return t
}

// FullMask returns the mask selecting every one of numCorr correlations.
func FullMask(numCorr int) uint64 {
	if numCorr >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<uint(numCorr) - 1
}

// NumCorrelations returns the number of correlations.
func (t *Table) NumCorrelations() int { return t.numCorr }

// NumAgents returns the number of agent slots.
func (t *Table) NumAgents() int { return len(t.masks) }

// Full returns the mask selecting every correlation.
func (t *Table) Full() uint64 { return t.full }

// Mask returns the correlation mask declared by agent a.
func (t *Table) Mask(a int) uint64 { return t.masks[a] }

// AgentsForCorr returns the agents whose mask contains correlation c.
// The returned slice must not be modified.
func (t *Table) AgentsForCorr(c int) []int { return t.byCorr[c] }

// Intersects reports whether agent a's mask shares a correlation with mask.
func (t *Table) Intersects(a int, mask uint64) bool {
	return t.masks[a]&mask != 0
}

// Compile precomputes word masks for a compact layout.
func (t *Table) Compile(l flagword.Layout) {
	t.layout = l
	t.bitsByCorr = make([]flagword.Word, t.numCorr)
	for c, agents := range t.byCorr {
		for _, a := range agents {
			t.bitsByCorr[c] |= l.AgentBit(a)
		}
	}
	if t.numCorr <= maxCachedCorr {
		t.flagMasks = make([]flagword.Word, 1<<uint(t.numCorr))
		for m := range t.flagMasks {
			t.flagMasks[m] = t.computeFlagMask(uint64(m))
		}
	}
	t.compiled = true
}

// FlagMask returns the word bits that flag a cell for the correlation
// selection mask: the pre-flag bits of mask plus the bit of every agent whose
// mask intersects it. Compile must have been called.
func (t *Table) FlagMask(mask uint64) flagword.Word {
	mask &= t.full
	if t.flagMasks != nil {
		return t.flagMasks[mask]
	}
	return t.computeFlagMask(mask)
}

// Compiled reports whether Compile has been called.
func (t *Table) Compiled() bool { return t.compiled }

func (t *Table) computeFlagMask(mask uint64) flagword.Word {
	w := flagword.Word(mask) & t.layout.CorrBits()
	for m := mask; m != 0; m &= m - 1 {
		w |= t.bitsByCorr[bits.TrailingZeros64(m)]
	}
	return w
}
