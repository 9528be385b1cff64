package cellstore

import (
	"sync/atomic"

	"github.com/hupe1980/flagcube/internal/corrmask"
	"github.com/hupe1980/flagcube/internal/flagword"
)

// Compact stores one flagword.Word per (channel, baseline, slot).
//
// Memory layout (one slot):
//
//	┌──────────────────────┬──────────────────────┬─────
//	│ baseline 0           │ baseline 1           │ ...
//	│ ch0 ch1 ... chN-1    │ ch0 ch1 ... chN-1    │
//	└──────────────────────┴──────────────────────┴─────
//
// Slots form a ring of Depth entries indexed by t % Depth. A slot handed to a
// new time index is refilled with the full correlation mask.
type Compact struct {
	layout flagword.Layout
	table  *corrmask.Table

	numChan int
	numIfr  int
	numTime int
	depth   int

	words    []atomic.Uint32
	slotTime []int

	cur  int
	base int // word offset of the current slot
}

// NewCompact allocates a compact store. The table must be compiled for layout.
func NewCompact(cfg Config, layout flagword.Layout, table *corrmask.Table) *Compact {
	depth := cfg.Depth
	if depth <= 0 || depth > cfg.NumTimeSlots {
		depth = cfg.NumTimeSlots
	}
	depth = max(depth, 1)

	s := &Compact{
		layout:   layout,
		table:    table,
		numChan:  cfg.NumChannels,
		numIfr:   cfg.NumBaselines,
		numTime:  cfg.NumTimeSlots,
		depth:    depth,
		words:    make([]atomic.Uint32, depth*cfg.NumBaselines*cfg.NumChannels),
		slotTime: make([]int, depth),
	}

	full := uint32(layout.CorrBits())
	for i := range s.words {
		s.words[i].Store(full)
	}
	for i := range s.slotTime {
		s.slotTime[i] = i
	}
	return s
}

// Mode implements Store.
func (s *Compact) Mode() flagword.Mode { return flagword.ModeCompact }

// Depth returns the number of time slots held.
func (s *Compact) Depth() int { return s.depth }

// Time implements Store.
func (s *Compact) Time() int { return s.cur }

// Advance implements Store.
func (s *Compact) Advance(t int) error {
	if t < 0 || t >= s.numTime {
		return ErrInvalidPosition
	}
	if t == s.cur {
		return nil
	}

	slot := t % s.depth
	slotWords := s.numIfr * s.numChan
	base := slot * slotWords
	if s.slotTime[slot] != t {
		full := uint32(s.layout.CorrBits())
		for i := base; i < base+slotWords; i++ {
			s.words[i].Store(full)
		}
		s.slotTime[slot] = t
	}

	s.cur = t
	s.base = base
	return nil
}

// Resident implements Store.
func (s *Compact) Resident(t int) bool {
	return t >= 0 && t < s.numTime && s.slotTime[t%s.depth] == t
}

func (s *Compact) word(ch, ifr int) *atomic.Uint32 {
	return &s.words[s.base+ifr*s.numChan+ch]
}

func (s *Compact) wordAt(t, ch, ifr int) *atomic.Uint32 {
	base := (t % s.depth) * s.numIfr * s.numChan
	return &s.words[base+ifr*s.numChan+ch]
}

// Set implements Store.
func (s *Compact) Set(agent, ch, ifr int) bool {
	bit := uint32(s.layout.AgentBit(agent))
	return s.word(ch, ifr).Or(bit)&bit == 0
}

// Clear implements Store.
func (s *Compact) Clear(agent, ch, ifr int) bool {
	bit := uint32(s.layout.AgentBit(agent))
	return s.word(ch, ifr).And(^bit)&bit != 0
}

// Satisfies implements Store.
func (s *Compact) Satisfies(ch, ifr int, mask uint64) bool {
	w := flagword.Word(s.word(ch, ifr).Load())
	return w&s.table.FlagMask(mask) != 0
}

// SatisfiesAt implements Store.
func (s *Compact) SatisfiesAt(t, ch, ifr int, mask uint64) bool {
	w := flagword.Word(s.wordAt(t, ch, ifr).Load())
	return w&s.table.FlagMask(mask) != 0
}

// PreFlagged implements Store.
func (s *Compact) PreFlagged(ch, ifr int, mask uint64) bool {
	w := flagword.Word(s.word(ch, ifr).Load())
	return s.layout.Pre(w)&flagword.Word(mask) != 0
}

// SetPre implements Store.
func (s *Compact) SetPre(ch, ifr int, pre uint64) {
	w := s.word(ch, ifr)
	for {
		old := w.Load()
		next := uint32(s.layout.WithPre(flagword.Word(old), flagword.Word(pre)))
		if w.CompareAndSwap(old, next) {
			return
		}
	}
}

// Bytes implements Store.
func (s *Compact) Bytes() int64 {
	return int64(len(s.words)) * flagword.Size
}
