package rowstore

import (
	"sync/atomic"

	"github.com/hupe1980/flagcube/internal/flagword"
)

// Compact packs each row into one flagword.Word. Words are laid out
// baseline-major so that one baseline's rows are contiguous.
type Compact struct {
	layout  flagword.Layout
	numTime int
	words   []atomic.Uint32
}

// NewCompact allocates a compact row store with every row absent.
func NewCompact(cfg Config, layout flagword.Layout) *Compact {
	s := &Compact{
		layout:  layout,
		numTime: cfg.NumTimeSlots,
		words:   make([]atomic.Uint32, cfg.NumBaselines*cfg.NumTimeSlots),
	}
	for i := range s.words {
		s.words[i].Store(uint32(flagword.RowAbsent))
	}
	return s
}

// Mode implements Store.
func (s *Compact) Mode() flagword.Mode { return flagword.ModeCompact }

func (s *Compact) word(ifr, t int) *atomic.Uint32 {
	return &s.words[ifr*s.numTime+t]
}

// Set implements Store.
func (s *Compact) Set(agent, ifr, t int) bool {
	bit := uint32(s.layout.AgentBit(agent))
	return s.word(ifr, t).Or(bit)&bit == 0
}

// Clear implements Store.
func (s *Compact) Clear(agent, ifr, t int) bool {
	bit := uint32(s.layout.AgentBit(agent))
	return s.word(ifr, t).And(^bit)&bit != 0
}

// Flagged implements Store.
func (s *Compact) Flagged(ifr, t int) bool {
	w := flagword.Word(s.word(ifr, t).Load())
	return w&(flagword.RowFlagged|s.layout.AgentBits()) != 0
}

// PreFlagged implements Store.
func (s *Compact) PreFlagged(ifr, t int) bool {
	return flagword.Word(s.word(ifr, t).Load())&flagword.RowFlagged != 0
}

// Absent implements Store.
func (s *Compact) Absent(ifr, t int) bool {
	return flagword.Word(s.word(ifr, t).Load())&flagword.RowAbsent != 0
}

// Load implements Store.
func (s *Compact) Load(ifr, t int, present, preFlagged bool) {
	var reserved flagword.Word
	if !present {
		reserved |= flagword.RowAbsent
	}
	if preFlagged {
		reserved |= flagword.RowFlagged
	}

	w := s.word(ifr, t)
	for {
		old := w.Load()
		next := uint32(flagword.Word(old)&^flagword.RowReserved | reserved)
		if w.CompareAndSwap(old, next) {
			return
		}
	}
}

// Bytes implements Store.
func (s *Compact) Bytes() int64 {
	return int64(len(s.words)) * flagword.Size
}
