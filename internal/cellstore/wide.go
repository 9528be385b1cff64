package cellstore

import (
	"fmt"
	"math/bits"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/flagcube/internal/conv"
	"github.com/hupe1980/flagcube/internal/corrmask"
	"github.com/hupe1980/flagcube/internal/flagword"
)

// Wide keeps one boolean per (correlation, channel, baseline) for the current
// time slot only.
//
// Each baseline owns:
//   - pre: the pre-existing flag per (channel, correlation)
//   - merged: pre OR any member agent whose mask contains the correlation
//   - members: the agents that flagged a channel, keyed agent*numChan+ch
//
// Moving the cursor to another time index discards the slot and restores the
// conservative state (every correlation pre-flagged, no members).
type Wide struct {
	table *corrmask.Table

	numCorr int
	numChan int
	numTime int

	rows []wideRow
	cur  int
}

type wideRow struct {
	pre     *bitset.BitSet
	merged  *bitset.BitSet
	members *roaring.Bitmap
}

// NewWide allocates a wide store for the agents declared in table.
func NewWide(cfg Config, table *corrmask.Table) (*Wide, error) {
	if _, err := conv.KeySpace(table.NumAgents(), cfg.NumChannels); err != nil {
		return nil, fmt.Errorf("wide cell store: %w", err)
	}

	n := uint(cfg.NumChannels * cfg.NumCorrelations)
	s := &Wide{
		table:   table,
		numCorr: cfg.NumCorrelations,
		numChan: cfg.NumChannels,
		numTime: cfg.NumTimeSlots,
		rows:    make([]wideRow, cfg.NumBaselines),
	}
	for i := range s.rows {
		s.rows[i] = wideRow{
			pre:     bitset.New(n),
			merged:  bitset.New(n),
			members: roaring.New(),
		}
		s.rows[i].reset(n)
	}
	return s, nil
}

func (r *wideRow) reset(n uint) {
	for i := range n {
		r.pre.Set(i)
		r.merged.Set(i)
	}
	r.members.Clear()
}

// Mode implements Store.
func (s *Wide) Mode() flagword.Mode { return flagword.ModeWide }

// Time implements Store.
func (s *Wide) Time() int { return s.cur }

// Advance implements Store.
func (s *Wide) Advance(t int) error {
	if t < 0 || t >= s.numTime {
		return ErrInvalidPosition
	}
	if t == s.cur {
		return nil
	}
	n := uint(s.numChan * s.numCorr)
	for i := range s.rows {
		s.rows[i].reset(n)
	}
	s.cur = t
	return nil
}

// Resident implements Store. Only the cursor slot is held.
func (s *Wide) Resident(t int) bool { return t == s.cur }

func (s *Wide) index(ch, c int) uint {
	return uint(ch*s.numCorr + c)
}

func (s *Wide) key(agent, ch int) uint32 {
	return uint32(agent*s.numChan + ch) //nolint:gosec // bounded by conv.KeySpace in NewWide
}

// memberFlags reports whether any member agent flags correlation c of channel ch.
func (s *Wide) memberFlags(r *wideRow, ch, c int) bool {
	for _, a := range s.table.AgentsForCorr(c) {
		if r.members.Contains(s.key(a, ch)) {
			return true
		}
	}
	return false
}

// Set implements Store.
func (s *Wide) Set(agent, ch, ifr int) bool {
	r := &s.rows[ifr]
	r.members.Add(s.key(agent, ch))

	changed := false
	for m := s.table.Mask(agent); m != 0; m &= m - 1 {
		i := s.index(ch, bits.TrailingZeros64(m))
		if !r.merged.Test(i) {
			r.merged.Set(i)
			changed = true
		}
	}
	return changed
}

// Clear implements Store.
func (s *Wide) Clear(agent, ch, ifr int) bool {
	r := &s.rows[ifr]
	if !r.members.CheckedRemove(s.key(agent, ch)) {
		return false
	}

	changed := false
	for m := s.table.Mask(agent); m != 0; m &= m - 1 {
		c := bits.TrailingZeros64(m)
		i := s.index(ch, c)
		if !r.merged.Test(i) || r.pre.Test(i) || s.memberFlags(r, ch, c) {
			continue
		}
		r.merged.Clear(i)
		changed = true
	}
	return changed
}

// Satisfies implements Store.
func (s *Wide) Satisfies(ch, ifr int, mask uint64) bool {
	return s.any(s.rows[ifr].merged, ch, mask)
}

// SatisfiesAt implements Store. t must be resident.
func (s *Wide) SatisfiesAt(_, ch, ifr int, mask uint64) bool {
	return s.Satisfies(ch, ifr, mask)
}

// PreFlagged implements Store.
func (s *Wide) PreFlagged(ch, ifr int, mask uint64) bool {
	return s.any(s.rows[ifr].pre, ch, mask)
}

func (s *Wide) any(b *bitset.BitSet, ch int, mask uint64) bool {
	for m := mask & s.table.Full(); m != 0; m &= m - 1 {
		if b.Test(s.index(ch, bits.TrailingZeros64(m))) {
			return true
		}
	}
	return false
}

// SetPre implements Store.
func (s *Wide) SetPre(ch, ifr int, pre uint64) {
	r := &s.rows[ifr]
	for c := range s.numCorr {
		i := s.index(ch, c)
		p := pre&(1<<uint(c)) != 0
		r.pre.SetTo(i, p)
		r.merged.SetTo(i, p || s.memberFlags(r, ch, c))
	}
}

// Bytes implements Store.
func (s *Wide) Bytes() int64 {
	var total int64
	for i := range s.rows {
		r := &s.rows[i]
		total += int64(r.pre.BinaryStorageSize() + r.merged.BinaryStorageSize())
		total += int64(r.members.GetSizeInBytes())
	}
	return total
}

// WideBytes estimates the fixed memory of a wide store.
func WideBytes(numCorr, numChan, numIfr int) int64 {
	words := (numCorr*numChan + 63) / 64
	return int64(numIfr) * 2 * int64(words) * 8
}
