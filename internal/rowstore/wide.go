package rowstore

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/flagcube/internal/conv"
	"github.com/hupe1980/flagcube/internal/flagword"
)

// Wide keeps row state as per-baseline bitsets over time, with agent
// membership in a roaring bitmap keyed agent*numTime+t.
type Wide struct {
	numTime   int
	numAgents int
	rows      []wideRow
}

type wideRow struct {
	absent  *bitset.BitSet
	pre     *bitset.BitSet
	merged  *bitset.BitSet
	members *roaring.Bitmap
}

// NewWide allocates a wide row store with every row absent.
func NewWide(cfg Config) (*Wide, error) {
	if _, err := conv.KeySpace(cfg.NumAgents, cfg.NumTimeSlots); err != nil {
		return nil, fmt.Errorf("wide row store: %w", err)
	}

	n := uint(cfg.NumTimeSlots)
	s := &Wide{
		numTime:   cfg.NumTimeSlots,
		numAgents: cfg.NumAgents,
		rows:      make([]wideRow, cfg.NumBaselines),
	}
	for i := range s.rows {
		r := wideRow{
			absent:  bitset.New(n),
			pre:     bitset.New(n),
			merged:  bitset.New(n),
			members: roaring.New(),
		}
		for t := range n {
			r.absent.Set(t)
		}
		s.rows[i] = r
	}
	return s, nil
}

// Mode implements Store.
func (s *Wide) Mode() flagword.Mode { return flagword.ModeWide }

func (s *Wide) key(agent, t int) uint32 {
	return uint32(agent*s.numTime + t) //nolint:gosec // bounded by conv.KeySpace in NewWide
}

func (s *Wide) anyMember(r *wideRow, t int) bool {
	for a := range s.numAgents {
		if r.members.Contains(s.key(a, t)) {
			return true
		}
	}
	return false
}

// Set implements Store.
func (s *Wide) Set(agent, ifr, t int) bool {
	r := &s.rows[ifr]
	r.members.Add(s.key(agent, t))
	if r.merged.Test(uint(t)) {
		return false
	}
	r.merged.Set(uint(t))
	return true
}

// Clear implements Store.
func (s *Wide) Clear(agent, ifr, t int) bool {
	r := &s.rows[ifr]
	if !r.members.CheckedRemove(s.key(agent, t)) {
		return false
	}
	if !r.merged.Test(uint(t)) || r.pre.Test(uint(t)) || s.anyMember(r, t) {
		return false
	}
	r.merged.Clear(uint(t))
	return true
}

// Flagged implements Store.
func (s *Wide) Flagged(ifr, t int) bool {
	return s.rows[ifr].merged.Test(uint(t))
}

// PreFlagged implements Store.
func (s *Wide) PreFlagged(ifr, t int) bool {
	return s.rows[ifr].pre.Test(uint(t))
}

// Absent implements Store.
func (s *Wide) Absent(ifr, t int) bool {
	return s.rows[ifr].absent.Test(uint(t))
}

// Load implements Store.
func (s *Wide) Load(ifr, t int, present, preFlagged bool) {
	r := &s.rows[ifr]
	r.absent.SetTo(uint(t), !present)
	r.pre.SetTo(uint(t), preFlagged)
	r.merged.SetTo(uint(t), preFlagged || s.anyMember(r, t))
}

// Bytes implements Store.
func (s *Wide) Bytes() int64 {
	var total int64
	for i := range s.rows {
		r := &s.rows[i]
		total += int64(r.absent.BinaryStorageSize() + r.pre.BinaryStorageSize() + r.merged.BinaryStorageSize())
		total += int64(r.members.GetSizeInBytes())
	}
	return total
}

// WideBytes estimates the fixed memory of a wide row store.
func WideBytes(numIfr, numTime int) int64 {
	words := (numTime + 63) / 64
	return int64(numIfr) * 3 * int64(words) * 8
}
