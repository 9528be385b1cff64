package dataset

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/flagcube"
)

// slot is one time slot of flags. Bitmaps hold the set positions: baselines
// for present and rowFlags, Frame indices for flags.
type slot struct {
	present  *roaring.Bitmap
	rowFlags *roaring.Bitmap
	flags    *roaring.Bitmap
}

func newSlot() *slot {
	return &slot{
		present:  roaring.New(),
		rowFlags: roaring.New(),
		flags:    roaring.New(),
	}
}

func slotFromFrame(f *flagcube.Frame) *slot {
	s := newSlot()
	addSet(s.present, f.Present)
	addSet(s.rowFlags, f.RowFlags)
	addSet(s.flags, f.Flags)
	return s
}

func addSet(b *roaring.Bitmap, v []bool) {
	for i, set := range v {
		if set {
			b.AddInt(i)
		}
	}
}

func fillFrom(dst []bool, b *roaring.Bitmap) {
	it := b.Iterator()
	for it.HasNext() {
		if i := int(it.Next()); i < len(dst) {
			dst[i] = true
		}
	}
}

func (s *slot) frame(t int, shape flagcube.Shape) *flagcube.Frame {
	f := flagcube.NewFrame(t, shape)
	fillFrom(f.Present, s.present)
	fillFrom(f.RowFlags, s.rowFlags)
	fillFrom(f.Flags, s.flags)
	return f
}

// Memory is an in-memory flag Source and Sink.
//
// Time slots that were never put read back with every row absent.
// It is safe for concurrent use.
type Memory struct {
	shape flagcube.Shape

	mu  sync.RWMutex
	in  map[int]*slot
	out map[int]*slot
}

// NewMemory returns an empty dataset of the given shape.
func NewMemory(shape flagcube.Shape) *Memory {
	return &Memory{
		shape: shape,
		in:    make(map[int]*slot),
		out:   make(map[int]*slot),
	}
}

// Shape returns the dataset shape.
func (m *Memory) Shape() flagcube.Shape { return m.shape }

func (m *Memory) input(t int) *slot {
	s, ok := m.in[t]
	if !ok {
		s = newSlot()
		m.in[t] = s
	}
	return s
}

// Put replaces the pre-existing flags of time slot f.Time.
func (m *Memory) Put(f *flagcube.Frame) {
	s := slotFromFrame(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.in[f.Time] = s
}

// SetPresent marks row (ifr, t) as present in the input.
func (m *Memory) SetPresent(t, ifr int, present bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	setBit(m.input(t).present, ifr, present)
}

// SetRowFlag sets the pre-existing row flag of (ifr, t).
func (m *Memory) SetRowFlag(t, ifr int, flagged bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	setBit(m.input(t).rowFlags, ifr, flagged)
}

// SetFlag sets one pre-existing cell flag.
func (m *Memory) SetFlag(t, corr, ch, ifr int, flagged bool) {
	i := corr + m.shape.NumCorrelations*(ch+m.shape.NumChannels*ifr)
	m.mu.Lock()
	defer m.mu.Unlock()
	setBit(m.input(t).flags, i, flagged)
}

func setBit(b *roaring.Bitmap, i int, v bool) {
	if v {
		b.AddInt(i)
	} else {
		b.Remove(uint32(i)) //nolint:gosec // indices are bounded by the shape
	}
}

// ReadFlags implements flagcube.Source.
func (m *Memory) ReadFlags(_ context.Context, t int) (*flagcube.Frame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.in[t]; ok {
		return s.frame(t, m.shape), nil
	}
	return flagcube.NewFrame(t, m.shape), nil
}

// WriteFlags implements flagcube.Sink.
func (m *Memory) WriteFlags(_ context.Context, f *flagcube.Frame) error {
	s := slotFromFrame(f)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out[f.Time] = s
	return nil
}

// Published returns the frame last written for time t.
func (m *Memory) Published(t int) (*flagcube.Frame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.out[t]
	if !ok {
		return nil, false
	}
	return s.frame(t, m.shape), true
}

// Times returns the published time indices in ascending order.
func (m *Memory) Times() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b := roaring.New()
	for t := range m.out {
		b.AddInt(t)
	}
	times := make([]int, 0, b.GetCardinality())
	for _, t := range b.ToArray() {
		times = append(times, int(t))
	}
	return times
}

// FlaggedCells returns how many cell correlations were published as flagged
// for time t.
func (m *Memory) FlaggedCells(t int) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.out[t]; ok {
		return s.flags.GetCardinality()
	}
	return 0
}

// FlaggedRows returns how many rows were published as rejected for time t.
func (m *Memory) FlaggedRows(t int) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.out[t]; ok {
		return s.rowFlags.GetCardinality()
	}
	return 0
}

// Promote makes the published flags the input of the next run, as a
// pipeline writing flags back to its dataset would.
func (m *Memory) Promote() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for t, s := range m.out {
		m.in[t] = s
	}
	m.out = make(map[int]*slot)
}

// SizeBytes returns the serialized size of every held bitmap.
func (m *Memory) SizeBytes() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n uint64
	for _, slots := range []map[int]*slot{m.in, m.out} {
		for _, s := range slots {
			n += s.present.GetSerializedSizeInBytes() +
				s.rowFlags.GetSerializedSizeInBytes() +
				s.flags.GetSerializedSizeInBytes()
		}
	}
	return n
}
