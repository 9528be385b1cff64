package flagcube

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/flagcube/internal/corrmask"
)

// load reads the pre-existing flags of time t into storage.
//
// Loading the last loaded time index again is a no-op; an earlier one is
// rejected with ErrInvalidPosition. The frame is validated before anything is mutated, so a failed load leaves storage
// untouched. After advancing to t, every row is refreshed:
//   - absent rows are marked absent and keep the conservative cell state
//   - present rows under PolicyReset start clean
//   - present rows under PolicyHonor or PolicyIgnore copy the row flag, and
//     copy per-cell flags only when the row flag is clear
func (s *Shared) load(ctx context.Context, t int, policy Policy, logger *Logger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.current()
	if err != nil {
		return err
	}
	if err := s.checkTime(t); err != nil {
		return err
	}
	if done, err := inOrder(s.lastLoaded, t, "loaded"); done || err != nil {
		return err
	}
	if s.opts.source == nil {
		return ErrNoSource
	}

	start := time.Now()
	absent, err := s.loadFrame(ctx, st, t, policy)
	s.opts.metricsCollector.RecordLoad(time.Since(start), err)
	logger.LogLoad(ctx, t, policy, absent, err)
	if err != nil {
		return err
	}

	s.lastLoaded = &t
	return nil
}

func (s *Shared) loadFrame(ctx context.Context, st *storage, t int, policy Policy) (int, error) {
	f, err := s.opts.source.ReadFlags(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("read flags for time %d: %w", t, err)
	}
	if f == nil {
		return 0, fmt.Errorf("read flags for time %d: %w", t, ErrNoSource)
	}
	if err := f.validate(s.shape, t); err != nil {
		return 0, err
	}
	if err := s.opts.rc.AcquireIO(ctx, f.SizeBytes()); err != nil {
		return 0, err
	}
	if err := st.cells.Advance(t); err != nil {
		return 0, translateError(err)
	}

	full := corrmask.FullMask(s.shape.NumCorrelations)
	keep := policy.keepsPreFlags()

	absent := 0
	for ifr := range s.shape.NumBaselines {
		present := f.Present[ifr]
		rowFlagged := keep && present && f.RowFlags[ifr]
		st.rows.Load(ifr, t, present, rowFlagged)

		for ch := range s.shape.NumChannels {
			switch {
			case !present || rowFlagged:
				st.cells.SetPre(ch, ifr, full)
			case keep:
				st.cells.SetPre(ch, ifr, uint64(f.CellMask(ch, ifr)))
			default:
				st.cells.SetPre(ch, ifr, 0)
			}
		}
		if !present {
			absent++
		}
	}
	return absent, nil
}

// publish writes the merged flags of time t to the sink.
//
// Publishing the last published time index again is a no-op; an earlier one
// is rejected with ErrInvalidPosition, as is a time index whose cell state
// was recycled by the ring or discarded by wide mode. Publishing never moves
// the cursor.
//
// Each cell correlation is published as flagged when the cell satisfies that
// correlation. A present row is published as rejected iff every channel and
// correlation of it is flagged. An absent row is published with Present
// false, every cell flagged and the row flag clear, whatever the policy.
// Counters and the marker move only after the sink accepted the frame.
func (s *Shared) publish(ctx context.Context, t int, logger *Logger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.current()
	if err != nil {
		return err
	}
	if err := s.checkTime(t); err != nil {
		return err
	}
	if done, err := inOrder(s.lastPublished, t, "published"); done || err != nil {
		return err
	}
	if s.opts.sink == nil {
		return ErrNoSink
	}
	if !st.cells.Resident(t) {
		return fmt.Errorf("%w: cell state of time %d is no longer held (cursor at %d)",
			ErrInvalidPosition, t, st.cells.Time())
	}

	start := time.Now()
	f, tally := s.buildFrame(st, t)
	err = s.opts.rc.AcquireIO(ctx, f.SizeBytes())
	if err == nil {
		err = s.opts.sink.WriteFlags(ctx, f)
	}
	s.opts.metricsCollector.RecordPublish(tally.rows, time.Since(start), err)
	logger.LogPublish(ctx, t, tally.rows, err)
	if err != nil {
		return fmt.Errorf("write flags for time %d: %w", t, err)
	}

	tally.apply(st.counts, t)
	s.lastPublished = &t
	return nil
}

// inOrder reports whether t repeats the last handled time index. A time
// index before it is an error.
func inOrder(last *int, t int, what string) (bool, error) {
	switch {
	case last == nil || t > *last:
		return false, nil
	case t == *last:
		return true, nil
	default:
		return false, fmt.Errorf("%w: time %d is before the last %s time %d",
			ErrInvalidPosition, t, what, *last)
	}
}

// publishTally holds the counter updates of one publish.
type publishTally struct {
	// corr[ch + nChan*ifr] is the number of flagged correlations.
	corr []int64
	// chans[ifr] is the number of fully flagged channels.
	chans []int32
	rows  int
}

func (s *Shared) buildFrame(st *storage, t int) (*Frame, publishTally) {
	shape := s.shape
	f := NewFrame(t, shape)
	tally := publishTally{
		corr:  make([]int64, shape.Cells()),
		chans: make([]int32, shape.NumBaselines),
	}

	for ifr := range shape.NumBaselines {
		present := !st.rows.Absent(ifr, t)
		rowFlagged := st.rows.Flagged(ifr, t)
		f.Present[ifr] = present

		allFlagged := true
		for ch := range shape.NumChannels {
			n := 0
			for c := range shape.NumCorrelations {
				v := rowFlagged || st.cells.SatisfiesAt(t, ch, ifr, 1<<uint(c))
				f.SetFlag(c, ch, ifr, v)
				if v {
					n++
				}
			}
			if n < shape.NumCorrelations {
				allFlagged = false
			}
			if !present {
				continue
			}
			tally.corr[ch+shape.NumChannels*ifr] = int64(n)
			if n == shape.NumCorrelations {
				tally.chans[ifr]++
			}
		}

		if present && allFlagged {
			f.RowFlags[ifr] = true
			tally.rows++
		}
	}
	return f, tally
}

func (p publishTally) apply(c *counters, t int) {
	for i, n := range p.corr {
		c.corr[i] += n
	}
	nIfr := c.shape.NumBaselines
	copy(c.chans[nIfr*t:nIfr*(t+1)], p.chans)
	c.rows[t] = int64(p.rows)
}
