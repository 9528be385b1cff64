package flagcube

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flagcube/testutil"
)

func TestWorkedExample(t *testing.T) {
	shape := Shape{NumCorrelations: 2, NumChannels: 3, NumBaselines: 2, NumTimeSlots: 1}

	for name, wide := range modes {
		t.Run(name, func(t *testing.T) {
			store := newFrameStore()
			in := presentFrame(0, shape)
			for ch := range shape.NumChannels {
				in.SetFlag(0, ch, 0, true)
			}
			store.in[0] = in

			s, agents := newRun(t, shape, []CorrMask{0b11}, PolicyHonor,
				WithSource(store), WithSink(store), WithWideMode(wide))
			a := agents[0]

			require.NoError(t, a.Advance(0))
			require.NoError(t, a.Load(t.Context(), 0))

			for ch := range shape.NumChannels {
				ok, err := s.CellSatisfies(ch, 0, 0b01)
				require.NoError(t, err)
				assert.True(t, ok)

				ok, err = s.CellSatisfies(ch, 0, 0b10)
				require.NoError(t, err)
				assert.False(t, ok)

				changed, err := a.SetFlag(ch, 0)
				require.NoError(t, err)
				assert.True(t, changed)
			}

			require.NoError(t, a.Publish(t.Context(), 0))

			out := store.out[0]
			require.NotNil(t, out)
			for ch := range shape.NumChannels {
				assert.True(t, out.Flag(0, ch, 0))
				assert.True(t, out.Flag(1, ch, 0))
				assert.False(t, out.Flag(0, ch, 1))
				assert.False(t, out.Flag(1, ch, 1))
			}
			assert.True(t, out.RowFlags[0])
			assert.False(t, out.RowFlags[1])
			assert.Equal(t, []bool{true, true}, out.Present)
		})
	}
}

func TestConservativeDefault(t *testing.T) {
	shape := Shape{NumCorrelations: 4, NumChannels: 5, NumBaselines: 3, NumTimeSlots: 2}

	for name, wide := range modes {
		t.Run(name, func(t *testing.T) {
			s, agents := newRun(t, shape, []CorrMask{0b0001}, PolicyHonor, WithWideMode(wide))

			for _, tm := range []int{0, 1} {
				require.NoError(t, agents[0].Advance(tm))
				for ifr := range shape.NumBaselines {
					for ch := range shape.NumChannels {
						for c := range shape.NumCorrelations {
							ok, err := s.CellSatisfies(ch, ifr, 1<<uint(c))
							require.NoError(t, err)
							assert.True(t, ok)
						}
					}
				}
			}
		})
	}
}

func TestBitIsolation(t *testing.T) {
	shape := Shape{NumCorrelations: 2, NumChannels: 4, NumBaselines: 2, NumTimeSlots: 1}

	for name, wide := range modes {
		t.Run(name, func(t *testing.T) {
			_, agents := newRun(t, shape, []CorrMask{0b11, 0b11, 0b01}, PolicyReset, WithWideMode(wide))

			for ifr := range shape.NumBaselines {
				for ch := range shape.NumChannels {
					for i, a := range agents {
						_, err := a.SetFlag(ch, ifr)
						require.NoError(t, err)
						for j, b := range agents {
							if i == j {
								continue
							}
							if j > i {
								changed, err := b.ClearFlag(ch, ifr)
								require.NoError(t, err)
								assert.False(t, changed, "agent %d cleared agent %d's flag", j, i)
							}
						}
					}
				}
			}
		})
	}
}

func TestCompact_EveryAgentOwnsItsBit(t *testing.T) {
	shape := Shape{NumCorrelations: 4, NumChannels: 1, NumBaselines: 1, NumTimeSlots: 1}
	masks := make([]CorrMask, 27) // 4 + 27 + 1 == 32
	for i := range masks {
		masks[i] = FullCorrMask(4)
	}

	s, agents := newRun(t, shape, masks, PolicyReset)
	mode, err := s.Mode()
	require.NoError(t, err)
	assert.Equal(t, ModeCompact, mode)

	for _, a := range agents {
		changed, err := a.SetFlag(0, 0)
		require.NoError(t, err)
		assert.True(t, changed)
	}
	for _, a := range agents {
		changed, err := a.ClearFlag(0, 0)
		require.NoError(t, err)
		assert.True(t, changed)
	}
}

func TestModeSelection(t *testing.T) {
	shape := Shape{NumCorrelations: 4, NumChannels: 1, NumBaselines: 1, NumTimeSlots: 1}

	tests := []struct {
		name   string
		agents int
		wide   WideMode
		want   Mode
		err    error
	}{
		{"fits", 27, WideAuto, ModeCompact, nil},
		{"overflow", 28, WideAuto, ModeWide, nil},
		{"forced", 1, WideForce, ModeWide, nil},
		{"disabled", 28, WideDisabled, 0, ErrCapacityExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewShared(shape, WithWideMode(tt.wide))
			require.NoError(t, err)

			var a *Agent
			for range tt.agents {
				a, err = s.NewAgent("a", 1, PolicyReset)
				require.NoError(t, err)
			}

			err = a.Init()
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.False(t, s.Allocated())
				return
			}
			require.NoError(t, err)
			mode, err := s.Mode()
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)
		})
	}
}

func TestModeEquivalence(t *testing.T) {
	shape := Shape{NumCorrelations: 4, NumChannels: 16, NumBaselines: 6, NumTimeSlots: 3}
	masks := []CorrMask{0b1111, 0b0001, 0b0110, 0b1000}

	run := func(t *testing.T, wide WideMode) map[int]*Frame {
		rng := testutil.NewRNG(42)
		store := newFrameStore()
		for tm := range shape.NumTimeSlots {
			f := NewFrame(tm, shape)
			copy(f.Present, rng.Bools(shape.NumBaselines, 0.8))
			copy(f.RowFlags, rng.Bools(shape.NumBaselines, 0.2))
			copy(f.Flags, rng.Bools(len(f.Flags), 0.1))
			store.in[tm] = f
		}

		_, agents := newRun(t, shape, masks, PolicyHonor,
			WithSource(store), WithSink(store), WithWideMode(wide))

		for tm := range shape.NumTimeSlots {
			require.NoError(t, agents[0].Advance(tm))
			require.NoError(t, agents[0].Load(t.Context(), tm))
			for i, a := range agents {
				for ifr := range shape.NumBaselines {
					for ch := range shape.NumChannels {
						if rng.Intn(4) == 0 {
							_, err := a.SetFlag(ch, ifr)
							require.NoError(t, err)
						}
						if rng.Intn(8) == 0 {
							_, err := a.ClearFlag(ch, ifr)
							require.NoError(t, err)
						}
					}
					if rng.Intn(10) == i {
						_, err := a.SetRowFlag(ifr, tm)
						require.NoError(t, err)
					}
				}
			}
			require.NoError(t, agents[len(agents)-1].Publish(t.Context(), tm))
		}
		return store.out
	}

	compact := run(t, WideAuto)
	wide := run(t, WideForce)
	require.Len(t, compact, shape.NumTimeSlots)
	assert.Equal(t, compact, wide)
}

func TestReferenceCounting(t *testing.T) {
	shape := Shape{NumCorrelations: 2, NumChannels: 2, NumBaselines: 2, NumTimeSlots: 2}
	s, err := NewShared(shape, WithMemoryLimit(1<<20))
	require.NoError(t, err)

	var agents []*Agent
	for i := range 3 {
		a, err := s.NewAgent("a", 0b11, PolicyHonor)
		require.NoError(t, err)
		assert.Equal(t, i, a.ID())
		agents = append(agents, a)
	}
	assert.Equal(t, 3, s.Live())
	assert.Equal(t, 3, s.AgentCount())

	require.NoError(t, agents[1].Init())
	require.NoError(t, agents[0].Init())
	assert.True(t, s.Allocated())
	assert.Positive(t, s.ResourceController().MemoryUsage())

	_, err = s.NewAgent("late", 0b11, PolicyHonor)
	assert.ErrorIs(t, err, ErrAlreadyAllocated)

	require.NoError(t, agents[0].Close())
	require.NoError(t, agents[0].Close(), "close is idempotent")
	assert.Equal(t, 2, s.Live())
	assert.True(t, s.Allocated())

	_, err = agents[0].SetFlag(0, 0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = agents[1].SetFlag(0, 0)
	assert.NoError(t, err, "remaining agents keep their slots")

	require.NoError(t, agents[1].Close())
	require.NoError(t, agents[2].Close())
	assert.False(t, s.Allocated())
	assert.Zero(t, s.Live())
	assert.Zero(t, s.AgentCount())
	assert.Zero(t, s.ResourceController().MemoryUsage())

	a, err := s.NewAgent("next", 0b01, PolicyReset)
	require.NoError(t, err)
	assert.Equal(t, 0, a.ID())
	require.NoError(t, a.Init())
	require.NoError(t, a.Close())
}

func TestNotInitialized(t *testing.T) {
	shape := Shape{NumCorrelations: 1, NumChannels: 1, NumBaselines: 1, NumTimeSlots: 1}
	s, err := NewShared(shape)
	require.NoError(t, err)
	a, err := s.NewAgent("a", 1, PolicyHonor)
	require.NoError(t, err)

	_, err = a.SetFlag(0, 0)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = a.ClearFlag(0, 0)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = a.SetRowFlag(0, 0)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = a.ClearRowFlag(0, 0)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, a.Advance(0), ErrNotInitialized)
	assert.ErrorIs(t, a.Load(t.Context(), 0), ErrNotInitialized)
	assert.ErrorIs(t, a.Publish(t.Context(), 0), ErrNotInitialized)
	_, err = s.Report()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.Mode()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInvalidPosition(t *testing.T) {
	shape := Shape{NumCorrelations: 2, NumChannels: 3, NumBaselines: 2, NumTimeSlots: 4}

	for name, wide := range modes {
		t.Run(name, func(t *testing.T) {
			_, agents := newRun(t, shape, []CorrMask{0b11}, PolicyHonor, WithWideMode(wide))
			a := agents[0]

			assert.ErrorIs(t, a.Advance(4), ErrInvalidPosition)
			assert.ErrorIs(t, a.Advance(-1), ErrInvalidPosition)
			_, err := a.SetFlag(3, 0)
			assert.ErrorIs(t, err, ErrInvalidPosition)
			_, err = a.SetFlag(0, 2)
			assert.ErrorIs(t, err, ErrInvalidPosition)
			_, err = a.SetRowFlag(0, 4)
			assert.ErrorIs(t, err, ErrInvalidPosition)
			_, err = a.CellSatisfies(-1, 0, 1)
			assert.ErrorIs(t, err, ErrInvalidPosition)
			assert.ErrorIs(t, a.Load(t.Context(), 9), ErrInvalidPosition)
		})
	}
}

func TestNewShared_InvalidShape(t *testing.T) {
	for _, shape := range []Shape{
		{NumCorrelations: 0, NumChannels: 1, NumBaselines: 1, NumTimeSlots: 1},
		{NumCorrelations: 65, NumChannels: 1, NumBaselines: 1, NumTimeSlots: 1},
		{NumCorrelations: 1, NumChannels: 0, NumBaselines: 1, NumTimeSlots: 1},
		{NumCorrelations: 1, NumChannels: 1, NumBaselines: 0, NumTimeSlots: 1},
		{NumCorrelations: 1, NumChannels: 1, NumBaselines: 1, NumTimeSlots: 0},
	} {
		_, err := NewShared(shape)
		assert.ErrorIs(t, err, ErrInvalidShape)
	}
}

func TestNewAgent_InvalidMask(t *testing.T) {
	s, err := NewShared(Shape{NumCorrelations: 2, NumChannels: 1, NumBaselines: 1, NumTimeSlots: 1})
	require.NoError(t, err)

	_, err = s.NewAgent("none", 0, PolicyHonor)
	assert.ErrorIs(t, err, ErrInvalidMask)
	_, err = s.NewAgent("outside", 0b100, PolicyHonor)
	assert.ErrorIs(t, err, ErrInvalidMask)

	a, err := s.NewAgent("trimmed", 0b111, PolicyHonor)
	require.NoError(t, err)
	assert.Equal(t, CorrMask(0b11), a.Mask())
	assert.Equal(t, 0, a.ID(), "rejected declarations take no slot")
}

func TestRowFlagsCoverCells(t *testing.T) {
	shape := Shape{NumCorrelations: 2, NumChannels: 3, NumBaselines: 2, NumTimeSlots: 2}

	for name, wide := range modes {
		t.Run(name, func(t *testing.T) {
			s, agents := newRun(t, shape, []CorrMask{0b01, 0b10}, PolicyReset, WithWideMode(wide))
			a := agents[0]

			changed, err := a.SetRowFlag(1, 0)
			require.NoError(t, err)
			assert.True(t, changed)

			// The row flag covers every correlation, not only the agent's.
			ok, err := s.CellSatisfies(2, 1, 0b10)
			require.NoError(t, err)
			assert.True(t, ok)

			flagged, err := agents[1].RowFlagged(1, 0)
			require.NoError(t, err)
			assert.True(t, flagged)

			changed, err = agents[1].ClearRowFlag(1, 0)
			require.NoError(t, err)
			assert.False(t, changed, "agent 1 never raised the row")

			changed, err = a.ClearRowFlag(1, 0)
			require.NoError(t, err)
			assert.True(t, changed)

			flagged, err = a.RowFlagged(1, 0)
			require.NoError(t, err)
			assert.False(t, flagged)
		})
	}
}

func TestStats(t *testing.T) {
	shape := Shape{NumCorrelations: 2, NumChannels: 4, NumBaselines: 1, NumTimeSlots: 2}
	_, agents := newRun(t, shape, []CorrMask{0b11}, PolicyReset)
	a := agents[0]

	for ch := range 3 {
		_, err := a.SetFlag(ch, 0)
		require.NoError(t, err)
	}
	_, err := a.SetFlag(0, 0) // no transition
	require.NoError(t, err)
	_, err = a.ClearFlag(1, 0)
	require.NoError(t, err)
	_, err = a.SetRowFlag(0, 1)
	require.NoError(t, err)

	assert.Equal(t, AgentStats{
		RaisedThisPass:     3,
		ClearedThisPass:    1,
		RowsRaisedThisPass: 1,
		TotalRaised:        3,
		TotalRowsRaised:    1,
	}, a.Stats())

	a.Reset()
	assert.Equal(t, AgentStats{TotalRaised: 3, TotalRowsRaised: 1}, a.Stats())

	ok, err := a.Flagged(0, 0)
	require.NoError(t, err)
	assert.True(t, ok, "reset keeps flags")
}

func TestMemoryLimitShrinksRing(t *testing.T) {
	shape := Shape{NumCorrelations: 2, NumChannels: 8, NumBaselines: 4, NumTimeSlots: 10}
	rowBytes := EstimateMemoryUsage(1, 4, 10)
	slotBytes := EstimateMemoryUsage(8, 4, 1)

	s, _ := newRun(t, shape, []CorrMask{0b11}, PolicyHonor, WithMemoryLimit(rowBytes+3*slotBytes+1))
	assert.Equal(t, 3, s.Depth())
	assert.Equal(t, rowBytes+3*slotBytes, s.MemoryUsage())
}

func TestTimeWindow(t *testing.T) {
	shape := Shape{NumCorrelations: 2, NumChannels: 2, NumBaselines: 2, NumTimeSlots: 10}
	s, _ := newRun(t, shape, []CorrMask{0b11}, PolicyHonor, WithTimeWindow(2))
	assert.Equal(t, 2, s.Depth())
}

func TestMemoryLimitTooSmall(t *testing.T) {
	shape := Shape{NumCorrelations: 2, NumChannels: 64, NumBaselines: 64, NumTimeSlots: 4}
	metrics := &BasicMetricsCollector{}
	s, err := NewShared(shape, WithMemoryLimit(64), WithMetricsCollector(metrics))
	require.NoError(t, err)
	a, err := s.NewAgent("a", 0b11, PolicyHonor)
	require.NoError(t, err)

	err = a.Init()
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.False(t, s.Allocated())
	assert.Equal(t, int64(1), metrics.GetStats().AllocateErrors)
}

func TestEstimateMemoryUsage(t *testing.T) {
	assert.Equal(t, int64(64*32*100*4), EstimateMemoryUsage(64, 32, 100))
	assert.Zero(t, EstimateMemoryUsage(0, 32, 100))
}

func TestEstimateStorage(t *testing.T) {
	shape := Shape{NumCorrelations: 2, NumChannels: 8, NumBaselines: 4, NumTimeSlots: 10}

	est, err := EstimateStorage(shape, 2)
	require.NoError(t, err)
	assert.Equal(t, StorageEstimate{Mode: ModeCompact.String(), Depth: 10, Bytes: EstimateMemoryUsage(1, 4, 10) + EstimateMemoryUsage(8, 4, 10)}, est)

	est, err = EstimateStorage(shape, 2, WithTimeWindow(3))
	require.NoError(t, err)
	assert.Equal(t, 3, est.Depth)

	est, err = EstimateStorage(shape, 31)
	require.NoError(t, err)
	assert.Equal(t, ModeWide.String(), est.Mode)
	assert.Equal(t, 1, est.Depth)

	_, err = EstimateStorage(shape, 31, WithWideMode(WideDisabled))
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = EstimateStorage(shape, 2, WithMemoryLimit(8))
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)

	_, err = EstimateStorage(shape, 0)
	assert.Error(t, err)

	_, err = EstimateStorage(Shape{}, 1)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))
	other := errors.New("other")
	assert.Equal(t, other, translateError(other))
}
