// Package clip implements a range-based flagging agent.
//
// A Selector flags the values of each (channel, baseline) cell that fall
// outside a [Min, Max] range (clip mode) or inside it (flag-range mode),
// optionally deciding once per baseline from the mean over the channels that
// were not pre-flagged.
package clip

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/hupe1980/flagcube"
)

// Config describes what a Selector flags.
type Config struct {
	Min float32
	Max float32

	// Inside flags values within [Min, Max] instead of outside it.
	Inside bool

	// Average decides once per baseline from the mean of its channels that
	// were not pre-flagged, and applies the verdict to every channel.
	Average bool

	// Unflag clears the agent's flags where the range matches instead of
	// raising them.
	Unflag bool

	// RowFraction rejects the whole row when at least this fraction of a
	// baseline's channels is flagged after the pass. 0 disables it.
	RowFraction float64
}

// ErrInvalidRange is returned when Min exceeds Max.
var ErrInvalidRange = errors.New("clip: min exceeds max")

// Result counts what a pass changed.
type Result struct {
	Raised     int64
	Cleared    int64
	RowsRaised int64
}

// Selector flags one time slot of amplitudes through an agent.
type Selector struct {
	agent *flagcube.Agent
	cfg   Config
}

// New returns a selector flagging through agent.
func New(agent *flagcube.Agent, cfg Config) (*Selector, error) {
	if cfg.Min > cfg.Max {
		return nil, fmt.Errorf("%w: %g > %g", ErrInvalidRange, cfg.Min, cfg.Max)
	}
	if cfg.RowFraction < 0 || cfg.RowFraction > 1 {
		return nil, fmt.Errorf("clip: row fraction %g outside [0, 1]", cfg.RowFraction)
	}
	return &Selector{agent: agent, cfg: cfg}, nil
}

// Agent returns the agent the selector flags through.
func (s *Selector) Agent() *flagcube.Agent { return s.agent }

// matches reports whether v is selected for flagging. NaN always matches.
func (s *Selector) matches(v float32) bool {
	if math.IsNaN(float64(v)) {
		return true
	}
	in := v >= s.cfg.Min && v <= s.cfg.Max
	return in == s.cfg.Inside
}

// Flag runs one pass over amps at time t, where amps[ifr][ch] is the
// amplitude of channel ch on baseline ifr. The shared cursor must already be
// at t. Baselines are processed in parallel.
func (s *Selector) Flag(ctx context.Context, t int, amps [][]float32) (Result, error) {
	shared := s.agent.Shared()
	shape := shared.Shape()
	if len(amps) != shape.NumBaselines {
		return Result{}, &flagcube.ShapeMismatchError{Field: "baselines", Expected: shape.NumBaselines, Actual: len(amps)}
	}

	var raised, cleared, rows atomic.Int64
	err := shared.ForEachBaseline(ctx, func(_ context.Context, ifr int) error {
		row := amps[ifr]
		if len(row) != shape.NumChannels {
			return &flagcube.ShapeMismatchError{Field: "channels", Expected: shape.NumChannels, Actual: len(row)}
		}

		selected, err := s.selectChannels(ifr, row)
		if err != nil {
			return err
		}

		flagged := 0
		for ch, sel := range selected {
			if sel {
				changed, err := s.apply(ch, ifr)
				if err != nil {
					return err
				}
				if changed && s.cfg.Unflag {
					cleared.Add(1)
				} else if changed {
					raised.Add(1)
				}
			}
			if ok, err := s.agent.Flagged(ch, ifr); err != nil {
				return err
			} else if ok {
				flagged++
			}
		}

		if s.cfg.RowFraction > 0 && !s.cfg.Unflag &&
			float64(flagged) >= s.cfg.RowFraction*float64(shape.NumChannels) {
			changed, err := s.agent.SetRowFlag(ifr, t)
			if err != nil {
				return err
			}
			if changed {
				rows.Add(1)
			}
		}
		return nil
	})

	return Result{
		Raised:     raised.Load(),
		Cleared:    cleared.Load(),
		RowsRaised: rows.Load(),
	}, err
}

func (s *Selector) apply(ch, ifr int) (bool, error) {
	if s.cfg.Unflag {
		return s.agent.ClearFlag(ch, ifr)
	}
	return s.agent.SetFlag(ch, ifr)
}

// selectChannels returns, per channel, whether the range matches.
func (s *Selector) selectChannels(ifr int, row []float32) ([]bool, error) {
	selected := make([]bool, len(row))
	if !s.cfg.Average {
		for ch, v := range row {
			selected[ch] = s.matches(v)
		}
		return selected, nil
	}

	var sum float64
	n := 0
	for ch, v := range row {
		pre, err := s.agent.PreFlagged(ch, ifr)
		if err != nil {
			return nil, err
		}
		if pre || math.IsNaN(float64(v)) {
			continue
		}
		sum += float64(v)
		n++
	}
	if n == 0 {
		return selected, nil
	}

	if s.matches(float32(sum / float64(n))) {
		for ch := range selected {
			selected[ch] = true
		}
	}
	return selected, nil
}
