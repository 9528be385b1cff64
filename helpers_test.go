package flagcube

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// frameStore is an in-memory Source and Sink that counts calls.
type frameStore struct {
	mu     sync.Mutex
	in     map[int]*Frame
	out    map[int]*Frame
	reads  int
	writes int
	failW  error
}

func newFrameStore() *frameStore {
	return &frameStore{in: map[int]*Frame{}, out: map[int]*Frame{}}
}

func (s *frameStore) ReadFlags(_ context.Context, t int) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	f, ok := s.in[t]
	if !ok {
		return nil, fmt.Errorf("no frame for time %d", t)
	}
	return f, nil
}

func (s *frameStore) WriteFlags(_ context.Context, f *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failW != nil {
		return s.failW
	}
	s.writes++
	s.out[f.Time] = f
	return nil
}

// presentFrame returns a frame for time t with every row present and clean.
func presentFrame(t int, shape Shape) *Frame {
	f := NewFrame(t, shape)
	for i := range f.Present {
		f.Present[i] = true
	}
	return f
}

var modes = map[string]WideMode{
	"compact": WideAuto,
	"wide":    WideForce,
}

// newRun declares one agent per mask under policy and initialises them all.
func newRun(t *testing.T, shape Shape, masks []CorrMask, policy Policy, opts ...Option) (*Shared, []*Agent) {
	t.Helper()

	s, err := NewShared(shape, opts...)
	require.NoError(t, err)

	agents := make([]*Agent, len(masks))
	for i, m := range masks {
		a, err := s.NewAgent(fmt.Sprintf("agent-%d", i), m, policy)
		require.NoError(t, err)
		agents[i] = a
	}
	for _, a := range agents {
		require.NoError(t, a.Init())
	}
	t.Cleanup(func() {
		for _, a := range agents {
			_ = a.Close()
		}
	})
	return s, agents
}
