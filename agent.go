package flagcube

import (
	"context"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Agent is one flagging pass. It owns exactly one slot of the shared flag
// storage and can only raise or lower flags through that slot.
type Agent struct {
	shared *Shared
	id     int
	name   string
	mask   CorrMask
	policy Policy
	logger *Logger

	initialized bool // guarded by shared.mu
	closed      atomic.Bool

	stats agentStats
}

// agentStats is updated from every goroutine flagging for the agent.
type agentStats struct {
	_                   cpu.CacheLinePad
	raisedThisPass      atomic.Int64
	clearedThisPass     atomic.Int64
	rowsRaisedThisPass  atomic.Int64
	rowsClearedThisPass atomic.Int64
	totalRaised         atomic.Int64
	totalRowsRaised     atomic.Int64
	_                   cpu.CacheLinePad
}

// AgentStats is a snapshot of an agent's counters.
type AgentStats struct {
	// Per pass, cleared by Reset.
	RaisedThisPass      int64
	ClearedThisPass     int64
	RowsRaisedThisPass  int64
	RowsClearedThisPass int64

	// Cumulative since Init.
	TotalRaised     int64
	TotalRowsRaised int64
}

// ID returns the agent's slot.
func (a *Agent) ID() int { return a.id }

// Name returns the name given at declaration.
func (a *Agent) Name() string { return a.name }

// Mask returns the correlations the agent flags.
func (a *Agent) Mask() CorrMask { return a.mask }

// Policy returns the pre-flag policy used by Load.
func (a *Agent) Policy() Policy { return a.policy }

// Shared returns the store the agent belongs to.
func (a *Agent) Shared() *Shared { return a.shared }

// Init allocates shared storage if this is the first Init of the run.
// Later calls are no-ops.
func (a *Agent) Init() error {
	s := a.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.closed.Load() {
		return ErrClosed
	}
	if a.initialized {
		return nil
	}
	if s.state.Load() == nil {
		if _, err := s.allocate(); err != nil {
			return err
		}
	}
	a.initialized = true
	a.stats.totalRaised.Store(0)
	a.stats.totalRowsRaised.Store(0)
	return nil
}

// Close releases the agent's hold on shared storage. The last Close frees it
// and restarts slot numbering. Close is idempotent.
func (a *Agent) Close() error {
	s := a.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.closed.Swap(true) {
		return nil
	}
	s.release()
	return nil
}

func (a *Agent) current() (*storage, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	return a.shared.current()
}

// SetFlag raises the agent's flag on cell (ch, ifr) at the current time.
// It reports whether the merged flag state changed.
func (a *Agent) SetFlag(ch, ifr int) (bool, error) {
	st, err := a.current()
	if err != nil {
		return false, err
	}
	if err := a.shared.checkCell(ch, ifr); err != nil {
		return false, err
	}
	changed := st.cells.Set(a.id, ch, ifr)
	if changed {
		a.stats.raisedThisPass.Add(1)
		a.stats.totalRaised.Add(1)
	}
	return changed, nil
}

// ClearFlag lowers the agent's flag on cell (ch, ifr) at the current time.
// It reports whether the merged flag state changed.
func (a *Agent) ClearFlag(ch, ifr int) (bool, error) {
	st, err := a.current()
	if err != nil {
		return false, err
	}
	if err := a.shared.checkCell(ch, ifr); err != nil {
		return false, err
	}
	changed := st.cells.Clear(a.id, ch, ifr)
	if changed {
		a.stats.clearedThisPass.Add(1)
	}
	return changed, nil
}

// SetRowFlag rejects the whole row (ifr, t) on behalf of the agent.
func (a *Agent) SetRowFlag(ifr, t int) (bool, error) {
	st, err := a.current()
	if err != nil {
		return false, err
	}
	if err := a.shared.checkRow(ifr, t); err != nil {
		return false, err
	}
	changed := st.rows.Set(a.id, ifr, t)
	if changed {
		a.stats.rowsRaisedThisPass.Add(1)
		a.stats.totalRowsRaised.Add(1)
	}
	return changed, nil
}

// ClearRowFlag withdraws the agent's rejection of row (ifr, t).
func (a *Agent) ClearRowFlag(ifr, t int) (bool, error) {
	st, err := a.current()
	if err != nil {
		return false, err
	}
	if err := a.shared.checkRow(ifr, t); err != nil {
		return false, err
	}
	changed := st.rows.Clear(a.id, ifr, t)
	if changed {
		a.stats.rowsClearedThisPass.Add(1)
	}
	return changed, nil
}

// CellSatisfies reports whether cell (ch, ifr) at the current time is flagged
// for any correlation in mask.
func (a *Agent) CellSatisfies(ch, ifr int, mask CorrMask) (bool, error) {
	if a.closed.Load() {
		return false, ErrClosed
	}
	return a.shared.CellSatisfies(ch, ifr, mask)
}

// Flagged reports whether cell (ch, ifr) is flagged for the agent's own
// correlations.
func (a *Agent) Flagged(ch, ifr int) (bool, error) {
	return a.CellSatisfies(ch, ifr, a.mask)
}

// PreFlagged reports whether cell (ch, ifr) at the current time carried a
// pre-existing flag on any of the agent's correlations, or its row did.
func (a *Agent) PreFlagged(ch, ifr int) (bool, error) {
	st, err := a.current()
	if err != nil {
		return false, err
	}
	if err := a.shared.checkCell(ch, ifr); err != nil {
		return false, err
	}
	return st.rows.PreFlagged(ifr, st.cells.Time()) || st.cells.PreFlagged(ch, ifr, uint64(a.mask)), nil
}

// RowFlagged reports whether row (ifr, t) is rejected by a pre-existing row
// flag or by any agent.
func (a *Agent) RowFlagged(ifr, t int) (bool, error) {
	st, err := a.current()
	if err != nil {
		return false, err
	}
	if err := a.shared.checkRow(ifr, t); err != nil {
		return false, err
	}
	return st.rows.Flagged(ifr, t), nil
}

// Advance moves the shared time cursor to t.
func (a *Agent) Advance(t int) error {
	if a.closed.Load() {
		return ErrClosed
	}
	return a.shared.Advance(t)
}

// Load reads pre-existing flags for time t under the agent's policy and
// moves the cursor to t.
//
// Time indices must be loaded in non-decreasing order. Loading the last
// loaded index again is a no-op, even when the source changed; an earlier
// index fails with ErrInvalidPosition until Rewind.
func (a *Agent) Load(ctx context.Context, t int) error {
	if a.closed.Load() {
		return ErrClosed
	}
	return a.shared.load(ctx, t, a.policy, a.logger)
}

// Publish writes the merged flags of time t to the sink without moving the
// cursor.
//
// Time indices must be published in non-decreasing order. Publishing the
// last published index again is a no-op; an earlier index fails with
// ErrInvalidPosition until Rewind. So does a time index whose cell state is
// no longer held: in wide mode only the cursor is held, a compact ring holds
// the last Depth indices. Absent rows are written with Present false, every
// cell flagged and the row flag clear, whatever the policy.
func (a *Agent) Publish(ctx context.Context, t int) error {
	if a.closed.Load() {
		return ErrClosed
	}
	return a.shared.publish(ctx, t, a.logger)
}

// Reset clears the per-pass counters. Flags are kept.
func (a *Agent) Reset() {
	a.stats.raisedThisPass.Store(0)
	a.stats.clearedThisPass.Store(0)
	a.stats.rowsRaisedThisPass.Store(0)
	a.stats.rowsClearedThisPass.Store(0)
}

// Stats returns a snapshot of the agent's counters.
func (a *Agent) Stats() AgentStats {
	return AgentStats{
		RaisedThisPass:      a.stats.raisedThisPass.Load(),
		ClearedThisPass:     a.stats.clearedThisPass.Load(),
		RowsRaisedThisPass:  a.stats.rowsRaisedThisPass.Load(),
		RowsClearedThisPass: a.stats.rowsClearedThisPass.Load(),
		TotalRaised:         a.stats.totalRaised.Load(),
		TotalRowsRaised:     a.stats.totalRowsRaised.Load(),
	}
}
