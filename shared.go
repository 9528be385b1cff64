package flagcube

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/flagcube/internal/cellstore"
	"github.com/hupe1980/flagcube/internal/corrmask"
	"github.com/hupe1980/flagcube/internal/flagword"
	"github.com/hupe1980/flagcube/internal/rowstore"
	"github.com/hupe1980/flagcube/resource"
)

// Shared owns the flag storage of one flagging run.
//
// Agents are declared with NewAgent; the first Init allocates storage sized
// for every declared agent and the last Close frees it. Storage contents are
// mutated through the agents.
//
// Per-cell and per-row agent operations on distinct baselines may run
// concurrently. Every other operation is a barrier and must not overlap them.
type Shared struct {
	shape Shape
	opts  options

	mu         sync.Mutex
	agentCount int
	live       int
	masks      []uint64

	// Markers of the last synced time index; nil means none yet.
	lastLoaded    *int
	lastPublished *int

	state atomic.Pointer[storage]
}

// storage is everything allocated by the first Init.
type storage struct {
	plan   storagePlan
	table  *corrmask.Table
	cells  cellstore.Store
	rows   rowstore.Store
	counts *counters
	// Agent slots allocated with this storage; ops from other generations fail.
	numAgents int
}

// NewShared returns an empty flag store for the given shape.
func NewShared(shape Shape, optFns ...Option) (*Shared, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Shared{
		shape: shape,
		opts:  applyOptions(optFns),
	}, nil
}

// Shape returns the dataset extent.
func (s *Shared) Shape() Shape { return s.shape }

// NewAgent declares an agent flagging the correlations in mask.
//
// All agents must be declared before the first Init; declaring afterwards
// fails with ErrAlreadyAllocated. The agent receives the next free slot.
func (s *Shared) NewAgent(name string, mask CorrMask, policy Policy) (*Agent, error) {
	mask &= FullCorrMask(s.shape.NumCorrelations)
	if mask == 0 {
		return nil, fmt.Errorf("%w: agent %q selects no correlation", ErrInvalidMask, name)
	}
	if policy > PolicyIgnore {
		return nil, fmt.Errorf("invalid policy %v", policy)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Load() != nil {
		return nil, ErrAlreadyAllocated
	}

	id := s.agentCount
	s.agentCount++
	s.live++
	s.masks = append(s.masks, uint64(mask))

	a := &Agent{
		shared: s,
		id:     id,
		name:   name,
		mask:   mask,
		policy: policy,
		logger: s.opts.logger.WithAgent(id, name),
	}
	return a, nil
}

// allocate builds storage for every declared agent. Caller holds mu.
func (s *Shared) allocate() (*storage, error) {
	start := time.Now()
	numAgents := len(s.masks)

	st, err := s.buildStorage(numAgents)
	s.opts.metricsCollector.RecordAllocate(planBytes(st), time.Since(start), err)
	if err != nil {
		s.opts.logger.LogAllocate(0, numAgents, 0, 0, err)
		return nil, err
	}
	s.opts.logger.LogAllocate(st.plan.mode, numAgents, st.plan.depth, st.plan.bytes, nil)

	s.state.Store(st)
	return st, nil
}

func (s *Shared) buildStorage(numAgents int) (*storage, error) {
	rc := s.opts.rc
	plan, err := planStorage(s.shape, numAgents, &s.opts, rc.MemoryAvailable())
	if err != nil {
		return nil, err
	}
	if err := rc.AcquireMemory(plan.bytes); err != nil {
		return nil, fmt.Errorf("reserve %d bytes of flag storage: %w", plan.bytes, err)
	}

	st, err := s.newStorage(plan, numAgents)
	if err != nil {
		rc.ReleaseMemory(plan.bytes)
		return nil, translateError(err)
	}
	return st, nil
}

func (s *Shared) newStorage(plan storagePlan, numAgents int) (*storage, error) {
	cellCfg := cellstore.Config{
		NumCorrelations: s.shape.NumCorrelations,
		NumChannels:     s.shape.NumChannels,
		NumBaselines:    s.shape.NumBaselines,
		NumTimeSlots:    s.shape.NumTimeSlots,
		Depth:           plan.depth,
	}
	rowCfg := rowstore.Config{
		NumBaselines: s.shape.NumBaselines,
		NumTimeSlots: s.shape.NumTimeSlots,
		NumAgents:    numAgents,
	}
	table := corrmask.New(s.shape.NumCorrelations, s.masks)

	st := &storage{
		plan:      plan,
		table:     table,
		counts:    newCounters(s.shape),
		numAgents: numAgents,
	}

	switch plan.mode {
	case ModeCompact:
		layout, err := flagword.NewLayout(s.shape.NumCorrelations, numAgents)
		if err != nil {
			return nil, err
		}
		table.Compile(layout)
		st.cells = cellstore.NewCompact(cellCfg, layout, table)
		st.rows = rowstore.NewCompact(rowCfg, layout)
	default:
		cells, err := cellstore.NewWide(cellCfg, table)
		if err != nil {
			return nil, err
		}
		rows, err := rowstore.NewWide(rowCfg)
		if err != nil {
			return nil, err
		}
		st.cells, st.rows = cells, rows
	}
	return st, nil
}

func planBytes(st *storage) int64 {
	if st == nil {
		return 0
	}
	return st.plan.bytes
}

// release drops one live agent and frees storage with the last one.
// Caller holds mu.
func (s *Shared) release() {
	s.live--
	if s.live > 0 {
		return
	}

	if st := s.state.Swap(nil); st != nil {
		s.opts.rc.ReleaseMemory(st.plan.bytes)
		s.opts.metricsCollector.RecordFree(st.plan.bytes)
		s.opts.logger.LogFree(st.plan.bytes)
	}
	s.live = 0
	s.agentCount = 0
	s.masks = nil
	s.lastLoaded = nil
	s.lastPublished = nil
}

func (s *Shared) current() (*storage, error) {
	st := s.state.Load()
	if st == nil {
		return nil, ErrNotInitialized
	}
	return st, nil
}

// Mode returns the storage strategy, or ErrNotInitialized before allocation.
func (s *Shared) Mode() (Mode, error) {
	st, err := s.current()
	if err != nil {
		return 0, err
	}
	return st.plan.mode, nil
}

// Depth returns the number of time slots held by compact storage (1 for
// wide storage), or 0 before allocation.
func (s *Shared) Depth() int {
	if st := s.state.Load(); st != nil {
		return st.plan.depth
	}
	return 0
}

// MemoryUsage returns the bytes reserved for storage, or 0 before allocation.
func (s *Shared) MemoryUsage() int64 {
	return planBytes(s.state.Load())
}

// Allocated reports whether storage is allocated.
func (s *Shared) Allocated() bool {
	return s.state.Load() != nil
}

// Live returns the number of agents that have not been closed.
func (s *Shared) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// AgentCount returns the number of agent slots handed out since the last free.
func (s *Shared) AgentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentCount
}

// Time returns the current time cursor.
func (s *Shared) Time() (int, error) {
	st, err := s.current()
	if err != nil {
		return 0, err
	}
	return st.cells.Time(), nil
}

// Advance moves the time cursor to t. It is a no-op if already there.
func (s *Shared) Advance(t int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.current()
	if err != nil {
		return err
	}
	return translateError(st.cells.Advance(t))
}

// CellSatisfies reports whether cell (ch, ifr) at the current time is flagged
// for any correlation in mask: pre-flagged, flagged by an agent whose mask
// intersects it, or covered by a row flag.
func (s *Shared) CellSatisfies(ch, ifr int, mask CorrMask) (bool, error) {
	st, err := s.current()
	if err != nil {
		return false, err
	}
	if err := s.checkCell(ch, ifr); err != nil {
		return false, err
	}
	return st.satisfies(ch, ifr, uint64(mask)), nil
}

func (st *storage) satisfies(ch, ifr int, mask uint64) bool {
	return st.rows.Flagged(ifr, st.cells.Time()) || st.cells.Satisfies(ch, ifr, mask)
}

// Rewind forgets the load and publish markers so that the next chunk's time
// indices are synced again. Flag bits are kept.
func (s *Shared) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLoaded = nil
	s.lastPublished = nil
}

// LastLoaded returns the last time index loaded, if any.
func (s *Shared) LastLoaded() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return derefMarker(s.lastLoaded)
}

// LastPublished returns the last time index published, if any.
func (s *Shared) LastPublished() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return derefMarker(s.lastPublished)
}

func derefMarker(m *int) (int, bool) {
	if m == nil {
		return 0, false
	}
	return *m, true
}

// ResourceController returns the controller governing memory and IO, or nil.
func (s *Shared) ResourceController() *resource.Controller {
	return s.opts.rc
}

func (s *Shared) checkCell(ch, ifr int) error {
	if ch < 0 || ch >= s.shape.NumChannels || ifr < 0 || ifr >= s.shape.NumBaselines {
		return fmt.Errorf("%w: channel %d, baseline %d", ErrInvalidPosition, ch, ifr)
	}
	return nil
}

func (s *Shared) checkRow(ifr, t int) error {
	if ifr < 0 || ifr >= s.shape.NumBaselines || t < 0 || t >= s.shape.NumTimeSlots {
		return fmt.Errorf("%w: baseline %d, time %d", ErrInvalidPosition, ifr, t)
	}
	return nil
}

func (s *Shared) checkTime(t int) error {
	if t < 0 || t >= s.shape.NumTimeSlots {
		return fmt.Errorf("%w: time %d", ErrInvalidPosition, t)
	}
	return nil
}
