package flagcube

// counters accumulate publish statistics. Guarded by Shared.mu.
type counters struct {
	shape Shape

	// corr[ch + nChan*ifr] counts flagged correlations over all publishes.
	corr []int64
	// chans[ifr + nIfr*t] counts fully flagged channels of the last publish of t.
	chans []int32
	// rows[t] counts rejected rows of the last publish of t.
	rows []int64
}

func newCounters(shape Shape) *counters {
	return &counters{
		shape: shape,
		corr:  make([]int64, shape.Cells()),
		chans: make([]int32, shape.NumBaselines*shape.NumTimeSlots),
		rows:  make([]int64, shape.NumTimeSlots),
	}
}

// Report is a snapshot of the publish counters.
type Report struct {
	Shape         Shape  `json:"shape"`
	Mode          string `json:"mode"`
	Agents        int    `json:"agents"`
	Depth         int    `json:"depth"`
	MemoryBytes   int64  `json:"memory_bytes"`
	LastLoaded    *int   `json:"last_loaded,omitempty"`
	LastPublished *int   `json:"last_published,omitempty"`

	// FlaggedCorrelations is indexed ch + NumChannels*ifr.
	FlaggedCorrelations []int64 `json:"flagged_correlations"`
	// FlaggedChannels is indexed ifr + NumBaselines*t.
	FlaggedChannels []int32 `json:"flagged_channels"`
	// FlaggedRows is indexed by time.
	FlaggedRows []int64 `json:"flagged_rows"`
}

// CorrelationsFlagged returns how many correlations of cell (ch, ifr) were
// published as flagged, summed over every publish.
func (r *Report) CorrelationsFlagged(ch, ifr int) int64 {
	return r.FlaggedCorrelations[ch+r.Shape.NumChannels*ifr]
}

// ChannelsFlagged returns how many channels of row (ifr, t) had every
// correlation flagged.
func (r *Report) ChannelsFlagged(ifr, t int) int32 {
	return r.FlaggedChannels[ifr+r.Shape.NumBaselines*t]
}

// RowsFlagged returns the number of rejected rows published for time t.
func (r *Report) RowsFlagged(t int) int64 {
	return r.FlaggedRows[t]
}

// TotalRowsFlagged returns the number of rejected rows over all time slots.
func (r *Report) TotalRowsFlagged() int64 {
	var n int64
	for _, v := range r.FlaggedRows {
		n += v
	}
	return n
}

// Report returns a snapshot of the publish counters.
func (s *Shared) Report() (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.current()
	if err != nil {
		return nil, err
	}

	r := &Report{
		Shape:               s.shape,
		Mode:                st.plan.mode.String(),
		Agents:              st.numAgents,
		Depth:               st.plan.depth,
		MemoryBytes:         st.plan.bytes,
		FlaggedCorrelations: append([]int64(nil), st.counts.corr...),
		FlaggedChannels:     append([]int32(nil), st.counts.chans...),
		FlaggedRows:         append([]int64(nil), st.counts.rows...),
	}
	if t, ok := derefMarker(s.lastLoaded); ok {
		r.LastLoaded = &t
	}
	if t, ok := derefMarker(s.lastPublished); ok {
		r.LastPublished = &t
	}
	return r, nil
}
