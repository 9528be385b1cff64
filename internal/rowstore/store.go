// Package rowstore holds per-(baseline, time) row flags.
//
// A row word carries two reserved bits written only by the sync layer
// (flagword.RowAbsent, flagword.RowFlagged) plus one bit per agent. Agents
// reach the store through Set and Clear, which only ever address their own
// bit, so they cannot touch the reserved bits.
//
// Rows start absent: nothing has been loaded for them yet.
package rowstore

import "github.com/hupe1980/flagcube/internal/flagword"

// Config is the shape of a row store.
type Config struct {
	NumBaselines int
	NumTimeSlots int
	NumAgents    int
}

// Store is the shared row grid.
type Store interface {
	// Mode returns the storage strategy.
	Mode() flagword.Mode

	// Set raises agent's row flag and reports whether anything changed.
	Set(agent, ifr, t int) bool

	// Clear lowers agent's row flag and reports whether anything changed.
	Clear(agent, ifr, t int) bool

	// Flagged reports whether the row is pre-flagged or flagged by any agent.
	Flagged(ifr, t int) bool

	// PreFlagged reports whether the row carried a pre-existing row flag.
	PreFlagged(ifr, t int) bool

	// Absent reports whether the row was missing from the last load.
	Absent(ifr, t int) bool

	// Load records the outcome of loading a row. Agent state is kept.
	Load(ifr, t int, present, preFlagged bool)

	// Bytes returns the memory held by the store.
	Bytes() int64
}
