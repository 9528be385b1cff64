// Package flagword implements the bit layout shared by cell and row flag words.
//
// A Word packs pre-existing ("apriori") flags and per-agent flags for one cell:
//
//	 bit:  0 .. numCorr-1  | base .. base+numAgents-1
//	       pre-flag / corr | one bit per agent
//
// where base = max(numCorr, ReservedRowBits). Row words reuse the same agent
// bits; their two low bits are RowAbsent and RowFlagged. Keeping base at least
// ReservedRowBits wide lets a single agent bit address both word kinds.
//
// All bit arithmetic lives in Layout so that stores never compute positions
// themselves.
package flagword
