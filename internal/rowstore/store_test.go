package rowstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flagcube/internal/flagword"
)

func newStores(t *testing.T, cfg Config) map[string]Store {
	t.Helper()

	l, err := flagword.NewLayout(4, cfg.NumAgents)
	require.NoError(t, err)
	wide, err := NewWide(cfg)
	require.NoError(t, err)

	return map[string]Store{
		"compact": NewCompact(cfg, l),
		"wide":    wide,
	}
}

var testCfg = Config{NumBaselines: 3, NumTimeSlots: 4, NumAgents: 2}

func TestStore_StartsAbsent(t *testing.T) {
	for name, s := range newStores(t, testCfg) {
		t.Run(name, func(t *testing.T) {
			assert.True(t, s.Absent(2, 3))
			assert.False(t, s.Flagged(2, 3))
			assert.False(t, s.PreFlagged(2, 3))
			assert.Positive(t, s.Bytes())
		})
	}
}

func TestStore_Load(t *testing.T) {
	for name, s := range newStores(t, testCfg) {
		t.Run(name, func(t *testing.T) {
			s.Load(1, 0, true, false)
			assert.False(t, s.Absent(1, 0))
			assert.False(t, s.Flagged(1, 0))

			s.Load(1, 1, true, true)
			assert.True(t, s.PreFlagged(1, 1))
			assert.True(t, s.Flagged(1, 1))

			s.Load(1, 2, false, false)
			assert.True(t, s.Absent(1, 2))
		})
	}
}

func TestStore_AgentBits(t *testing.T) {
	for name, s := range newStores(t, testCfg) {
		t.Run(name, func(t *testing.T) {
			s.Load(0, 0, true, false)

			assert.True(t, s.Set(0, 0, 0))
			assert.False(t, s.Set(0, 0, 0))
			assert.True(t, s.Flagged(0, 0))
			assert.False(t, s.Absent(0, 0), "agents never touch reserved bits")

			assert.True(t, s.Clear(0, 0, 0))
			assert.False(t, s.Clear(0, 0, 0))
			assert.False(t, s.Flagged(0, 0))
		})
	}
}

func TestStore_LoadKeepsAgentFlags(t *testing.T) {
	for name, s := range newStores(t, testCfg) {
		t.Run(name, func(t *testing.T) {
			s.Set(1, 2, 3)
			s.Load(2, 3, true, false)
			assert.True(t, s.Flagged(2, 3))
			assert.False(t, s.Absent(2, 3))
		})
	}
}

func TestStore_ClearKeepsPreFlag(t *testing.T) {
	for name, s := range newStores(t, testCfg) {
		t.Run(name, func(t *testing.T) {
			s.Load(0, 1, true, true)
			s.Set(0, 0, 1)
			s.Clear(0, 0, 1)
			assert.True(t, s.Flagged(0, 1))
		})
	}
}

func TestWide_SharedRowTransitions(t *testing.T) {
	s, err := NewWide(testCfg)
	require.NoError(t, err)
	s.Load(0, 0, true, false)

	assert.True(t, s.Set(0, 0, 0))
	assert.False(t, s.Set(1, 0, 0), "row already flagged")
	assert.False(t, s.Clear(0, 0, 0), "agent 1 still holds the row")
	assert.True(t, s.Flagged(0, 0))
	assert.True(t, s.Clear(1, 0, 0))
	assert.False(t, s.Flagged(0, 0))
}

func TestNewWide_KeySpaceOverflow(t *testing.T) {
	_, err := NewWide(Config{NumBaselines: 1, NumTimeSlots: 1 << 30, NumAgents: 64})
	assert.Error(t, err)
}

func TestWideBytes(t *testing.T) {
	assert.Equal(t, int64(2*3*1*8), WideBytes(2, 64))
	assert.Equal(t, int64(1*3*2*8), WideBytes(1, 65))
}
