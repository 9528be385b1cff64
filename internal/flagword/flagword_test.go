package flagword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectMode(t *testing.T) {
	tests := []struct {
		name      string
		agents    int
		corr      int
		forceWide bool
		want      Mode
	}{
		{"small", 3, 4, false, ModeCompact},
		{"exact fit", 27, 4, false, ModeCompact},
		{"one over", 28, 4, false, ModeWide},
		{"forced", 1, 1, true, ModeWide},
		{"many correlations", 1, 31, false, ModeWide},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectMode(tt.agents, tt.corr, Width, tt.forceWide))
		})
	}
}

func TestLayout_Bits(t *testing.T) {
	l, err := NewLayout(4, 3)
	require.NoError(t, err)

	assert.Equal(t, uint(4), l.Base())
	assert.Equal(t, Word(0b1111), l.CorrBits())
	assert.Equal(t, Word(1<<4), l.AgentBit(0))
	assert.Equal(t, Word(1<<6), l.AgentBit(2))
	assert.Equal(t, Word(0b111<<4), l.AgentBits())
	assert.Equal(t, 2, l.AgentOf(l.AgentBit(2)))
}

func TestLayout_BaseKeepsRowBitsFree(t *testing.T) {
	l, err := NewLayout(1, 2)
	require.NoError(t, err)

	assert.Equal(t, uint(ReservedRowBits), l.Base())
	assert.Zero(t, l.AgentBits()&RowReserved)
}

func TestLayout_Pre(t *testing.T) {
	l, err := NewLayout(2, 2)
	require.NoError(t, err)

	w := l.CorrBits() | l.AgentBit(1)
	assert.Equal(t, Word(0b11), l.Pre(w))
	assert.Equal(t, l.AgentBit(1), l.Agents(w))

	w = l.WithPre(w, 0b01)
	assert.Equal(t, Word(0b01), l.Pre(w))
	assert.Equal(t, l.AgentBit(1), l.Agents(w), "agent bits must survive a pre-flag rewrite")
}

func TestNewLayout_CapacityExceeded(t *testing.T) {
	_, err := NewLayout(4, 29)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = NewLayout(0, 1)
	assert.Error(t, err)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "compact", ModeCompact.String())
	assert.Equal(t, "wide", ModeWide.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())
}
