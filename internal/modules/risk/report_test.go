package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentTable(t *testing.T) {
	m := NewRiskFactorMatrix()
	m.AddInstrument("PAIRS-1", "PEP", -0.5, 0, -0.01, 0.1, 0, 1, 100)
	m.AddInstrument("PAIRS-1", "KO", 0.5, 0, -0.01, 0.1, 0, 1, 100)
	m.AddInstrument("AAPL", "AAPL", 1, 0, 0, 0, 0, 200, 1)

	rows := InstrumentTable(m)
	require.Len(t, rows, 3)

	// sorted by instrument then underlying
	assert.Equal(t, "AAPL", rows[0].InstrumentID)
	assert.Equal(t, "KO", rows[1].Underlying)
	assert.Equal(t, "PEP", rows[2].Underlying)
	assert.InDelta(t, 200.0, rows[0].Delta, 1e-9)
	assert.InDelta(t, 50.0, rows[1].Delta, 1e-9)
}

func TestFactorTable(t *testing.T) {
	m := NewRiskFactorMatrix()
	m.AddInstrument("MSFT-C400", "MSFT", 0.6548, 0.0146, -0.4444, 0.2534, 0.11, 100, 100)
	m.AddInstrument("AAPL", "AAPL", 1, 0, 0, 0, 0, 50, 1)

	rows := FactorTable(m)
	// four Greeks per underlying plus the single portfolio theta row
	require.Len(t, rows, 9)

	assert.Equal(t, "AAPL", rows[0].Underlying)
	assert.Equal(t, "delta", rows[0].Greek)
	assert.InDelta(t, 50.0, rows[0].Value, 1e-9)

	assert.Equal(t, "MSFT", rows[4].Underlying)
	assert.InDelta(t, 6548.0, rows[4].Value, 1e-9)

	last := rows[len(rows)-1]
	assert.Equal(t, "PORTFOLIO", last.Underlying)
	assert.Equal(t, "theta", last.Greek)
	assert.InDelta(t, -4444.0, last.Value, 1e-9)
}
