package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskengine/internal/modules/portfolio"
)

func TestMatrixScalesAtAddTime(t *testing.T) {
	m := NewRiskFactorMatrix()
	m.AddInstrument("MSFT-C400", "MSFT", 0.6548, 0.0146, -0.4444, 0.2534, 0.11, 100, 100)

	factors := m.AggregatedRiskFactors()
	require.Contains(t, factors, "MSFT")

	f := factors["MSFT"]
	assert.InDelta(t, 6548.0, f.TotalDelta, 1e-9)
	assert.InDelta(t, 146.0, f.TotalGamma, 1e-9)
	assert.InDelta(t, 2534.0, f.TotalVega, 1e-9)
	assert.Equal(t, 1, f.InstrumentCount)

	assert.InDelta(t, -4444.0, m.TotalTheta(), 1e-9)
}

func TestMatrixColumnSumInvariant(t *testing.T) {
	m := NewRiskFactorMatrix()
	m.AddInstrument("AAPL-C190", "AAPL", 0.55, 0.021, -0.08, 0.31, 0.05, 10, 100)
	m.AddInstrument("AAPL-P185", "AAPL", -0.40, 0.019, -0.06, 0.28, -0.04, -5, 100)
	m.AddInstrument("AAPL", "AAPL", 1, 0, 0, 0, 0, 200, 1)

	var sumDelta, sumGamma, sumVega, sumRho float64
	for _, row := range m.Rows() {
		s := row.Sensitivities["AAPL"]
		sumDelta += s.Delta
		sumGamma += s.Gamma
		sumVega += s.Vega
		sumRho += s.Rho
	}

	f := m.AggregatedRiskFactors()["AAPL"]
	require.NotNil(t, f)
	assert.Equal(t, sumDelta, f.TotalDelta)
	assert.Equal(t, sumGamma, f.TotalGamma)
	assert.Equal(t, sumVega, f.TotalVega)
	assert.Equal(t, sumRho, f.TotalRho)
	assert.Equal(t, 3, f.InstrumentCount)
}

func TestMatrixUpsertOverwrites(t *testing.T) {
	m := NewRiskFactorMatrix()
	m.AddInstrument("SPY-C500", "SPY", 0.50, 0.01, -0.05, 0.20, 0.03, 10, 100)
	m.AddInstrument("SPY-C500", "SPY", 0.60, 0.01, -0.05, 0.20, 0.03, 10, 100)

	require.Len(t, m.Rows(), 1)
	f := m.AggregatedRiskFactors()["SPY"]
	assert.InDelta(t, 600.0, f.TotalDelta, 1e-9)
	assert.Equal(t, 1, f.InstrumentCount)
}

func TestMatrixZeroRowStillCounted(t *testing.T) {
	m := NewRiskFactorMatrix()
	m.AddInstrument("HEDGED", "TSLA", 0, 0, 0, 0, 0, 10, 100)

	f := m.AggregatedRiskFactors()["TSLA"]
	require.NotNil(t, f)
	assert.Zero(t, f.TotalDelta)
	assert.Equal(t, 1, f.InstrumentCount)
}

func TestMatrixMultiUnderlyingRow(t *testing.T) {
	m := NewRiskFactorMatrix()
	m.AddInstrument("PAIRS-1", "KO", 0.5, 0, -0.01, 0.1, 0, 1, 100)
	m.AddInstrument("PAIRS-1", "PEP", -0.5, 0, -0.01, 0.1, 0, 1, 100)

	rows := m.Rows()
	require.Len(t, rows, 1)
	assert.InDelta(t, -2.0, rows[0].TotalTheta(), 1e-9)

	factors := m.AggregatedRiskFactors()
	assert.InDelta(t, 50.0, factors["KO"].TotalDelta, 1e-9)
	assert.InDelta(t, -50.0, factors["PEP"].TotalDelta, 1e-9)
}

func TestMatrixAddPosition(t *testing.T) {
	m := NewRiskFactorMatrix()
	m.AddPosition(&portfolio.Position{
		Symbol:   "NVDA",
		Kind:     portfolio.AssetEquity,
		Quantity: 150,
	})
	m.AddPosition(&portfolio.Position{
		Symbol:     "NVDA",
		Instrument: "NVDA-C900",
		Kind:       portfolio.AssetOption,
		Quantity:   -2,
		Multiplier: 100,
		Greeks:     portfolio.Greeks{Delta: 0.45, Gamma: 0.002, Theta: -0.3, Vega: 0.5},
	})
	m.AddPosition(&portfolio.Position{Symbol: "", Quantity: 1})

	f := m.AggregatedRiskFactors()["NVDA"]
	require.NotNil(t, f)
	assert.InDelta(t, 150.0-90.0, f.TotalDelta, 1e-9)
	assert.Equal(t, 2, f.InstrumentCount)
	assert.Len(t, m.Rows(), 2)
}

func TestMatrixPortfolioTotals(t *testing.T) {
	m := NewRiskFactorMatrix()
	m.AddInstrument("A-OPT", "A", 0.5, 0.01, -0.1, 0.2, 0.02, 10, 100)
	m.AddInstrument("B-OPT", "B", -0.3, 0.02, -0.2, 0.4, 0.01, 5, 100)

	totals := m.PortfolioTotals()
	assert.InDelta(t, 500.0-150.0, totals.Delta, 1e-9)
	assert.InDelta(t, 10.0+10.0, totals.Gamma, 1e-9)
	assert.InDelta(t, -100.0-100.0, totals.Theta, 1e-9)
	assert.InDelta(t, 200.0+200.0, totals.Vega, 1e-9)
}

func TestFactorsNeedingHedge(t *testing.T) {
	m := NewRiskFactorMatrix()
	m.AddInstrument("BIG", "ZZZ", 1, 0, 0, 0, 0, 2000, 1)
	m.AddInstrument("SMALL", "AAA", 1, 0, 0, 0, 0, 10, 1)

	thresholds := HedgeThresholds{Delta: 1000, Gamma: 50, Vega: 500}
	flagged := m.FactorsNeedingHedge(thresholds)
	require.Len(t, flagged, 1)
	assert.Equal(t, "ZZZ", flagged[0].Underlying)

	// offsetting rows net out below the threshold
	m.AddInstrument("BIG-HEDGE", "ZZZ", 1, 0, 0, 0, 0, -1990, 1)
	assert.Empty(t, m.FactorsNeedingHedge(thresholds))
}
