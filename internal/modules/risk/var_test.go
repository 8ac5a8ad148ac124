package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskengine/internal/modules/portfolio"
	"github.com/aristath/riskengine/pkg/formulas"
)

func TestParametricVaREmptyPortfolio(t *testing.T) {
	calc := newTestVaRCalculator(nil)

	result, err := calc.CalculateParametricVaR(nil, 0, 0.95, 1)
	require.NoError(t, err)
	assert.Zero(t, result.Amount)
	assert.Zero(t, result.Percent)
	assert.Zero(t, result.ExpectedShortfall)
	assert.Empty(t, result.Contributions)
	assert.Equal(t, MethodParametric, result.Method)
	assert.Equal(t, DataSourceNone, result.DataSource)
}

func TestParametricVaRSingleExposureFallback(t *testing.T) {
	calc := newTestVaRCalculator(nil)
	positions := []portfolio.Position{equityPosition("AAPL", 100, 190)}

	result, err := calc.CalculateParametricVaR(positions, 19000, 0.95, 1)
	require.NoError(t, err)

	// with no provider the daily vol is the annual fallback de-annualized
	dailyVol := testParams().FallbackVolatility / math.Sqrt(formulas.TradingDaysPerYear)
	expected := formulas.ZScore(0.95) * 19000 * dailyVol
	assert.InDelta(t, expected, result.Amount, 1e-6)
	assert.Equal(t, DataSourceFallback, result.DataSource)
	assert.InDelta(t, result.Amount/19000*100, result.Percent, 1e-9)
	assert.Greater(t, result.ExpectedShortfall, result.Amount)

	require.Len(t, result.Contributions, 1)
	assert.InDelta(t, result.Amount, result.Contributions[0].MarginalVaR, 1e-9)
	assert.InDelta(t, result.Amount, result.Contributions[0].StandaloneVaR, 1e-9)
}

func TestParametricVaRConfidenceMonotonic(t *testing.T) {
	calc := newTestVaRCalculator(nil)
	positions := []portfolio.Position{
		equityPosition("AAPL", 100, 190),
		equityPosition("MSFT", 50, 400),
	}

	var prev float64
	for _, conf := range []float64{0.90, 0.95, 0.99} {
		result, err := calc.CalculateParametricVaR(positions, 39000, conf, 1)
		require.NoError(t, err)
		assert.Greater(t, result.Amount, prev)
		prev = result.Amount
	}
}

func TestParametricVaRHorizonScaling(t *testing.T) {
	calc := newTestVaRCalculator(nil)
	positions := []portfolio.Position{equityPosition("SPY", 100, 500)}

	oneDay, err := calc.CalculateParametricVaR(positions, 50000, 0.95, 1)
	require.NoError(t, err)
	tenDay, err := calc.CalculateParametricVaR(positions, 50000, 0.95, 10)
	require.NoError(t, err)

	assert.InDelta(t, math.Sqrt(10), tenDay.Amount/oneDay.Amount, 1e-9)
}

func TestParametricVaRComponentsSumToTotal(t *testing.T) {
	provider := &stubProvider{returns: map[string][]float64{
		"AAA": baseReturns,
		"BBB": scaled(baseReturns, -0.5),
		"CCC": {0.02, -0.01, 0.005, 0.012, -0.007, 0.003, -0.015},
	}}
	calc := newTestVaRCalculator(provider)
	positions := []portfolio.Position{
		equityPosition("AAA", 100, 50),
		equityPosition("BBB", -40, 80),
		equityPosition("CCC", 200, 25),
	}

	result, err := calc.CalculateParametricVaR(positions, 10000, 0.99, 1)
	require.NoError(t, err)
	require.Len(t, result.Contributions, 3)

	sum := 0.0
	pctSum := 0.0
	for _, contrib := range result.Contributions {
		sum += contrib.MarginalVaR
		pctSum += contrib.PctOfTotal
	}
	assert.InDelta(t, result.Amount, sum, 1e-9)
	assert.InDelta(t, 100.0, pctSum, 1e-9)
	assert.Equal(t, DataSourceHistorical, result.DataSource)
}

func TestHistoricalVaRDeterministicSeries(t *testing.T) {
	// every daily return is -1%: the P&L distribution is a point mass and
	// both VaR and ES equal 1% of the exposure
	rets := make([]float64, 100)
	for i := range rets {
		rets[i] = -0.01
	}
	provider := &stubProvider{returns: map[string][]float64{"AAA": rets}}
	calc := newTestVaRCalculator(provider)
	positions := []portfolio.Position{equityPosition("AAA", 1, 100)}

	result, err := calc.CalculateHistoricalVaR(positions, 100, 0.95, 1)
	require.NoError(t, err)
	assert.Equal(t, MethodHistorical, result.Method)
	assert.Equal(t, DataSourceHistorical, result.DataSource)
	assert.InDelta(t, 1.0, result.Amount, 1e-9)
	assert.InDelta(t, 1.0, result.ExpectedShortfall, 1e-9)

	require.Len(t, result.Contributions, 1)
	assert.InDelta(t, result.Amount, result.Contributions[0].MarginalVaR, 1e-9)
}

func TestHistoricalVaRProfitOnlyFloorsAtZero(t *testing.T) {
	rets := make([]float64, 100)
	for i := range rets {
		rets[i] = 0.01
	}
	provider := &stubProvider{returns: map[string][]float64{"AAA": rets}}
	calc := newTestVaRCalculator(provider)

	result, err := calc.CalculateHistoricalVaR([]portfolio.Position{equityPosition("AAA", 1, 100)}, 100, 0.95, 1)
	require.NoError(t, err)
	assert.Zero(t, result.Amount)
}

func TestHistoricalVaRFallsBackToParametric(t *testing.T) {
	calc := newTestVaRCalculator(&stubProvider{})
	positions := []portfolio.Position{equityPosition("AAA", 100, 50)}

	result, err := calc.CalculateHistoricalVaR(positions, 5000, 0.95, 1)
	require.NoError(t, err)
	assert.Equal(t, MethodParametric, result.Method)
	assert.Equal(t, DataSourceFallback, result.DataSource)
	assert.Greater(t, result.Amount, 0.0)
}

func TestHistoricalVaRMarginalsSumToTotal(t *testing.T) {
	provider := &stubProvider{returns: map[string][]float64{
		"AAA": {0.01, -0.03, 0.02, -0.01, 0.015, -0.025, 0.005, 0.01, -0.02, 0.012},
		"BBB": {-0.02, 0.01, -0.015, 0.02, -0.01, 0.03, -0.005, -0.01, 0.02, -0.008},
	}}
	calc := newTestVaRCalculator(provider)
	positions := []portfolio.Position{
		equityPosition("AAA", 100, 50),
		equityPosition("BBB", 60, 70),
	}

	result, err := calc.CalculateHistoricalVaR(positions, 9200, 0.90, 1)
	require.NoError(t, err)
	require.Len(t, result.Contributions, 2)

	sum := 0.0
	for _, contrib := range result.Contributions {
		sum += contrib.MarginalVaR
	}
	assert.InDelta(t, result.Amount, sum, 1e-9)
}

func TestHistoricalVaRMultiDayWindowAttribution(t *testing.T) {
	// AAA loses on days 1-2, BBB on days 0 and 9. The worst 3-day window is
	// days 0-2, where AAA contributes -20 and BBB -10; attribution must use
	// the whole window, not just its first day.
	provider := &stubProvider{returns: map[string][]float64{
		"AAA": {0, -0.10, -0.10, 0, 0, 0, 0, 0, 0, 0},
		"BBB": {-0.10, 0, 0, 0, 0, 0, 0, 0, 0, -0.10},
	}}
	calc := newTestVaRCalculator(provider)
	positions := []portfolio.Position{
		equityPosition("AAA", 1, 100),
		equityPosition("BBB", 1, 100),
	}

	result, err := calc.CalculateHistoricalVaR(positions, 200, 0.90, 3)
	require.NoError(t, err)

	// window sums: [-30, -20, -10, 0, 0, 0, 0, -10]; 10th percentile = -23
	assert.InDelta(t, 23.0, result.Amount, 1e-9)
	assert.InDelta(t, 30.0, result.ExpectedShortfall, 1e-9)

	require.Len(t, result.Contributions, 2)
	aaa, bbb := result.Contributions[0], result.Contributions[1]
	require.Equal(t, "AAA", aaa.Symbol)
	require.Equal(t, "BBB", bbb.Symbol)

	// tail window split 20/10 between the symbols
	assert.InDelta(t, 23.0*20.0/30.0, aaa.MarginalVaR, 1e-9)
	assert.InDelta(t, 23.0*10.0/30.0, bbb.MarginalVaR, 1e-9)
	assert.InDelta(t, result.Amount, aaa.MarginalVaR+bbb.MarginalVaR, 1e-9)

	// standalone VaR comes from each symbol's own window distribution
	assert.InDelta(t, 20.0, aaa.StandaloneVaR, 1e-9)
	assert.InDelta(t, 10.0, bbb.StandaloneVaR, 1e-9)
}

func TestIncrementalVaRRiskReducingTrade(t *testing.T) {
	calc := newTestVaRCalculator(nil)
	positions := []portfolio.Position{equityPosition("AAA", 100, 50)}

	// an offsetting short reduces the exposure and therefore the VaR
	hedge := &portfolio.ProposedTrade{Legs: []portfolio.TradeLeg{
		{Symbol: "AAA", Kind: portfolio.AssetEquity, Quantity: -40, Price: 50, SpotPrice: 50},
	}}
	result, err := calc.CalculateIncrementalVaR(positions, hedge, 5000, 0.95, 1)
	require.NoError(t, err)
	assert.Less(t, result.Incremental, 0.0)
	assert.Equal(t, MethodIncremental, result.Before.Method)
	assert.Equal(t, MethodIncremental, result.After.Method)
	assert.InDelta(t, result.After.Amount-result.Before.Amount, result.Incremental, 1e-9)

	// doubling up increases it
	addOn := &portfolio.ProposedTrade{Legs: []portfolio.TradeLeg{
		{Symbol: "AAA", Kind: portfolio.AssetEquity, Quantity: 100, Price: 50, SpotPrice: 50},
	}}
	result, err = calc.CalculateIncrementalVaR(positions, addOn, 5000, 0.95, 1)
	require.NoError(t, err)
	assert.Greater(t, result.Incremental, 0.0)
}
