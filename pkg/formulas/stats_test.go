package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanAndStdDev(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(data), 1e-9)
	// sample standard deviation
	assert.InDelta(t, 2.138, StdDev(data), 1e-3)
	assert.InDelta(t, StdDev(data)*StdDev(data), Variance(data), 1e-9)

	assert.Zero(t, Mean(nil))
	assert.Zero(t, StdDev(nil))
}

func TestCorrelationEdgeCases(t *testing.T) {
	x := []float64{0.01, -0.02, 0.015, 0.005}
	y := []float64{0.02, -0.04, 0.03, 0.01}
	assert.InDelta(t, 1.0, Correlation(x, y), 1e-9)

	neg := []float64{-0.01, 0.02, -0.015, -0.005}
	assert.InDelta(t, -1.0, Correlation(x, neg), 1e-9)

	// mismatched or too-short inputs
	assert.Zero(t, Correlation(x, y[:3]))
	assert.Zero(t, Correlation(x[:1], y[:1]))
	assert.Zero(t, Covariance(x, y[:3]))
}

func TestAnnualizedVolatility(t *testing.T) {
	rets := []float64{0.01, -0.01, 0.02, -0.02, 0.005}
	assert.InDelta(t, StdDev(rets)*math.Sqrt(252), AnnualizedVolatility(rets), 1e-12)
	assert.Zero(t, AnnualizedVolatility(nil))
}

func TestPercentile(t *testing.T) {
	data := []float64{15, 20, 35, 40, 50}

	assert.InDelta(t, 15.0, Percentile(data, 0), 1e-9)
	assert.InDelta(t, 50.0, Percentile(data, 100), 1e-9)
	assert.InDelta(t, 35.0, Percentile(data, 50), 1e-9)
	// rank 0.05×4 = 0.2: interpolate between 15 and 20
	assert.InDelta(t, 16.0, Percentile(data, 5), 1e-9)

	// input must stay untouched
	shuffled := []float64{40, 15, 50, 20, 35}
	Percentile(shuffled, 50)
	assert.Equal(t, []float64{40, 15, 50, 20, 35}, shuffled)

	assert.Zero(t, Percentile(nil, 50))
}

func TestZScoreConstants(t *testing.T) {
	assert.Equal(t, 1.282, ZScore(0.90))
	assert.Equal(t, 1.645, ZScore(0.95))
	assert.Equal(t, 2.326, ZScore(0.99))

	// anything else goes through the inverse CDF
	assert.InDelta(t, 1.96, ZScore(0.975), 1e-3)
	assert.Zero(t, ZScore(0))
	assert.Zero(t, ZScore(1))
	assert.Zero(t, ZScore(-0.5))
}

func TestNormPDFAndCDF(t *testing.T) {
	assert.InDelta(t, 0.3989, NormPDF(0), 1e-4)
	assert.InDelta(t, 0.5, NormCDF(0), 1e-12)
	assert.InDelta(t, 0.975, NormCDF(1.96), 1e-3)
	// symmetry
	assert.InDelta(t, NormPDF(1.5), NormPDF(-1.5), 1e-12)
}

func TestCalculateCVaR(t *testing.T) {
	returns := []float64{-0.10, -0.05, 0.01, 0.02, 0.03, 0.01, 0.02, 0.00, 0.01, 0.02}

	// 95%: ceil(10×0.05) = 1 tail observation, the worst
	assert.InDelta(t, -0.10, CalculateCVaR(returns, 0.95), 1e-9)
	// 80%: worst two
	assert.InDelta(t, -0.075, CalculateCVaR(returns, 0.80), 1e-9)

	assert.Zero(t, CalculateCVaR(nil, 0.95))
	assert.Equal(t, -0.02, CalculateCVaR([]float64{-0.02}, 0.95))
}
