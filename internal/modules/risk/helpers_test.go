package risk

import (
	"github.com/rs/zerolog"

	"github.com/aristath/riskengine/internal/config"
	"github.com/aristath/riskengine/internal/modules/portfolio"
)

// stubProvider is a deterministic in-memory market data provider.
type stubProvider struct {
	returns map[string][]float64
	prices  map[string]float64
}

func (s *stubProvider) DailyReturns(symbol string, lookbackDays int) ([]float64, error) {
	return s.returns[symbol], nil
}

func (s *stubProvider) LatestPrice(symbol string) (float64, error) {
	return s.prices[symbol], nil
}

func testParams() config.RiskParams {
	return config.DefaultRiskParams()
}

func testLog() zerolog.Logger {
	return zerolog.Nop()
}

func newTestExtractor() *ExposureExtractor {
	return NewExposureExtractor(testParams(), testLog())
}

func newTestAnalyzer(provider MarketDataProvider) *CorrelationAnalyzer {
	return NewCorrelationAnalyzer(provider, newTestExtractor(), NewMatrixCache(), testParams(), testLog())
}

func newTestVaRCalculator(provider MarketDataProvider) *VaRCalculator {
	return NewVaRCalculator(newTestExtractor(), newTestAnalyzer(provider), provider, testParams(), testLog())
}

func equityPosition(symbol string, quantity, price float64) portfolio.Position {
	return portfolio.Position{
		Symbol:          symbol,
		Kind:            portfolio.AssetEquity,
		Quantity:        quantity,
		Multiplier:      1,
		UnderlyingPrice: price,
		MarketValue:     quantity * price,
	}
}

func optionPosition(symbol string, quantity, delta, price float64) portfolio.Position {
	return portfolio.Position{
		Symbol:          symbol,
		Instrument:      symbol + "-OPT",
		Kind:            portfolio.AssetOption,
		Quantity:        quantity,
		Multiplier:      100,
		UnderlyingPrice: price,
		MarketValue:     delta * quantity * 100 * price * 0.1,
		Greeks:          portfolio.Greeks{Delta: delta, Gamma: 0.01, Theta: -0.05, Vega: 0.2},
	}
}
