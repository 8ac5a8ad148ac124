package risk

// MarketDataProvider supplies historical returns and current quotes.
//
// A nil or partially unavailable provider is a supported configuration: every
// consumer in this package substitutes documented fallback estimates when no
// data comes back, and tags its result accordingly. Retry and timeout
// behaviour belongs to the provider implementation, not to this package.
type MarketDataProvider interface {
	// DailyReturns returns simple daily returns for a symbol, oldest first.
	// An empty slice with nil error means no usable history.
	DailyReturns(symbol string, lookbackDays int) ([]float64, error)

	// LatestPrice returns the most recent price for a symbol.
	// A zero price with nil error means no quote is available.
	LatestPrice(symbol string) (float64, error)
}
