package risk

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskengine/internal/config"
	"github.com/aristath/riskengine/internal/modules/portfolio"
	"github.com/aristath/riskengine/pkg/formulas"
)

// pairKey builds the canonical sorted key for a symbol pair.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// CorrelationMatrix holds pairwise correlations over a symbol set together
// with the daily covariance matrix used by the VaR calculator.
//
// Pairs only contains entries for which real historical overlap existed;
// an absent pair is NOT a zero correlation and callers must treat the two
// differently. The covariance matrix, in contrast, is always fully
// populated: entries without data are synthesized from the fallback
// estimates, and UsedFallback reports when that happened.
type CorrelationMatrix struct {
	Symbols      []string           `json:"symbols" msgpack:"symbols"` // sorted
	Pairs        map[string]float64 `json:"pairs" msgpack:"pairs"`     // key: "A|B", A < B
	Covariance   [][]float64        `json:"covariance" msgpack:"covariance"`
	LookbackDays int                `json:"lookback_days" msgpack:"lookback_days"`
	CalculatedAt time.Time          `json:"calculated_at" msgpack:"calculated_at"`
	UsedFallback bool               `json:"used_fallback" msgpack:"used_fallback"`
}

// GetCorrelation returns the correlation between two symbols. The second
// return value is false when the pair was never measured. Identity pairs
// are always 1.0 for symbols in the set.
func (m *CorrelationMatrix) GetCorrelation(a, b string) (float64, bool) {
	if a == b {
		for _, s := range m.Symbols {
			if s == a {
				return 1.0, true
			}
		}
		return 0, false
	}
	corr, ok := m.Pairs[pairKey(a, b)]
	return corr, ok
}

// CorrelatedPair is one symbol pair whose correlation magnitude exceeded a
// caller threshold, weighted by the combined exposure at stake.
type CorrelatedPair struct {
	SymbolA          string  `json:"symbol_a"`
	SymbolB          string  `json:"symbol_b"`
	Correlation      float64 `json:"correlation"`
	CombinedExposure float64 `json:"combined_exposure"`
}

// CorrelationAnalyzer builds correlation and covariance matrices from
// historical returns, with an explicit freshness-checked cache.
//
// The cache itself carries no locking; the analyzer is the shared instance
// handed to every HTTP and cron goroutine, so it serializes all cache access
// behind its mutex.
type CorrelationAnalyzer struct {
	provider  MarketDataProvider
	extractor *ExposureExtractor
	mu        sync.Mutex
	cache     *MatrixCache
	params    config.RiskParams
	log       zerolog.Logger
}

// NewCorrelationAnalyzer creates a new analyzer. provider may be nil; every
// result then comes from fallback estimates.
func NewCorrelationAnalyzer(
	provider MarketDataProvider,
	extractor *ExposureExtractor,
	cache *MatrixCache,
	params config.RiskParams,
	log zerolog.Logger,
) *CorrelationAnalyzer {
	if cache == nil {
		cache = NewMatrixCache()
	}
	return &CorrelationAnalyzer{
		provider:  provider,
		extractor: extractor,
		cache:     cache,
		params:    params,
		log:       log.With().Str("component", "correlation_analyzer").Logger(),
	}
}

// CachedMatrices returns the number of cached correlation matrices.
func (a *CorrelationAnalyzer) CachedMatrices() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache.Len()
}

// PruneCache drops cache entries older than maxAge and returns how many
// were removed.
func (a *CorrelationAnalyzer) PruneCache(maxAge time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache.Prune(maxAge)
}

// SaveCache writes a snapshot of the matrix cache to path.
func (a *CorrelationAnalyzer) SaveCache(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache.SaveTo(path)
}

// LoadCache restores a snapshot written by SaveCache. A missing file is not
// an error.
func (a *CorrelationAnalyzer) LoadCache(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache.LoadFrom(path)
}

// CalculateCorrelationMatrix builds the correlation/covariance matrix for a
// symbol set over the given lookback window. Results are cached per
// (sorted symbols, lookback) and reused while fresh. Safe for concurrent
// callers; a build holds the lock so identical concurrent requests compute
// the matrix once.
func (a *CorrelationAnalyzer) CalculateCorrelationMatrix(symbols []string, lookbackDays int) (*CorrelationMatrix, error) {
	if lookbackDays <= 0 {
		lookbackDays = a.params.LookbackDays
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if entry := a.cache.Get(symbols, lookbackDays); entry != nil && entry.IsFresh(a.params.CacheMaxAge) {
		a.log.Debug().
			Int("num_symbols", len(symbols)).
			Msg("Using cached correlation matrix")
		return entry.Matrix, nil
	}

	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)

	matrix := a.build(sorted, lookbackDays)
	a.cache.Put(symbols, lookbackDays, matrix)

	a.log.Info().
		Int("num_symbols", len(sorted)).
		Int("lookback_days", lookbackDays).
		Int("measured_pairs", len(matrix.Pairs)).
		Bool("used_fallback", matrix.UsedFallback).
		Msg("Built correlation matrix")

	return matrix, nil
}

func (a *CorrelationAnalyzer) build(sorted []string, lookbackDays int) *CorrelationMatrix {
	n := len(sorted)
	matrix := &CorrelationMatrix{
		Symbols:      sorted,
		Pairs:        make(map[string]float64),
		LookbackDays: lookbackDays,
		CalculatedAt: time.Now(),
	}

	// Fetch return series and daily volatilities per symbol. A missing or
	// too-short series flips the fallback flag and gets the estimated
	// volatility instead.
	returns := make(map[string][]float64, n)
	dailyVol := make([]float64, n)
	fallbackDailyVol := a.params.FallbackVolatility / math.Sqrt(formulas.TradingDaysPerYear)
	for i, symbol := range sorted {
		rets := a.fetchReturns(symbol, lookbackDays)
		if len(rets) >= 2 {
			returns[symbol] = rets
			dailyVol[i] = formulas.StdDev(rets)
		} else {
			matrix.UsedFallback = true
			dailyVol[i] = fallbackDailyVol
		}
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		cov[i][i] = dailyVol[i] * dailyVol[i]
		for j := i + 1; j < n; j++ {
			ri, okI := returns[sorted[i]]
			rj, okJ := returns[sorted[j]]
			if okI && okJ {
				ai, aj := alignRight(ri, rj)
				corr := formulas.Correlation(ai, aj)
				matrix.Pairs[pairKey(sorted[i], sorted[j])] = corr
				c := formulas.Covariance(ai, aj)
				cov[i][j] = c
				cov[j][i] = c
				continue
			}
			// No overlap: the pair stays absent from Pairs, and the
			// covariance entry is synthesized from the estimates.
			c := a.params.FallbackCorrelation * dailyVol[i] * dailyVol[j]
			cov[i][j] = c
			cov[j][i] = c
		}
	}

	matrix.Covariance = cov
	return matrix
}

func (a *CorrelationAnalyzer) fetchReturns(symbol string, lookbackDays int) []float64 {
	if a.provider == nil {
		return nil
	}
	rets, err := a.provider.DailyReturns(symbol, lookbackDays)
	if err != nil {
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch returns")
		return nil
	}
	return rets
}

// alignRight trims two series to their common length, keeping the most
// recent observations.
func alignRight(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return a[len(a)-n:], b[len(b)-n:]
}

// DiversificationScore scores how diversified a position set is, in [0, 1].
//
// Each underlying is weighted by its share of gross exposure; the score is
// one minus the weighted-average absolute pairwise correlation, plus a small
// bonus for holding many underlyings, clamped to 1.0. Fewer than two
// distinct underlyings scores 0.0: a single position cannot diversify.
func (a *CorrelationAnalyzer) DiversificationScore(positions []portfolio.Position) float64 {
	exposures := a.extractor.Extract(positions)
	if len(exposures) < 2 {
		return 0.0
	}

	symbols := make([]string, 0, len(exposures))
	gross := 0.0
	for symbol, exp := range exposures {
		symbols = append(symbols, symbol)
		gross += math.Abs(exp)
	}
	sort.Strings(symbols)
	if gross <= 0 {
		return 0.0
	}

	matrix, err := a.CalculateCorrelationMatrix(symbols, a.params.LookbackDays)
	if err != nil {
		return 0.0
	}

	weightedCorr := 0.0
	weightTotal := 0.0
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			wi := math.Abs(exposures[symbols[i]]) / gross
			wj := math.Abs(exposures[symbols[j]]) / gross
			corr, ok := matrix.GetCorrelation(symbols[i], symbols[j])
			if !ok {
				corr = a.params.FallbackCorrelation
			}
			weightedCorr += wi * wj * math.Abs(corr)
			weightTotal += wi * wj
		}
	}

	avgCorr := 0.0
	if weightTotal > 0 {
		avgCorr = weightedCorr / weightTotal
	}

	score := 1.0 - avgCorr + math.Min(float64(len(symbols))/10.0, 0.2)
	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}

// FindCorrelatedPositions returns the symbol pairs whose correlation
// magnitude is at least threshold, sorted by |correlation| × combined
// exposure descending. Pairs with no measured correlation are skipped.
func (a *CorrelationAnalyzer) FindCorrelatedPositions(positions []portfolio.Position, threshold float64) ([]CorrelatedPair, error) {
	exposures := a.extractor.Extract(positions)
	if len(exposures) < 2 {
		return nil, nil
	}

	symbols := make([]string, 0, len(exposures))
	for symbol := range exposures {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	matrix, err := a.CalculateCorrelationMatrix(symbols, a.params.LookbackDays)
	if err != nil {
		return nil, err
	}

	var pairs []CorrelatedPair
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			corr, ok := matrix.GetCorrelation(symbols[i], symbols[j])
			if !ok || math.Abs(corr) < threshold {
				continue
			}
			pairs = append(pairs, CorrelatedPair{
				SymbolA:          symbols[i],
				SymbolB:          symbols[j],
				Correlation:      corr,
				CombinedExposure: math.Abs(exposures[symbols[i]]) + math.Abs(exposures[symbols[j]]),
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		si := math.Abs(pairs[i].Correlation) * pairs[i].CombinedExposure
		sj := math.Abs(pairs[j].Correlation) * pairs[j].CombinedExposure
		return si > sj
	})

	return pairs, nil
}
