package risk

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/riskengine/internal/config"
	"github.com/aristath/riskengine/internal/modules/portfolio"
	"github.com/aristath/riskengine/pkg/formulas"
)

// VaRMethod tags which estimation method produced a result.
type VaRMethod string

const (
	MethodParametric  VaRMethod = "parametric"
	MethodHistorical  VaRMethod = "historical"
	MethodIncremental VaRMethod = "incremental"
)

// DataSource tags whether a result was computed from measured market data or
// from the documented fallback estimates.
type DataSource string

const (
	DataSourceHistorical DataSource = "historical"
	DataSourceFallback   DataSource = "fallback_estimates"
	DataSourceNone       DataSource = "none"
)

// VaRContribution is one underlying's share of the portfolio VaR.
type VaRContribution struct {
	Symbol        string  `json:"symbol"`
	Exposure      float64 `json:"exposure"`       // delta-dollar exposure
	StandaloneVaR float64 `json:"standalone_var"` // VaR of this exposure alone
	MarginalVaR   float64 `json:"marginal_var"`   // component VaR; sums to the total
	PctOfTotal    float64 `json:"pct_of_total"`
}

// VaRResult is the outcome of one VaR calculation.
type VaRResult struct {
	Amount            float64           `json:"amount"`
	Percent           float64           `json:"percent"` // of portfolio value
	Confidence        float64           `json:"confidence"`
	HorizonDays       int               `json:"horizon_days"`
	Method            VaRMethod         `json:"method"`
	Contributions     []VaRContribution `json:"contributions,omitempty"`
	PortfolioValue    float64           `json:"portfolio_value"`
	ExpectedShortfall float64           `json:"expected_shortfall"`
	DataSource        DataSource        `json:"data_source"`
	CalculatedAt      time.Time         `json:"calculated_at"`
}

// IncrementalVaRResult reports how a proposed trade would change VaR.
type IncrementalVaRResult struct {
	Before      VaRResult `json:"before"`
	After       VaRResult `json:"after"`
	Incremental float64   `json:"incremental"` // after − before; negative means risk-reducing
}

// VaRCalculator estimates Value-at-Risk and Expected Shortfall using
// parametric, historical and incremental methods.
type VaRCalculator struct {
	extractor *ExposureExtractor
	analyzer  *CorrelationAnalyzer
	provider  MarketDataProvider
	params    config.RiskParams
	log       zerolog.Logger
}

// NewVaRCalculator creates a new VaR calculator. provider may be nil, in
// which case every result is tagged fallback_estimates.
func NewVaRCalculator(
	extractor *ExposureExtractor,
	analyzer *CorrelationAnalyzer,
	provider MarketDataProvider,
	params config.RiskParams,
	log zerolog.Logger,
) *VaRCalculator {
	return &VaRCalculator{
		extractor: extractor,
		analyzer:  analyzer,
		provider:  provider,
		params:    params,
		log:       log.With().Str("component", "var_calculator").Logger(),
	}
}

func emptyResult(method VaRMethod, confidence float64, horizonDays int, portfolioValue float64) VaRResult {
	return VaRResult{
		Confidence:     confidence,
		HorizonDays:    horizonDays,
		Method:         method,
		PortfolioValue: portfolioValue,
		DataSource:     DataSourceNone,
		CalculatedAt:   time.Now(),
	}
}

// CalculateParametricVaR computes delta-normal VaR.
//
// The exposure vector is extracted from the positions, the daily covariance
// matrix comes from the correlation analyzer (real historical covariances
// where available, synthesized from the fallback estimates otherwise), and
// the loss quantile is read off the normal distribution:
//
//	VaR = z(confidence) × √(wᵀΣw) × √horizon
//
// Component VaR per underlying is (Σw)ᵢ·wᵢ/σ × z × √horizon; the components
// sum exactly to the total. An empty position list returns a zero result
// tagged "none", never an error.
func (c *VaRCalculator) CalculateParametricVaR(
	positions []portfolio.Position,
	portfolioValue float64,
	confidence float64,
	horizonDays int,
) (VaRResult, error) {
	if horizonDays <= 0 {
		horizonDays = 1
	}

	exposures := c.extractor.Extract(positions)
	if len(exposures) == 0 {
		return emptyResult(MethodParametric, confidence, horizonDays, portfolioValue), nil
	}

	symbols := make([]string, 0, len(exposures))
	for symbol := range exposures {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	matrix, err := c.analyzer.CalculateCorrelationMatrix(symbols, c.params.LookbackDays)
	if err != nil {
		return emptyResult(MethodParametric, confidence, horizonDays, portfolioValue), err
	}

	n := len(symbols)
	w := mat.NewVecDense(n, nil)
	for i, symbol := range symbols {
		w.SetVec(i, exposures[symbol])
	}
	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sigma.Set(i, j, matrix.Covariance[i][j])
		}
	}

	// Portfolio daily variance: wᵀΣw.
	var sw mat.VecDense
	sw.MulVec(sigma, w)
	dailyVariance := mat.Dot(w, &sw)
	if dailyVariance < 0 {
		dailyVariance = 0
	}
	portfolioStd := math.Sqrt(dailyVariance)

	z := formulas.ZScore(confidence)
	sqrtHorizon := math.Sqrt(float64(horizonDays))
	amount := z * portfolioStd * sqrtHorizon

	// Expected Shortfall under normality.
	es := 0.0
	if confidence < 1 {
		es = portfolioStd * formulas.NormPDF(z) / (1 - confidence) * sqrtHorizon
	}

	contributions := make([]VaRContribution, 0, n)
	for i, symbol := range symbols {
		contrib := VaRContribution{
			Symbol:        symbol,
			Exposure:      w.AtVec(i),
			StandaloneVaR: math.Abs(w.AtVec(i)) * math.Sqrt(sigma.At(i, i)) * z * sqrtHorizon,
		}
		if portfolioStd > 0 {
			contrib.MarginalVaR = sw.AtVec(i) * w.AtVec(i) / portfolioStd * z * sqrtHorizon
		}
		if amount > 0 {
			contrib.PctOfTotal = contrib.MarginalVaR / amount * 100
		}
		contributions = append(contributions, contrib)
	}

	source := DataSourceHistorical
	if matrix.UsedFallback {
		source = DataSourceFallback
	}

	result := VaRResult{
		Amount:            amount,
		Confidence:        confidence,
		HorizonDays:       horizonDays,
		Method:            MethodParametric,
		Contributions:     contributions,
		PortfolioValue:    portfolioValue,
		ExpectedShortfall: es,
		DataSource:        source,
		CalculatedAt:      time.Now(),
	}
	if portfolioValue > 0 {
		result.Percent = amount / portfolioValue * 100
	}

	return result, nil
}

// CalculateHistoricalVaR computes VaR from the empirical distribution of
// past portfolio P&L. The exposure vector is applied to aligned historical
// daily returns; the loss at the (1−confidence) percentile of the resulting
// P&L series is the VaR, and the mean P&L at or below that percentile is the
// Expected Shortfall. With no historical data at all the parametric method
// is used instead of failing.
func (c *VaRCalculator) CalculateHistoricalVaR(
	positions []portfolio.Position,
	portfolioValue float64,
	confidence float64,
	horizonDays int,
) (VaRResult, error) {
	if horizonDays <= 0 {
		horizonDays = 1
	}

	exposures := c.extractor.Extract(positions)
	if len(exposures) == 0 {
		return emptyResult(MethodHistorical, confidence, horizonDays, portfolioValue), nil
	}

	symbols := make([]string, 0, len(exposures))
	for symbol := range exposures {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	// Pull aligned return series. Symbols without data are dropped from the
	// empirical P&L; if none have data the parametric method takes over.
	returns := make(map[string][]float64)
	minLen := math.MaxInt32
	usedFallback := false
	for _, symbol := range symbols {
		var rets []float64
		if c.provider != nil {
			r, err := c.provider.DailyReturns(symbol, c.params.LookbackDays)
			if err != nil {
				c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch returns")
			} else {
				rets = r
			}
		}
		if len(rets) < 2 {
			usedFallback = true
			continue
		}
		returns[symbol] = rets
		if len(rets) < minLen {
			minLen = len(rets)
		}
	}

	if len(returns) == 0 {
		c.log.Warn().Msg("No historical data for any symbol, falling back to parametric VaR")
		return c.CalculateParametricVaR(positions, portfolioValue, confidence, horizonDays)
	}

	// Daily portfolio P&L, right-aligned to the shortest series.
	pnl := make([]float64, minLen)
	symbolPnL := make(map[string][]float64, len(returns))
	for symbol, rets := range returns {
		aligned := rets[len(rets)-minLen:]
		series := make([]float64, minLen)
		for t, r := range aligned {
			series[t] = exposures[symbol] * r
			pnl[t] += series[t]
		}
		symbolPnL[symbol] = series
	}

	// Multi-day horizons use overlapping-window sums when the series is
	// long enough, and √horizon scaling otherwise. Per-symbol series are
	// windowed the same way so that tail attribution stays on the same
	// time base as the portfolio series.
	series := pnl
	tailPnL := symbolPnL
	scale := 1.0
	if horizonDays > 1 {
		if minLen > horizonDays {
			series = windowSums(pnl, horizonDays)
			windowed := make(map[string][]float64, len(symbolPnL))
			for symbol, sp := range symbolPnL {
				windowed[symbol] = windowSums(sp, horizonDays)
			}
			tailPnL = windowed
		} else {
			scale = math.Sqrt(float64(horizonDays))
		}
	}

	pct := (1 - confidence) * 100
	threshold := formulas.Percentile(series, pct)
	amount := -threshold * scale
	if amount < 0 {
		amount = 0
	}

	// Expected Shortfall: mean P&L over the worst (1−confidence) tail.
	es := -formulas.CalculateCVaR(series, confidence) * scale
	if es < 0 {
		es = 0
	}

	contributions := c.historicalContributions(symbols, exposures, tailPnL, series, threshold, amount, scale, confidence)

	source := DataSourceHistorical
	if usedFallback {
		source = DataSourceFallback
	}

	result := VaRResult{
		Amount:            amount,
		Confidence:        confidence,
		HorizonDays:       horizonDays,
		Method:            MethodHistorical,
		Contributions:     contributions,
		PortfolioValue:    portfolioValue,
		ExpectedShortfall: es,
		DataSource:        source,
		CalculatedAt:      time.Now(),
	}
	if portfolioValue > 0 {
		result.Percent = amount / portfolioValue * 100
	}

	return result, nil
}

// windowSums returns the overlapping h-day sums of a daily series.
func windowSums(daily []float64, h int) []float64 {
	out := make([]float64, len(daily)-h+1)
	for t := range out {
		sum := 0.0
		for k := 0; k < h; k++ {
			sum += daily[t+k]
		}
		out[t] = sum
	}
	return out
}

// historicalContributions attributes the empirical VaR to underlyings by
// their average loss in the portfolio's tail scenarios, rescaled so the
// marginal values sum exactly to the total. symbolPnL must be on the same
// time base as series (daily or windowed alike).
func (c *VaRCalculator) historicalContributions(
	symbols []string,
	exposures map[string]float64,
	symbolPnL map[string][]float64,
	series []float64,
	threshold float64,
	totalVaR float64,
	scale float64,
	confidence float64,
) []VaRContribution {
	pct := (1 - confidence) * 100

	raw := make(map[string]float64, len(symbolPnL))
	rawSum := 0.0
	for symbol, sp := range symbolPnL {
		tailSum := 0.0
		tailCount := 0
		for t := 0; t < len(sp) && t < len(series); t++ {
			if series[t] <= threshold {
				tailSum += sp[t]
				tailCount++
			}
		}
		if tailCount > 0 {
			raw[symbol] = -tailSum / float64(tailCount)
			rawSum += raw[symbol]
		}
	}

	contributions := make([]VaRContribution, 0, len(symbols))
	for _, symbol := range symbols {
		contrib := VaRContribution{
			Symbol:   symbol,
			Exposure: exposures[symbol],
		}
		if sp, ok := symbolPnL[symbol]; ok {
			standalone := -formulas.Percentile(sp, pct) * scale
			if standalone < 0 {
				standalone = 0
			}
			contrib.StandaloneVaR = standalone
			if rawSum != 0 {
				contrib.MarginalVaR = raw[symbol] / rawSum * totalVaR
			}
			if totalVaR > 0 {
				contrib.PctOfTotal = contrib.MarginalVaR / totalVaR * 100
			}
		}
		contributions = append(contributions, contrib)
	}
	return contributions
}

// CalculateIncrementalVaR computes the change in parametric VaR caused by a
// proposed trade: VaR of the current positions plus the trade's legs, minus
// VaR of the current positions alone. The portfolio value is bumped by the
// trade's absolute market value for the after leg.
func (c *VaRCalculator) CalculateIncrementalVaR(
	positions []portfolio.Position,
	trade *portfolio.ProposedTrade,
	portfolioValue float64,
	confidence float64,
	horizonDays int,
) (IncrementalVaRResult, error) {
	before, err := c.CalculateParametricVaR(positions, portfolioValue, confidence, horizonDays)
	if err != nil {
		return IncrementalVaRResult{}, err
	}

	combined := make([]portfolio.Position, 0, len(positions)+len(trade.Legs))
	combined = append(combined, positions...)
	combined = append(combined, trade.ToPositions()...)

	after, err := c.CalculateParametricVaR(combined, portfolioValue+trade.MarketValue(), confidence, horizonDays)
	if err != nil {
		return IncrementalVaRResult{}, err
	}

	before.Method = MethodIncremental
	after.Method = MethodIncremental

	return IncrementalVaRResult{
		Before:      before,
		After:       after,
		Incremental: after.Amount - before.Amount,
	}, nil
}
