// Package risk implements the portfolio risk-analytics engine: exposure
// extraction, the instrument × risk-factor matrix, correlation analysis,
// VaR and Expected Shortfall, concentration scoring, margin estimation,
// limit checking and per-factor hedge proposals.
//
// Everything here is a pure, synchronous computation over immutable position
// snapshots; the only shared state is the explicit correlation-matrix cache,
// which callers serialize externally when shared across goroutines.
package risk

import (
	"github.com/rs/zerolog"

	"github.com/aristath/riskengine/internal/config"
	"github.com/aristath/riskengine/internal/modules/portfolio"
)

// PositionSource supplies the current position snapshot and portfolio value.
// It is a collaborator owned by the caller (broker adapter, database, ...).
type PositionSource interface {
	Positions() ([]portfolio.Position, error)
	PortfolioValue() (float64, error)
}

// Service is the facade over the risk engine, the only type the HTTP layer
// touches.
type Service struct {
	Extractor *ExposureExtractor
	Analyzer  *CorrelationAnalyzer
	VaR       *VaRCalculator
	Checker   *ConcentrationChecker
	Margin    *MarginEstimator
	Limits    *LimitChecker
	Hedger    *HedgeCalculator

	source PositionSource
	params config.RiskParams
	log    zerolog.Logger
}

// NewService wires the engine. provider and source may be nil for embedded
// use; methods that need them degrade to fallback estimates or empty
// snapshots.
func NewService(
	provider MarketDataProvider,
	source PositionSource,
	params config.RiskParams,
	log zerolog.Logger,
) *Service {
	extractor := NewExposureExtractor(params, log)
	analyzer := NewCorrelationAnalyzer(provider, extractor, NewMatrixCache(), params, log)

	return &Service{
		Extractor: extractor,
		Analyzer:  analyzer,
		VaR:       NewVaRCalculator(extractor, analyzer, provider, params, log),
		Checker:   NewConcentrationChecker(nil, log),
		Margin:    NewMarginEstimator(params, log),
		Limits:    NewLimitChecker(log),
		Hedger:    NewHedgeCalculator(provider, params, DefaultHedgeInstrumentParams(), log),
		source:    source,
		params:    params,
		log:       log.With().Str("component", "risk_service").Logger(),
	}
}

// Snapshot returns the current positions and portfolio value from the
// position source. A nil source yields an empty snapshot.
func (s *Service) Snapshot() ([]portfolio.Position, float64, error) {
	if s.source == nil {
		return nil, 0, nil
	}
	positions, err := s.source.Positions()
	if err != nil {
		return nil, 0, err
	}
	value, err := s.source.PortfolioValue()
	if err != nil {
		return nil, 0, err
	}
	return positions, value, nil
}

// BuildMatrix maps a position snapshot into a risk factor matrix.
func (s *Service) BuildMatrix(positions []portfolio.Position) *RiskFactorMatrix {
	matrix := NewRiskFactorMatrix()
	for i := range positions {
		matrix.AddPosition(&positions[i])
	}
	return matrix
}

// CheckLimits builds the standard metric set from the current snapshot and
// evaluates it against the registered limits. When no limits are registered
// yet, the default set scaled to the portfolio value is installed first.
func (s *Service) CheckLimits(positions []portfolio.Position, portfolioValue float64, confidence float64) (LimitCheckResult, error) {
	if len(s.Limits.Limits()) == 0 {
		s.Limits.RegisterDefaults(portfolioValue)
	}

	varResult, err := s.VaR.CalculateParametricVaR(positions, portfolioValue, confidence, 1)
	if err != nil {
		return LimitCheckResult{}, err
	}

	matrix := s.BuildMatrix(positions)
	totals := matrix.PortfolioTotals()

	metrics := map[string]float64{
		LimitVaR95:   varResult.Amount,
		LimitTheta:   totals.Theta,
		LimitVega:    totals.Vega,
		LimitDelta:   totals.Delta,
		LimitMaxLoss: varResult.ExpectedShortfall,
	}

	return s.Limits.CheckAll(metrics), nil
}

// WarmCache precomputes the correlation matrix for the current snapshot's
// symbols so that interactive calls hit a fresh cache. Used by the daily
// maintenance job.
func (s *Service) WarmCache() error {
	positions, _, err := s.Snapshot()
	if err != nil {
		return err
	}
	exposures := s.Extractor.Extract(positions)
	if len(exposures) < 2 {
		return nil
	}
	symbols := make([]string, 0, len(exposures))
	for symbol := range exposures {
		symbols = append(symbols, symbol)
	}
	_, err = s.Analyzer.CalculateCorrelationMatrix(symbols, s.params.LookbackDays)
	return err
}
