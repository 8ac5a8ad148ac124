package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskengine/internal/config"
	"github.com/aristath/riskengine/internal/modules/portfolio"
)

// Simplified Reg-T style margin rates.
const (
	equityInitialRate      = 0.50
	equityMaintenanceRate  = 0.25
	shortOptionInitialRate = 0.20
	shortOptionMaintRate   = 0.15
	marginWarningLevel     = 0.80
	marginCallLevel        = 0.90
)

// MarginRequirement is the rough margin estimate for one position.
type MarginRequirement struct {
	Symbol            string  `json:"symbol"`
	Instrument        string  `json:"instrument"`
	Initial           float64 `json:"initial"`
	Maintenance       float64 `json:"maintenance"`
	BuyingPowerEffect float64 `json:"buying_power_effect"`
}

// MarginAnalysis is the portfolio-level margin picture.
type MarginAnalysis struct {
	Requirements     []MarginRequirement `json:"requirements"`
	TotalInitial     float64             `json:"total_initial"`
	TotalMaintenance float64             `json:"total_maintenance"`
	TotalEquity      float64             `json:"total_equity"`
	Utilization      float64             `json:"utilization"` // initial margin / equity
	AvailableMargin  float64             `json:"available_margin"`
	WarningLevel     bool                `json:"warning_level"`    // utilization > 80%
	MarginCallRisk   bool                `json:"margin_call_risk"` // utilization > 90%
	AnalyzedAt       time.Time           `json:"analyzed_at"`
}

// MarginEstimator produces rough initial/maintenance margin estimates.
// These are Reg-T style approximations for risk monitoring, not a broker's
// house margin calculation.
type MarginEstimator struct {
	params config.RiskParams
	log    zerolog.Logger
}

// NewMarginEstimator creates a new margin estimator.
func NewMarginEstimator(params config.RiskParams, log zerolog.Logger) *MarginEstimator {
	return &MarginEstimator{
		params: params,
		log:    log.With().Str("component", "margin_estimator").Logger(),
	}
}

// EstimatePosition estimates margin for one position:
// long equity 50% of market value, long options the full premium, short
// options 20% of the notional underlying-equivalent value.
func (m *MarginEstimator) EstimatePosition(pos *portfolio.Position) MarginRequirement {
	req := MarginRequirement{
		Symbol:     pos.Symbol,
		Instrument: pos.InstrumentID(),
	}

	gross := pos.GrossValue()

	if !pos.IsOption() {
		req.Initial = gross * equityInitialRate
		req.Maintenance = gross * equityMaintenanceRate
		if pos.Quantity < 0 {
			// Short equity: full value plus the initial margin.
			req.Initial = gross * (1 + equityInitialRate)
			req.Maintenance = gross * (1 + equityMaintenanceRate)
		}
		req.BuyingPowerEffect = req.Initial
		return req
	}

	if pos.Quantity > 0 {
		// Long option: the premium is the whole requirement.
		req.Initial = gross
		req.Maintenance = gross
		req.BuyingPowerEffect = gross
		return req
	}

	// Short option: percentage of the notional underlying-equivalent value.
	price := pos.UnderlyingPrice
	if price <= 0 {
		price = m.params.FallbackPrice
	}
	notional := math.Abs(pos.Quantity) * pos.EffectiveMultiplier() * price
	req.Initial = notional * shortOptionInitialRate
	req.Maintenance = notional * shortOptionMaintRate
	req.BuyingPowerEffect = req.Initial
	return req
}

// Analyze sums per-position margins and derives portfolio utilization.
func (m *MarginEstimator) Analyze(positions []portfolio.Position, totalEquity float64) MarginAnalysis {
	analysis := MarginAnalysis{
		TotalEquity: totalEquity,
		AnalyzedAt:  time.Now(),
	}

	for i := range positions {
		req := m.EstimatePosition(&positions[i])
		analysis.Requirements = append(analysis.Requirements, req)
		analysis.TotalInitial += req.Initial
		analysis.TotalMaintenance += req.Maintenance
	}

	if totalEquity > 0 {
		analysis.Utilization = analysis.TotalInitial / totalEquity
		analysis.AvailableMargin = totalEquity - analysis.TotalInitial
		if analysis.AvailableMargin < 0 {
			analysis.AvailableMargin = 0
		}
	}
	analysis.WarningLevel = analysis.Utilization > marginWarningLevel
	analysis.MarginCallRisk = analysis.Utilization > marginCallLevel

	if analysis.MarginCallRisk {
		m.log.Warn().
			Float64("utilization", analysis.Utilization).
			Msg("Margin utilization above call-risk level")
	}

	return analysis
}

// CanAffordTrade checks whether a proposed trade fits within the current
// margin picture. It rejects when the trade's buying-power effect exceeds
// available margin, or when post-trade utilization would exceed 90%.
func (m *MarginEstimator) CanAffordTrade(current MarginAnalysis, trade *portfolio.ProposedTrade) (bool, string) {
	tradeMargin := 0.0
	for _, pos := range trade.ToPositions() {
		req := m.EstimatePosition(&pos)
		tradeMargin += req.BuyingPowerEffect
	}

	if tradeMargin > current.AvailableMargin {
		return false, fmt.Sprintf(
			"trade requires %.2f margin but only %.2f is available",
			tradeMargin, current.AvailableMargin,
		)
	}

	if current.TotalEquity > 0 {
		postUtilization := (current.TotalInitial + tradeMargin) / current.TotalEquity
		if postUtilization > marginCallLevel {
			return false, fmt.Sprintf(
				"post-trade margin utilization %.1f%% would exceed %.0f%%",
				postUtilization*100, marginCallLevel*100,
			)
		}
	}

	return true, ""
}
