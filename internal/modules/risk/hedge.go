package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/riskengine/internal/config"
)

// HedgeInstrument identifies the instrument class of a proposed hedge.
type HedgeInstrument string

const (
	HedgeUnderlyingShares HedgeInstrument = "underlying_shares"
	HedgeATMOptions       HedgeInstrument = "atm_options"
	HedgeLongDatedOptions HedgeInstrument = "long_dated_options"
)

// HedgeProposal is one independent, per-factor hedge suggestion. Proposals
// are advisory; nothing in this package executes them.
type HedgeProposal struct {
	ID              string          `json:"id"`
	Underlying      string          `json:"underlying"`
	Factor          string          `json:"factor"` // delta, gamma or vega
	Instrument      HedgeInstrument `json:"instrument"`
	Quantity        float64         `json:"quantity"` // signed; shares or contracts
	CurrentExposure float64         `json:"current_exposure"`
	Rationale       string          `json:"rationale"`
	ProposedAt      time.Time       `json:"proposed_at"`
}

// HedgeInstrumentParams describes the liquid hedge instruments assumed to be
// available for every underlying. Per-contract sensitivities are before the
// contract multiplier.
type HedgeInstrumentParams struct {
	ATMOptionGamma     float64 // per-contract gamma of an at-the-money option
	LongDatedVega      float64 // per-contract vega of a one-year-plus option
	ContractMultiplier float64
}

// DefaultHedgeInstrumentParams returns typical listed-option values.
func DefaultHedgeInstrumentParams() HedgeInstrumentParams {
	return HedgeInstrumentParams{
		ATMOptionGamma:     0.05,
		LongDatedVega:      0.30,
		ContractMultiplier: 100,
	}
}

// HedgeCalculator proposes one independent hedge per out-of-threshold risk
// factor: delta via the underlying, gamma via ATM options, vega via
// long-dated options. There is no joint optimization across factors.
type HedgeCalculator struct {
	provider    MarketDataProvider
	params      config.RiskParams
	instruments HedgeInstrumentParams
	log         zerolog.Logger
}

// NewHedgeCalculator creates a new hedge calculator. provider may be nil;
// delta hedges then use the fallback price for sizing.
func NewHedgeCalculator(
	provider MarketDataProvider,
	params config.RiskParams,
	instruments HedgeInstrumentParams,
	log zerolog.Logger,
) *HedgeCalculator {
	return &HedgeCalculator{
		provider:    provider,
		params:      params,
		instruments: instruments,
		log:         log.With().Str("component", "hedge_calculator").Logger(),
	}
}

// ProposeHedges examines the matrix's aggregated risk factors and proposes
// hedges for every factor exceeding its threshold. Each factor is handled
// independently; an underlying can receive up to three proposals.
func (h *HedgeCalculator) ProposeHedges(matrix *RiskFactorMatrix) []HedgeProposal {
	thresholds := HedgeThresholds{
		Delta: h.params.DeltaHedgeThreshold,
		Gamma: h.params.GammaHedgeThreshold,
		Vega:  h.params.VegaHedgeThreshold,
	}

	var proposals []HedgeProposal
	for _, factor := range matrix.FactorsNeedingHedge(thresholds) {
		if math.Abs(factor.TotalDelta) > thresholds.Delta {
			if p, ok := h.deltaHedge(factor); ok {
				proposals = append(proposals, p)
			}
		}
		if math.Abs(factor.TotalGamma) > thresholds.Gamma {
			if p, ok := h.gammaHedge(factor); ok {
				proposals = append(proposals, p)
			}
		}
		if math.Abs(factor.TotalVega) > thresholds.Vega {
			if p, ok := h.vegaHedge(factor); ok {
				proposals = append(proposals, p)
			}
		}
	}

	h.log.Info().
		Int("proposals", len(proposals)).
		Msg("Computed hedge proposals")

	return proposals
}

// deltaHedge sizes an opposite-sign position in the underlying itself so
// the aggregate delta nets to zero. The quantity is rounded to whole
// shares, leaving a residual of at most half a share of delta unhedged.
func (h *HedgeCalculator) deltaHedge(factor *AggregatedRiskFactor) (HedgeProposal, bool) {
	price := h.underlyingPrice(factor.Underlying)
	if price <= 0 {
		return HedgeProposal{}, false
	}

	shares := math.Round(-factor.TotalDelta / price)
	if shares == 0 {
		return HedgeProposal{}, false
	}

	return HedgeProposal{
		ID:              uuid.New().String(),
		Underlying:      factor.Underlying,
		Factor:          "delta",
		Instrument:      HedgeUnderlyingShares,
		Quantity:        shares,
		CurrentExposure: factor.TotalDelta,
		Rationale: fmt.Sprintf("net %+.0f delta-dollars with %+.0f shares at %.2f",
			-factor.TotalDelta, shares, price),
		ProposedAt: time.Now(),
	}, true
}

// gammaHedge sizes ATM option contracts to offset the aggregate gamma.
func (h *HedgeCalculator) gammaHedge(factor *AggregatedRiskFactor) (HedgeProposal, bool) {
	perContract := h.instruments.ATMOptionGamma * h.instruments.ContractMultiplier
	if perContract <= 0 {
		return HedgeProposal{}, false
	}

	contracts := math.Round(-factor.TotalGamma / perContract)
	if contracts == 0 {
		return HedgeProposal{}, false
	}

	return HedgeProposal{
		ID:              uuid.New().String(),
		Underlying:      factor.Underlying,
		Factor:          "gamma",
		Instrument:      HedgeATMOptions,
		Quantity:        contracts,
		CurrentExposure: factor.TotalGamma,
		Rationale: fmt.Sprintf("offset %.2f gamma with %+.0f ATM contracts (%.2f gamma each)",
			factor.TotalGamma, contracts, perContract),
		ProposedAt: time.Now(),
	}, true
}

// vegaHedge sizes long-dated option contracts to offset the aggregate vega.
func (h *HedgeCalculator) vegaHedge(factor *AggregatedRiskFactor) (HedgeProposal, bool) {
	perContract := h.instruments.LongDatedVega * h.instruments.ContractMultiplier
	if perContract <= 0 {
		return HedgeProposal{}, false
	}

	contracts := math.Round(-factor.TotalVega / perContract)
	if contracts == 0 {
		return HedgeProposal{}, false
	}

	return HedgeProposal{
		ID:              uuid.New().String(),
		Underlying:      factor.Underlying,
		Factor:          "vega",
		Instrument:      HedgeLongDatedOptions,
		Quantity:        contracts,
		CurrentExposure: factor.TotalVega,
		Rationale: fmt.Sprintf("offset %.2f vega with %+.0f long-dated contracts (%.2f vega each)",
			factor.TotalVega, contracts, perContract),
		ProposedAt: time.Now(),
	}, true
}

func (h *HedgeCalculator) underlyingPrice(symbol string) float64 {
	if h.provider != nil {
		price, err := h.provider.LatestPrice(symbol)
		if err == nil && price > 0 {
			return price
		}
		if err != nil {
			h.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch price for hedge sizing")
		}
	}
	return h.params.FallbackPrice
}
