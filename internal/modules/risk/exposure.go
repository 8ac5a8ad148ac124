package risk

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/riskengine/internal/config"
	"github.com/aristath/riskengine/internal/modules/portfolio"
)

// ExposureExtractor converts a position list into per-underlying directional
// dollar exposures (delta-dollars).
type ExposureExtractor struct {
	params config.RiskParams
	log    zerolog.Logger
}

// NewExposureExtractor creates a new exposure extractor.
func NewExposureExtractor(params config.RiskParams, log zerolog.Logger) *ExposureExtractor {
	return &ExposureExtractor{
		params: params,
		log:    log.With().Str("component", "exposure_extractor").Logger(),
	}
}

// Extract returns the dollar exposure per underlying.
//
// Option positions contribute delta × quantity × multiplier × underlying
// price; when the underlying price is unknown it is estimated from the
// position's market value. Equity positions contribute quantity × price.
// Positions with zero quantity or an empty symbol are skipped. An empty
// input yields an empty map, never an error.
func (e *ExposureExtractor) Extract(positions []portfolio.Position) map[string]float64 {
	exposures := make(map[string]float64)

	for i := range positions {
		pos := &positions[i]
		if pos.Symbol == "" || pos.Quantity == 0 {
			continue
		}

		mult := pos.EffectiveMultiplier()

		if pos.IsOption() {
			price := pos.UnderlyingPrice
			if price <= 0 {
				price = e.estimateUnderlyingPrice(pos)
			}
			exposures[pos.Symbol] += pos.Greeks.Delta * pos.Quantity * mult * price
			continue
		}

		price := pos.UnderlyingPrice
		if price <= 0 && pos.Quantity != 0 {
			price = pos.MarketValue / pos.Quantity
		}
		if price <= 0 {
			price = e.params.FallbackPrice
		}
		exposures[pos.Symbol] += pos.Quantity * price
	}

	return exposures
}

// estimateUnderlyingPrice backs the underlying price out of an option's
// market value: |mv| ≈ |delta| × |qty| × mult × price holds only loosely,
// but it is the best available signal when no quote was supplied.
func (e *ExposureExtractor) estimateUnderlyingPrice(pos *portfolio.Position) float64 {
	denom := math.Abs(pos.Greeks.Delta) * math.Abs(pos.Quantity) * pos.EffectiveMultiplier()
	if denom > 0 && pos.MarketValue != 0 {
		return math.Abs(pos.MarketValue) / denom
	}
	e.log.Debug().
		Str("symbol", pos.Symbol).
		Msg("No underlying price available, using fallback estimate")
	return e.params.FallbackPrice
}
