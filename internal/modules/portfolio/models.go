// Package portfolio defines the position view consumed by the risk engine.
//
// The engine never fetches positions itself; callers adapt whatever their
// broker or position store returns into these structs. Fields the engine
// requires are plain values, optional fields are documented as such.
package portfolio

import (
	"math"
	"time"
)

// AssetKind identifies the instrument class of a position.
type AssetKind int

const (
	AssetEquity AssetKind = iota
	AssetOption
)

// String returns the lowercase name of the asset kind.
func (k AssetKind) String() string {
	switch k {
	case AssetEquity:
		return "equity"
	case AssetOption:
		return "option"
	}
	return "unknown"
}

// GreekKind identifies one option sensitivity.
type GreekKind int

const (
	GreekDelta GreekKind = iota
	GreekGamma
	GreekTheta
	GreekVega
	GreekRho
)

// String returns the lowercase name of the Greek.
func (g GreekKind) String() string {
	switch g {
	case GreekDelta:
		return "delta"
	case GreekGamma:
		return "gamma"
	case GreekTheta:
		return "theta"
	case GreekVega:
		return "vega"
	case GreekRho:
		return "rho"
	}
	return "unknown"
}

// Greeks holds per-contract option sensitivities.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// Position is a read-only snapshot of one holding.
//
// Quantity is signed: negative means short. Multiplier is the contract
// multiplier (100 for standard US options, 1 for equities).
// UnderlyingPrice and EntryPrice are optional; zero means unknown.
type Position struct {
	Symbol          string    `json:"symbol"`     // underlying ticker
	Instrument      string    `json:"instrument"` // unique instrument id (OCC code, ISIN, ...)
	Kind            AssetKind `json:"kind"`
	Quantity        float64   `json:"quantity"`
	Multiplier      float64   `json:"multiplier"`
	Strike          float64   `json:"strike,omitempty"`
	Expiration      time.Time `json:"expiration,omitempty"`
	MarketValue     float64   `json:"market_value"`
	Greeks          Greeks    `json:"greeks"`
	UnderlyingPrice float64   `json:"underlying_price,omitempty"`
	EntryPrice      float64   `json:"entry_price,omitempty"`
	Strategy        string    `json:"strategy,omitempty"` // caller-supplied strategy tag
}

// IsOption reports whether the position is an option contract.
func (p *Position) IsOption() bool {
	return p.Kind == AssetOption
}

// InstrumentID returns the instrument identifier, falling back to the symbol
// when the caller did not supply one. Equity positions rarely carry a
// separate instrument code.
func (p *Position) InstrumentID() string {
	if p.Instrument != "" {
		return p.Instrument
	}
	return p.Symbol
}

// EffectiveMultiplier returns the contract multiplier, defaulting to 1.
func (p *Position) EffectiveMultiplier() float64 {
	if p.Multiplier > 0 {
		return p.Multiplier
	}
	return 1
}

// GrossValue returns the absolute market value of the position.
func (p *Position) GrossValue() float64 {
	return math.Abs(p.MarketValue)
}

// TradeLeg is one leg of a proposed trade.
type TradeLeg struct {
	Symbol     string    `json:"symbol"`
	Kind       AssetKind `json:"kind"`
	Quantity   float64   `json:"quantity"` // signed
	Multiplier float64   `json:"multiplier"`
	Strike     float64   `json:"strike,omitempty"`
	Expiration time.Time `json:"expiration,omitempty"`
	Price      float64   `json:"price"` // per-unit entry price
	Greeks     Greeks    `json:"greeks"`
	SpotPrice  float64   `json:"spot_price,omitempty"`
}

// ProposedTrade is a trade under consideration, used for incremental VaR.
type ProposedTrade struct {
	Strategy string     `json:"strategy,omitempty"`
	Legs     []TradeLeg `json:"legs"`
}

// ToPositions converts the trade legs into position snapshots so that the
// risk engine can evaluate the portfolio as if the trade were filled.
func (t *ProposedTrade) ToPositions() []Position {
	positions := make([]Position, 0, len(t.Legs))
	for _, leg := range t.Legs {
		mult := leg.Multiplier
		if mult <= 0 {
			mult = 1
		}
		positions = append(positions, Position{
			Symbol:          leg.Symbol,
			Kind:            leg.Kind,
			Quantity:        leg.Quantity,
			Multiplier:      mult,
			Strike:          leg.Strike,
			Expiration:      leg.Expiration,
			MarketValue:     leg.Price * leg.Quantity * mult,
			Greeks:          leg.Greeks,
			UnderlyingPrice: leg.SpotPrice,
			Strategy:        t.Strategy,
		})
	}
	return positions
}

// MarketValue returns the total absolute market value of all legs.
func (t *ProposedTrade) MarketValue() float64 {
	total := 0.0
	for _, leg := range t.Legs {
		mult := leg.Multiplier
		if mult <= 0 {
			mult = 1
		}
		total += math.Abs(leg.Price * leg.Quantity * mult)
	}
	return total
}
