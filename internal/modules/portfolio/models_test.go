package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionHelpers(t *testing.T) {
	equity := Position{Symbol: "AAPL", Kind: AssetEquity, Quantity: 100, MarketValue: -19000}
	assert.False(t, equity.IsOption())
	assert.Equal(t, "AAPL", equity.InstrumentID())
	assert.Equal(t, 1.0, equity.EffectiveMultiplier())
	assert.Equal(t, 19000.0, equity.GrossValue())

	option := Position{Symbol: "AAPL", Instrument: "AAPL-C190", Kind: AssetOption, Multiplier: 100}
	assert.True(t, option.IsOption())
	assert.Equal(t, "AAPL-C190", option.InstrumentID())
	assert.Equal(t, 100.0, option.EffectiveMultiplier())
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "equity", AssetEquity.String())
	assert.Equal(t, "option", AssetOption.String())
	assert.Equal(t, "delta", GreekDelta.String())
	assert.Equal(t, "vega", GreekVega.String())
}

func TestProposedTradeToPositions(t *testing.T) {
	trade := ProposedTrade{
		Strategy: "collar",
		Legs: []TradeLeg{
			{Symbol: "AAPL", Kind: AssetEquity, Quantity: 100, Price: 190},
			{
				Symbol: "AAPL", Kind: AssetOption, Quantity: -1, Multiplier: 100,
				Price: 5.50, SpotPrice: 190, Greeks: Greeks{Delta: 0.45},
			},
		},
	}

	positions := trade.ToPositions()
	require.Len(t, positions, 2)

	assert.Equal(t, 1.0, positions[0].Multiplier) // defaulted
	assert.InDelta(t, 19000.0, positions[0].MarketValue, 1e-9)
	assert.Equal(t, "collar", positions[0].Strategy)

	assert.InDelta(t, -550.0, positions[1].MarketValue, 1e-9)
	assert.Equal(t, 190.0, positions[1].UnderlyingPrice)
	assert.Equal(t, 0.45, positions[1].Greeks.Delta)

	// absolute values across legs
	assert.InDelta(t, 19550.0, trade.MarketValue(), 1e-9)
}
