package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventScope_Includes(t *testing.T) {
	tech := &Asset{Symbol: "NEXO", Sector: "Tech"}
	bank := &Asset{Symbol: "VALT", Sector: "Finance"}

	tests := []struct {
		name  string
		scope EventScope
		asset *Asset
		want  bool
	}{
		{"symbol match", SymbolScope("NEXO"), tech, true},
		{"symbol miss", SymbolScope("NEXO"), bank, false},
		{"sector match", SectorScope("Finance"), bank, true},
		{"sector miss", SectorScope("Finance"), tech, false},
		{"empty kind", EventScope{Symbol: "NEXO"}, tech, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.Includes(tt.asset))
		})
	}
}

func TestMarketEvent_ActiveAt(t *testing.T) {
	e := MarketEvent{CreatedTick: 10, ExpiresTick: 13}

	for tick, want := range map[int64]bool{10: false, 11: true, 13: true, 14: false} {
		assert.Equal(t, want, e.ActiveAt(tick), "tick %d", tick)
	}
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("buy")
	require.NoError(t, err)
	assert.Equal(t, SideBuy, s)

	_, err = ParseSide("BUY")
	assert.Error(t, err, "side is case sensitive")
}

func TestParseOrderType(t *testing.T) {
	ot, err := ParseOrderType("")
	require.NoError(t, err)
	assert.Equal(t, OrderMarket, ot, "empty defaults to market")

	ot, err = ParseOrderType("stop")
	require.NoError(t, err)
	assert.Equal(t, OrderStop, ot)

	_, err = ParseOrderType("iceberg")
	assert.Error(t, err)
}

func TestPortfolioClone_Independent(t *testing.T) {
	p := NewPortfolio(decimal.NewFromInt(1000), 4)
	p.Positions["NEXO"] = &Position{Symbol: "NEXO", Quantity: 2}

	c := p.Clone()
	c.Positions["NEXO"].Quantity = 5
	c.EquityHistory.Push(EquityPoint{Value: decimal.NewFromInt(1)})

	assert.Equal(t, int64(2), p.Positions["NEXO"].Quantity, "clone shares position pointers")
	assert.Zero(t, p.EquityHistory.Len(), "clone shares equity history")
}

func TestProgression_HasBadge(t *testing.T) {
	p := NewProgression()
	require.Equal(t, 1, p.Level)
	require.Empty(t, p.Badges)

	p.Badges = append(p.Badges, "first-trade")
	assert.True(t, p.HasBadge("first-trade"))
	assert.False(t, p.HasBadge("diversified"))
}
