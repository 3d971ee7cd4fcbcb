package mission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/paper-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func testMarket() *model.MarketState {
	return &model.MarketState{Assets: map[string]*model.Asset{
		"NEXO": {Symbol: "NEXO", Sector: "Tech", Price: 100},
		"QBIT": {Symbol: "QBIT", Sector: "Tech", Price: 50},
		"VALT": {Symbol: "VALT", Sector: "Finance", Price: 80},
	}}
}

func hold(p *model.Portfolio, sym string, qty int64) {
	p.Positions[sym] = &model.Position{Symbol: sym, Quantity: qty}
}

func always(ok bool) Predicate {
	return func(Context) bool { return ok }
}

func TestEvaluate_DistinctHoldingsScenario(t *testing.T) {
	tr := NewTracker([]Mission{{ID: 1, Title: "Diversify", Badge: "diversified", Done: DistinctHoldings(3)}})
	prog := model.NewProgression()
	p := model.NewPortfolio(d(10000), 10)
	ctx := Context{Portfolio: p, Market: testMarket()}

	hold(p, "NEXO", 1)
	hold(p, "QBIT", 1)
	_, advanced := tr.Evaluate(prog, ctx)
	assert.False(t, advanced, "two symbols must not satisfy the mission")
	assert.Equal(t, 1, prog.Level)
	assert.Empty(t, prog.Badges)

	hold(p, "VALT", 1)
	res, advanced := tr.Evaluate(prog, ctx)
	require.True(t, advanced, "third symbol must advance on the same pass")
	assert.Equal(t, 2, prog.Level)
	assert.Equal(t, 2, res.Level)
	assert.True(t, res.NewBadge)
	assert.Equal(t, []string{"diversified"}, prog.Badges)
}

func TestEvaluate_ExactlyOneLevelPerPass(t *testing.T) {
	tr := NewTracker([]Mission{
		{ID: 1, Badge: "a", Done: always(true)},
		{ID: 2, Badge: "b", Done: always(true)},
		{ID: 3, Badge: "c", Done: always(true)},
	})
	prog := model.NewProgression()

	for want := 2; want <= 4; want++ {
		_, ok := tr.Evaluate(prog, Context{})
		require.True(t, ok)
		assert.Equal(t, want, prog.Level)
	}
	assert.Equal(t, []string{"a", "b", "c"}, prog.Badges)
}

func TestEvaluate_TerminalStateIsStable(t *testing.T) {
	tr := NewTracker([]Mission{{ID: 1, Badge: "only", Done: always(true)}})
	prog := model.NewProgression()

	_, ok := tr.Evaluate(prog, Context{})
	require.True(t, ok)
	require.True(t, tr.Complete(prog))
	assert.Nil(t, tr.Current(prog))

	for i := 0; i < 5; i++ {
		_, ok := tr.Evaluate(prog, Context{})
		assert.False(t, ok)
	}
	assert.Equal(t, 2, prog.Level)
	assert.Equal(t, []string{"only"}, prog.Badges)
}

func TestEvaluate_BadgeIdempotent(t *testing.T) {
	tr := NewTracker([]Mission{
		{ID: 1, Badge: "shared", Done: always(true)},
		{ID: 2, Badge: "shared", Done: always(true)},
	})
	prog := model.NewProgression()

	first, _ := tr.Evaluate(prog, Context{})
	second, ok := tr.Evaluate(prog, Context{})

	require.True(t, ok)
	assert.True(t, first.NewBadge)
	assert.False(t, second.NewBadge)
	assert.Equal(t, []string{"shared"}, prog.Badges)
	assert.Equal(t, 3, prog.Level)
}

func TestEvaluate_ResumedWithBadgeAlreadyEarned(t *testing.T) {
	tr := NewTracker(Default())
	prog := &model.Progression{Level: 1, Badges: []string{"first-trade"}}
	ctx := Context{Trades: []model.Trade{{ID: "t1"}}}

	res, ok := tr.Evaluate(prog, ctx)
	require.True(t, ok)
	assert.False(t, res.NewBadge)
	assert.Equal(t, []string{"first-trade"}, prog.Badges)
}

func TestEvaluate_FalsePredicateNoChange(t *testing.T) {
	tr := NewTracker(Default())
	prog := model.NewProgression()
	before := prog.Clone()

	_, ok := tr.Evaluate(prog, Context{})
	assert.False(t, ok)
	assert.Equal(t, before, prog)
}

func TestEvaluate_ClampsLevelBelowOne(t *testing.T) {
	tr := NewTracker(Default())
	prog := &model.Progression{Level: 0}
	tr.Evaluate(prog, Context{})
	assert.Equal(t, 1, prog.Level)
}

func TestDefaultCampaign(t *testing.T) {
	missions := Default()
	require.Len(t, missions, 6)
	seen := map[string]bool{}
	for i, m := range missions {
		assert.Equal(t, i+1, m.ID)
		assert.NotEmpty(t, m.Title)
		assert.NotNil(t, m.Done)
		assert.False(t, seen[m.Badge], "duplicate badge %s", m.Badge)
		seen[m.Badge] = true
	}
}

func TestPredicates(t *testing.T) {
	m := testMarket()
	p := model.NewPortfolio(d(10000), 10)
	hold(p, "NEXO", 1)
	hold(p, "QBIT", 1)

	assert.False(t, SectorSpread(2)(Context{Portfolio: p, Market: m}))
	hold(p, "VALT", 1)
	assert.True(t, SectorSpread(2)(Context{Portfolio: p, Market: m}))

	assert.False(t, RealizedProfit()(Context{Portfolio: p}))
	p.RealizedPnL = d(0.01)
	assert.True(t, RealizedProfit()(Context{Portfolio: p}))

	grow := EquityGrowth(0.10)
	assert.False(t, grow(Context{Equity: d(10999.99), StartingCash: d(10000)}))
	assert.True(t, grow(Context{Equity: d(11000), StartingCash: d(10000)}))
	assert.False(t, grow(Context{Equity: d(11000)}), "zero starting cash never satisfies growth")

	assert.False(t, MinTrades(2)(Context{Trades: make([]model.Trade, 1)}))
	assert.True(t, MinTrades(2)(Context{Trades: make([]model.Trade, 2)}))

	assert.False(t, DistinctHoldings(1)(Context{}))
}
