package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/series"
	"github.com/atmx/paper-engine/internal/simrand"
)

var t0 = time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)

func newAsset(price, vol float64, capacity int) *model.Asset {
	return &model.Asset{
		Symbol:     "NEXO",
		Sector:     "Tech",
		Volatility: vol,
		Price:      price,
		History:    series.NewWindow[model.PricePoint](capacity),
	}
}

func newProcess(t *testing.T, p Params, rng simrand.Source) *Process {
	t.Helper()
	proc, err := NewProcess(p, rng)
	require.NoError(t, err)
	return proc
}

// --- Constructor tests ---

func TestNewProcess_NilSource(t *testing.T) {
	_, err := NewProcess(DefaultParams(), nil)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestNewProcess_FillsDefaults(t *testing.T) {
	p := newProcess(t, Params{QuoteSpread: -1}, simrand.New(1)).Params()
	assert.Equal(t, DefaultParams().TradingDayTicks, p.TradingDayTicks)
	assert.Zero(t, p.QuoteSpread, "negative spread becomes 0")
}

// --- Step tests ---

func TestAdvance_NoShockNoDriftKeepsPrice(t *testing.T) {
	// U[-1,1] sample of exactly 0 comes from Float64() == 0.5.
	proc := newProcess(t, Params{TradingDayTicks: 5}, &simrand.Fixed{Values: []float64{0.5}})
	a := newAsset(100, 0.3, 20)
	proc.Seed(a, t0)

	assert.InDelta(t, 100, proc.Advance(a, 0, 0, t0.Add(time.Second)), 1e-9)
}

func TestAdvance_EventImpactIsDampedAndLogAdditive(t *testing.T) {
	proc := newProcess(t, Params{TradingDayTicks: 5, ImpactDamping: 0.5}, &simrand.Fixed{Values: []float64{0.5}})
	a := newAsset(100, 0.3, 20)
	proc.Seed(a, t0)

	got := proc.Advance(a, 0, 0.02, t0.Add(time.Second))
	assert.InDelta(t, 100*math.Exp(0.01), got, 1e-9)
}

func TestAdvance_SentimentRaisesDrift(t *testing.T) {
	proc := newProcess(t, Params{TradingDayTicks: 5, SentimentWeight: 0.001}, &simrand.Fixed{Values: []float64{0.5}})

	bull := newAsset(100, 0.3, 20)
	bear := newAsset(100, 0.3, 20)
	proc.Seed(bull, t0)
	proc.Seed(bear, t0)

	assert.Greater(t, proc.Advance(bull, 1, 0, t0), 100.0)
	assert.Less(t, proc.Advance(bear, -1, 0, t0), 100.0)
}

func TestAdvance_FloorsAtMinPrice(t *testing.T) {
	proc := newProcess(t, Params{TradingDayTicks: 5}, &simrand.Fixed{Values: []float64{0.5}})
	a := newAsset(0.001, 0.3, 20)
	proc.Seed(a, t0)

	assert.Equal(t, MinPrice, proc.Advance(a, 0, -100, t0))
}

func TestAdvance_HugeImpactStaysFinite(t *testing.T) {
	proc := newProcess(t, DefaultParams(), simrand.New(5))
	a := newAsset(180, 0.35, 50)
	proc.Seed(a, t0)

	// A damped impact of 50 per tick overflows float64 within a few ticks.
	for i := 0; i < 60; i++ {
		got := proc.Advance(a, 1, 100, t0.Add(time.Duration(i)*time.Second))
		require.False(t, math.IsInf(got, 0) || math.IsNaN(got), "tick %d: price %v", i, got)
		require.LessOrEqual(t, got, MaxPrice)
		require.LessOrEqual(t, a.Bid, a.Price, "tick %d", i)
		require.LessOrEqual(t, a.Price, a.Ask, "tick %d", i)
		require.False(t, math.IsNaN(a.ChangePercent))
	}
	assert.Equal(t, MaxPrice, a.Price)
}

func TestSeed_ClampsOutOfRangePrice(t *testing.T) {
	proc := newProcess(t, DefaultParams(), simrand.New(1))
	a := newAsset(math.Inf(1), 0.3, 4)
	proc.Seed(a, t0)
	assert.Equal(t, MaxPrice, a.Price)
	assert.LessOrEqual(t, a.Bid, a.Price)
}

func TestAdvance_PricePositiveAndQuotesBracket(t *testing.T) {
	proc := newProcess(t, DefaultParams(), simrand.New(42))
	a := newAsset(50, 2.5, 200)
	proc.Seed(a, t0)

	for i := 0; i < 5000; i++ {
		impact := 0.0
		if i%50 < 10 {
			impact = -0.05
		}
		proc.Advance(a, -1, impact, t0.Add(time.Duration(i)*time.Second))
		require.Greater(t, a.Price, 0.0, "tick %d", i)
		require.LessOrEqual(t, a.Bid, a.Price, "tick %d", i)
		require.LessOrEqual(t, a.Price, a.Ask, "tick %d", i)
	}
}

// --- Derived field tests ---

func TestChange_ZeroUntilLookbackExists(t *testing.T) {
	proc := newProcess(t, Params{TradingDayTicks: 3}, &simrand.Fixed{Values: []float64{1}})
	a := newAsset(100, 0.3, 10)
	proc.Seed(a, t0)

	// Seed + 2 advances = 3 samples; lookback of 3 needs 4.
	for i := 0; i < 2; i++ {
		proc.Advance(a, 0, 0, t0)
		require.Zero(t, a.Change, "advance %d", i)
		require.Zero(t, a.ChangePercent, "advance %d", i)
	}

	proc.Advance(a, 0, 0, t0)
	ref := a.History.At(0).Price
	assert.InDelta(t, (a.Price-ref)/ref*100, a.ChangePercent, 1e-9)
	assert.Greater(t, a.Change, 0.0, "rising path gives positive change")
}

func TestDayRange_UsesOnlyLastTradingDay(t *testing.T) {
	proc := newProcess(t, Params{TradingDayTicks: 2}, &simrand.Fixed{Values: []float64{0.5}})
	a := newAsset(100, 0.3, 10)
	proc.Seed(a, t0)

	proc.Advance(a, 0, 1.0, t0) // big jump up
	proc.Advance(a, 0, -1.0, t0)
	proc.Advance(a, 0, -1.0, t0)

	// The jump is now 3 samples back and outside a 2-tick day.
	assert.LessOrEqual(t, a.DayHigh, a.History.At(a.History.Len()-2).Price+1e-9)
	assert.Equal(t, a.Price, a.DayLow)
}

func TestHistory_BoundedByCapacity(t *testing.T) {
	proc := newProcess(t, DefaultParams(), simrand.New(7))
	a := newAsset(100, 0.3, 16)
	proc.Seed(a, t0)
	for i := 0; i < 100; i++ {
		proc.Advance(a, 0, 0, t0)
	}
	assert.Equal(t, 16, a.History.Len())
	last, _ := a.History.Last()
	assert.Equal(t, a.Price, last.Price)
	assert.Positive(t, last.Volume)
}

func TestQuote_ZeroSpread(t *testing.T) {
	bid, ask := newProcess(t, Params{}, simrand.New(1)).Quote(100)
	assert.Equal(t, 100.0, bid)
	assert.Equal(t, 100.0, ask)
}

// --- Sentiment tests ---

func TestSentimentStep_Bounded(t *testing.T) {
	proc := newProcess(t, Params{SentimentStep: 0.5}, simrand.New(3))
	s := 0.0
	for i := 0; i < 10000; i++ {
		s = proc.SentimentStep(s)
		require.GreaterOrEqual(t, s, -1.0)
		require.LessOrEqual(t, s, 1.0)
	}
}

func TestSentimentStep_ClampsAtEdges(t *testing.T) {
	proc := newProcess(t, Params{SentimentStep: 0.5}, &simrand.Fixed{Values: []float64{1}})
	assert.Equal(t, 1.0, proc.SentimentStep(0.9))
}
