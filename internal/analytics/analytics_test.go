package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/paper-engine/internal/model"
)

func TestCompute_ShortHistoryDefaults(t *testing.T) {
	c := NewCalculator(0)
	for _, values := range [][]float64{nil, {}, {100}} {
		m := c.Compute(values)
		assert.Zero(t, m.SharpeRatio, "%v", values)
		assert.Zero(t, m.MaxDrawdown, "%v", values)
	}
}

func TestReturns(t *testing.T) {
	got := Returns([]float64{100, 110, 99})
	require.Len(t, got, 2)
	assert.InDelta(t, 0.1, got[0], 1e-12)
	assert.InDelta(t, -0.1, got[1], 1e-12)
}

func TestReturns_SkipsNonPositiveBase(t *testing.T) {
	got := Returns([]float64{0, 10, 11})
	require.Len(t, got, 1)
	assert.InDelta(t, 0.1, got[0], 1e-12)
}

func TestSharpe_ZeroWhenReturnsIdentical(t *testing.T) {
	c := NewCalculator(252)

	// Flat equity: every return is exactly zero.
	assert.Zero(t, c.Compute([]float64{100, 100, 100, 100}).SharpeRatio, "flat equity")

	// Constant 1% growth: identical non-zero returns.
	values := []float64{100}
	for i := 0; i < 20; i++ {
		values = append(values, values[len(values)-1]*1.01)
	}
	assert.Zero(t, c.Compute(values).SharpeRatio, "constant growth")
}

func TestSharpe_Annualized(t *testing.T) {
	c := NewCalculator(4)
	returns := []float64{0.1, -0.05, 0.1, -0.05}
	mean := 0.025
	std := 0.075
	assert.InDelta(t, (mean*4)/(std*2), c.Sharpe(returns), 1e-9)
}

func TestSharpe_SignFollowsMean(t *testing.T) {
	c := NewCalculator(252)
	up := c.Compute([]float64{100, 102, 101, 104, 103, 106})
	down := c.Compute([]float64{100, 98, 99, 96, 97, 94})
	assert.Positive(t, up.SharpeRatio)
	assert.Negative(t, down.SharpeRatio)
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"monotonic up", []float64{1, 2, 3}, 0},
		{"single dip", []float64{100, 80, 120}, 0.2},
		{"deeper later", []float64{100, 90, 150, 75, 200}, 0.5},
		{"ends in drawdown", []float64{10, 12, 6}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(tt.values)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
		})
	}
}

func TestFromEquity(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pts := []model.EquityPoint{
		{Value: decimal.NewFromInt(10000), Timestamp: ts},
		{Value: decimal.RequireFromString("10100.5"), Timestamp: ts},
	}
	assert.Equal(t, []float64{10000, 10100.5}, FromEquity(pts))
}
