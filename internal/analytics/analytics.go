// Package analytics computes risk statistics over an equity curve.
package analytics

import (
	"math"

	"github.com/atmx/paper-engine/internal/model"
)

// DefaultPeriodsPerYear annualizes per-tick statistics: 252 trading days of
// 78 five-minute ticks.
const DefaultPeriodsPerYear = 252 * 78

// Metrics is the equity-curve part of PerformanceMetrics.
type Metrics struct {
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Calculator computes metrics with a fixed annualization factor.
type Calculator struct {
	PeriodsPerYear float64
}

// NewCalculator returns a calculator; non-positive periods fall back to
// DefaultPeriodsPerYear.
func NewCalculator(periodsPerYear float64) *Calculator {
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}
	return &Calculator{PeriodsPerYear: periodsPerYear}
}

// Compute returns Sharpe ratio and max drawdown for values in chronological
// order. Fewer than two points yields zero metrics.
func (c *Calculator) Compute(values []float64) Metrics {
	if len(values) < 2 {
		return Metrics{}
	}
	return Metrics{
		SharpeRatio: c.Sharpe(Returns(values)),
		MaxDrawdown: MaxDrawdown(values),
	}
}

// FromEquity extracts float values from decimal equity samples.
func FromEquity(points []model.EquityPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value.InexactFloat64()
	}
	return out
}

// Returns computes simple per-step returns. Steps starting from a
// non-positive value are skipped.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev <= 0 {
			continue
		}
		out = append(out, (values[i]-prev)/prev)
	}
	return out
}

// Sharpe is annualized mean return over annualized standard deviation,
// with a zero risk-free rate. Zero variance gives zero.
func (c *Calculator) Sharpe(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := Mean(returns)
	std := Stddev(returns, mean)
	if std == 0 {
		return 0
	}
	annMean := mean * c.PeriodsPerYear
	annStd := std * math.Sqrt(c.PeriodsPerYear)
	return annMean / annStd
}

// MaxDrawdown returns the largest fractional decline from a running peak.
// The result is always >= 0.
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Mean is the arithmetic mean; zero for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Stddev is the population standard deviation around mean. Differences
// below 1e-15 are treated as exact so a constant series reports zero.
func Stddev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		if math.Abs(d) < 1e-15 {
			continue
		}
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
