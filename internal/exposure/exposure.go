// Package exposure measures how portfolio value is spread across sectors
// and optionally caps concentration in a single sector.
package exposure

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/ledger"
	"github.com/atmx/paper-engine/internal/model"
)

// ErrSectorLimitExceeded is returned when a buy would push one sector's
// share of holdings above the configured maximum.
var ErrSectorLimitExceeded = errors.New("exposure: sector concentration limit exceeded")

// SectorWeight is one sector's market value and share of total holdings.
type SectorWeight struct {
	Sector string          `json:"sector"`
	Value  decimal.Decimal `json:"value"`
	Weight float64         `json:"weight"`
}

// BySector returns the market value held in each sector. Positions whose
// symbol is no longer in the market are skipped.
func BySector(p *model.Portfolio, market *model.MarketState) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for sym, pos := range p.Positions {
		a, ok := market.Assets[sym]
		if !ok || pos.Quantity <= 0 {
			continue
		}
		mv := ledger.MarkPrice(market, sym).Mul(decimal.NewFromInt(pos.Quantity))
		out[a.Sector] = out[a.Sector].Add(mv)
	}
	return out
}

// SectorCount is the number of distinct sectors with open positions.
func SectorCount(p *model.Portfolio, market *model.MarketState) int {
	return len(BySector(p, market))
}

// Weights returns per-sector weights sorted by descending value, ties by
// sector name. Weights sum to 1 when anything is held.
func Weights(p *model.Portfolio, market *model.MarketState) []SectorWeight {
	values := BySector(p, market)
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}

	out := make([]SectorWeight, 0, len(values))
	for sector, v := range values {
		w := 0.0
		if total.IsPositive() {
			w = v.Div(total).InexactFloat64()
		}
		out = append(out, SectorWeight{Sector: sector, Value: v, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Value.Equal(out[j].Value) {
			return out[i].Value.GreaterThan(out[j].Value)
		}
		return out[i].Sector < out[j].Sector
	})
	return out
}

// Concentration is the largest single-sector weight, or 0 with no holdings.
func Concentration(p *model.Portfolio, market *model.MarketState) float64 {
	w := Weights(p, market)
	if len(w) == 0 {
		return 0
	}
	return w[0].Weight
}

// Limiter caps the share of holdings any one sector may reach through a
// buy. A zero MaxWeight disables the check.
type Limiter struct {
	// MaxWeight is the largest allowed sector weight in (0, 1].
	MaxWeight float64

	// MinHoldings exempts small portfolios: the cap applies only once
	// post-trade holdings reach this value, so a first purchase is never
	// blocked for being 100% of one sector.
	MinHoldings decimal.Decimal
}

// NewLimiter creates a limiter. Weights outside (0, 1) disable it.
func NewLimiter(maxWeight float64, minHoldings decimal.Decimal) *Limiter {
	if maxWeight <= 0 || maxWeight >= 1 {
		maxWeight = 0
	}
	return &Limiter{MaxWeight: maxWeight, MinHoldings: minHoldings}
}

// Enabled reports whether the limiter enforces anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.MaxWeight > 0
}

// CheckBuy reports whether buying cost worth of symbol keeps its sector
// within the limit.
func (l *Limiter) CheckBuy(p *model.Portfolio, market *model.MarketState, symbol string, cost decimal.Decimal) error {
	if !l.Enabled() {
		return nil
	}
	a, ok := market.Assets[symbol]
	if !ok {
		return nil
	}

	values := BySector(p, market)
	values[a.Sector] = values[a.Sector].Add(cost)

	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	if !total.IsPositive() || total.LessThan(l.MinHoldings) {
		return nil
	}

	if values[a.Sector].Div(total).InexactFloat64() > l.MaxWeight {
		return ErrSectorLimitExceeded
	}
	return nil
}
