// Package mission drives the progression state machine. Levels 1..K map
// to missions in order; once the level passes K the campaign is complete
// and no further transitions happen.
package mission

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/exposure"
	"github.com/atmx/paper-engine/internal/model"
)

// Context is what a predicate may inspect. It is built fresh for every
// evaluation pass.
type Context struct {
	Portfolio     *model.Portfolio
	Market        *model.MarketState
	Equity        decimal.Decimal
	EquityHistory []model.EquityPoint
	Trades        []model.Trade
	StartingCash  decimal.Decimal
}

// Predicate reports whether a mission is complete.
type Predicate func(Context) bool

// Mission is one step of the campaign.
type Mission struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Badge       string    `json:"badge"`
	Done        Predicate `json:"-"`
}

// Result describes a transition.
type Result struct {
	Mission  Mission `json:"mission"`
	Level    int     `json:"level"` // level after the transition
	NewBadge bool    `json:"new_badge"`
}

// Tracker evaluates progression against an ordered mission list.
type Tracker struct {
	missions []Mission
}

// NewTracker creates a tracker over missions, which are played in order.
func NewTracker(missions []Mission) *Tracker {
	return &Tracker{missions: append([]Mission(nil), missions...)}
}

// Missions returns the campaign.
func (t *Tracker) Missions() []Mission {
	return append([]Mission(nil), t.missions...)
}

// Len is the number of missions K.
func (t *Tracker) Len() int { return len(t.missions) }

// Complete reports whether p is in the terminal state.
func (t *Tracker) Complete(p *model.Progression) bool {
	return p.Level > len(t.missions)
}

// Current returns the mission for p's level, or nil when complete.
func (t *Tracker) Current(p *model.Progression) *Mission {
	if p.Level < 1 || p.Level > len(t.missions) {
		return nil
	}
	m := t.missions[p.Level-1]
	return &m
}

// Evaluate checks the current mission and advances p by exactly one level
// when its predicate holds. The mission badge is appended only if it is
// not already present. It reports false when nothing changed.
func (t *Tracker) Evaluate(p *model.Progression, ctx Context) (Result, bool) {
	if p.Level < 1 {
		p.Level = 1
	}
	m := t.Current(p)
	if m == nil || m.Done == nil || !m.Done(ctx) {
		return Result{}, false
	}

	p.Level++
	res := Result{Mission: *m, Level: p.Level}
	if m.Badge != "" && !p.HasBadge(m.Badge) {
		p.Badges = append(p.Badges, m.Badge)
		res.NewBadge = true
	}
	return res, true
}

// Default returns the built-in campaign.
func Default() []Mission {
	return []Mission{
		{
			ID:          1,
			Title:       "First Steps",
			Description: "Place your first trade.",
			Badge:       "first-trade",
			Done:        MinTrades(1),
		},
		{
			ID:          2,
			Title:       "Diversify",
			Description: "Hold at least 3 different symbols at once.",
			Badge:       "diversified",
			Done:        DistinctHoldings(3),
		},
		{
			ID:          3,
			Title:       "Take Profit",
			Description: "Close a position for a realized gain.",
			Badge:       "profit-taker",
			Done:        RealizedProfit(),
		},
		{
			ID:          4,
			Title:       "Cross the Aisle",
			Description: "Hold positions in at least 2 sectors.",
			Badge:       "sector-spread",
			Done:        SectorSpread(2),
		},
		{
			ID:          5,
			Title:       "Growth Target",
			Description: "Grow total equity 10% above starting cash.",
			Badge:       "ten-percent",
			Done:        EquityGrowth(0.10),
		},
		{
			ID:          6,
			Title:       "Active Trader",
			Description: "Complete 10 trades.",
			Badge:       "active-trader",
			Done:        MinTrades(10),
		},
	}
}

// MinTrades is satisfied once the trade log holds at least n trades.
func MinTrades(n int) Predicate {
	return func(c Context) bool { return len(c.Trades) >= n }
}

// DistinctHoldings is satisfied when at least n symbols are held.
func DistinctHoldings(n int) Predicate {
	return func(c Context) bool {
		if c.Portfolio == nil {
			return false
		}
		held := 0
		for _, pos := range c.Portfolio.Positions {
			if pos.Quantity > 0 {
				held++
			}
		}
		return held >= n
	}
}

// RealizedProfit is satisfied when cumulative realized P&L is positive.
func RealizedProfit() Predicate {
	return func(c Context) bool {
		return c.Portfolio != nil && c.Portfolio.RealizedPnL.IsPositive()
	}
}

// SectorSpread is satisfied when holdings span at least n sectors.
func SectorSpread(n int) Predicate {
	return func(c Context) bool {
		if c.Portfolio == nil || c.Market == nil {
			return false
		}
		return exposure.SectorCount(c.Portfolio, c.Market) >= n
	}
}

// EquityGrowth is satisfied when equity is at least (1+frac) × starting cash.
func EquityGrowth(frac float64) Predicate {
	return func(c Context) bool {
		if !c.StartingCash.IsPositive() {
			return false
		}
		target := c.StartingCash.Mul(decimal.NewFromFloat(1 + frac))
		return c.Equity.GreaterThanOrEqual(target)
	}
}
