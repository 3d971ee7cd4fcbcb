package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/analytics"
	"github.com/atmx/paper-engine/internal/model"
)

// Valuation is a mark-to-market view of a portfolio. Total is always
// recomputed as Cash + Σ quantity × current price, never carried forward.
type Valuation struct {
	Cash          decimal.Decimal `json:"cash"`
	Holdings      decimal.Decimal `json:"holdings"`
	Total         decimal.Decimal `json:"total"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
}

// PositionView is a position marked at the current price.
type PositionView struct {
	Symbol        string          `json:"symbol"`
	Sector        string          `json:"sector"`
	Quantity      int64           `json:"quantity"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	Price         decimal.Decimal `json:"price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// MarkPrice converts an asset's current price to decimal. Unknown symbols
// mark at zero.
func MarkPrice(market *model.MarketState, symbol string) decimal.Decimal {
	a, ok := market.Assets[symbol]
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromFloat(a.Price).Round(model.PriceScale)
}

// Value computes the valuation of p at current market prices.
func Value(p *model.Portfolio, market *model.MarketState) Valuation {
	holdings := decimal.Zero
	basis := decimal.Zero
	for sym, pos := range p.Positions {
		holdings = holdings.Add(MarkPrice(market, sym).Mul(decimal.NewFromInt(pos.Quantity)))
		basis = basis.Add(pos.TotalInvested)
	}
	return Valuation{
		Cash:          p.Cash,
		Holdings:      holdings,
		Total:         p.Cash.Add(holdings),
		CostBasis:     basis,
		UnrealizedPnL: holdings.Sub(basis),
		RealizedPnL:   p.RealizedPnL,
	}
}

// Positions returns every open position marked to market, sorted by symbol.
func Positions(p *model.Portfolio, market *model.MarketState) []PositionView {
	out := make([]PositionView, 0, len(p.Positions))
	for sym, pos := range p.Positions {
		price := MarkPrice(market, sym)
		mv := price.Mul(decimal.NewFromInt(pos.Quantity))
		sector := ""
		if a, ok := market.Assets[sym]; ok {
			sector = a.Sector
		}
		out = append(out, PositionView{
			Symbol:        sym,
			Sector:        sector,
			Quantity:      pos.Quantity,
			AvgCost:       pos.AvgCost,
			TotalInvested: pos.TotalInvested,
			Price:         price,
			MarketValue:   mv,
			UnrealizedPnL: mv.Sub(pos.TotalInvested),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// RecordEquity appends the current total value to the equity history and
// refreshes the Sharpe ratio and max drawdown. It returns the recorded total.
func (l *Ledger) RecordEquity(p *model.Portfolio, market *model.MarketState, now time.Time) decimal.Decimal {
	total := Value(p, market).Total
	p.EquityHistory.Push(model.EquityPoint{Value: total, Timestamp: now})

	m := l.calc.Compute(analytics.FromEquity(p.EquityHistory.Slice()))
	p.Metrics.SharpeRatio = m.SharpeRatio
	p.Metrics.MaxDrawdown = m.MaxDrawdown
	return total
}
