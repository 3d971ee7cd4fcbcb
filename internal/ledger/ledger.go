// Package ledger validates and applies simulated buy/sell orders against a
// cash-and-positions portfolio and maintains realized P&L, the trade log
// and performance metrics.
//
// All monetary values use shopspring/decimal. Every order is staged on
// local copies and committed in one step, so a rejected order leaves the
// portfolio and trade log untouched.
package ledger

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/analytics"
	"github.com/atmx/paper-engine/internal/model"
)

var (
	// ErrInvalidQuantity is returned for non-positive or fractional quantities.
	ErrInvalidQuantity = errors.New("ledger: quantity must be a positive whole number")

	// ErrUnknownAsset is returned when the symbol is not in the market.
	ErrUnknownAsset = errors.New("ledger: unknown asset")

	// ErrInvalidPrice is returned for limit/stop orders without a positive price.
	ErrInvalidPrice = errors.New("ledger: limit and stop orders need a positive price")

	// ErrInsufficientFunds is returned when a buy costs more than available cash.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInsufficientShares is returned when selling more than is held.
	ErrInsufficientShares = errors.New("ledger: insufficient shares")
)

// DefaultTradeLogCapacity bounds the in-memory trade log.
const DefaultTradeLogCapacity = 100

// OrderRequest is a user order. Price is required for limit and stop
// orders and ignored for market orders.
type OrderRequest struct {
	Side     model.Side
	Symbol   string
	Quantity decimal.Decimal
	Type     model.OrderType
	Price    *decimal.Decimal
}

// Ledger executes orders and keeps the bounded trade log.
type Ledger struct {
	logCap int
	trades []model.Trade
	calc   *analytics.Calculator
	ids    io.Reader // nil uses crypto/rand
}

// New creates a ledger. trades seeds the log when resuming a session.
func New(logCapacity int, trades []model.Trade, calc *analytics.Calculator) *Ledger {
	if logCapacity < 1 {
		logCapacity = DefaultTradeLogCapacity
	}
	if calc == nil {
		calc = analytics.NewCalculator(0)
	}
	l := &Ledger{logCap: logCapacity, calc: calc}
	for _, t := range trades {
		l.appendTrade(t)
	}
	return l
}

// SetIDSource makes trade IDs draw from r, so a seeded session replays
// the same IDs.
func (l *Ledger) SetIDSource(r io.Reader) {
	l.ids = r
}

func (l *Ledger) newID() string {
	if l.ids != nil {
		if id, err := uuid.NewRandomFromReader(l.ids); err == nil {
			return id.String()
		}
	}
	return uuid.NewString()
}

// Trades returns a copy of the trade log, oldest first.
func (l *Ledger) Trades() []model.Trade {
	return append([]model.Trade{}, l.trades...)
}

// Execute validates req and, if accepted, applies it to p. The returned
// trade is already appended to the log.
func (l *Ledger) Execute(p *model.Portfolio, market *model.MarketState, req OrderRequest, now time.Time) (model.Trade, error) {
	qty, err := wholeQuantity(req.Quantity)
	if err != nil {
		return model.Trade{}, err
	}

	asset, ok := market.Assets[req.Symbol]
	if !ok {
		return model.Trade{}, fmt.Errorf("%w: %s", ErrUnknownAsset, req.Symbol)
	}

	fill, err := FillPrice(asset, req)
	if err != nil {
		return model.Trade{}, err
	}

	var trade model.Trade
	switch req.Side {
	case model.SideBuy:
		trade, err = l.buy(p, req, qty, fill, now)
	case model.SideSell:
		trade, err = l.sell(p, req, qty, fill, now)
	default:
		return model.Trade{}, fmt.Errorf("ledger: unsupported side %q", req.Side)
	}
	if err != nil {
		return model.Trade{}, err
	}

	l.appendTrade(trade)
	return trade, nil
}

func (l *Ledger) buy(p *model.Portfolio, req OrderRequest, qty int64, fill decimal.Decimal, now time.Time) (model.Trade, error) {
	q := decimal.NewFromInt(qty)
	cost := fill.Mul(q)
	if cost.GreaterThan(p.Cash) {
		return model.Trade{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, cost.StringFixed(2), p.Cash.StringFixed(2))
	}

	next := model.Position{Symbol: req.Symbol}
	if cur, ok := p.Positions[req.Symbol]; ok {
		next = *cur
	}
	oldQty := decimal.NewFromInt(next.Quantity)
	newQty := next.Quantity + qty
	next.AvgCost = next.AvgCost.Mul(oldQty).Add(cost).Div(decimal.NewFromInt(newQty))
	next.Quantity = newQty
	next.TotalInvested = next.AvgCost.Mul(decimal.NewFromInt(newQty))

	// Commit.
	p.Cash = p.Cash.Sub(cost)
	p.Positions[req.Symbol] = &next

	return model.Trade{
		ID:          l.newID(),
		Timestamp:   now,
		Symbol:      req.Symbol,
		Side:        model.SideBuy,
		OrderType:   req.Type,
		Quantity:    qty,
		Price:       fill,
		CashDelta:   cost.Neg(),
		RealizedPnL: decimal.Zero,
	}, nil
}

func (l *Ledger) sell(p *model.Portfolio, req OrderRequest, qty int64, fill decimal.Decimal, now time.Time) (model.Trade, error) {
	cur, ok := p.Positions[req.Symbol]
	if !ok || cur.Quantity < qty {
		held := int64(0)
		if ok {
			held = cur.Quantity
		}
		return model.Trade{}, fmt.Errorf("%w: hold %d %s, want to sell %d", ErrInsufficientShares, held, req.Symbol, qty)
	}

	q := decimal.NewFromInt(qty)
	proceeds := fill.Mul(q)
	profit := fill.Sub(cur.AvgCost).Mul(q)

	next := *cur
	next.Quantity -= qty
	next.TotalInvested = next.AvgCost.Mul(decimal.NewFromInt(next.Quantity))
	metrics := recordSell(p.Metrics, profit)

	// Commit.
	p.Cash = p.Cash.Add(proceeds)
	if next.Quantity == 0 {
		delete(p.Positions, req.Symbol)
	} else {
		p.Positions[req.Symbol] = &next
	}
	p.RealizedPnL = p.RealizedPnL.Add(profit)
	p.Metrics = metrics

	return model.Trade{
		ID:          l.newID(),
		Timestamp:   now,
		Symbol:      req.Symbol,
		Side:        model.SideSell,
		OrderType:   req.Type,
		Quantity:    qty,
		Price:       fill,
		CashDelta:   proceeds,
		RealizedPnL: profit,
	}, nil
}

// recordSell folds one realized result into the metrics.
func recordSell(m model.PerformanceMetrics, profit decimal.Decimal) model.PerformanceMetrics {
	m.TotalTrades++
	m.TotalProfit = m.TotalProfit.Add(profit)
	if m.TotalTrades == 1 {
		m.BestTrade, m.WorstTrade = profit, profit
	} else {
		m.BestTrade = decimal.Max(m.BestTrade, profit)
		m.WorstTrade = decimal.Min(m.WorstTrade, profit)
	}
	win := 0.0
	if profit.IsPositive() {
		win = 1
	}
	n := float64(m.TotalTrades)
	m.WinRate = (m.WinRate*(n-1) + win) / n
	return m
}

func (l *Ledger) appendTrade(t model.Trade) {
	l.trades = append(l.trades, t)
	if over := len(l.trades) - l.logCap; over > 0 {
		l.trades = append([]model.Trade(nil), l.trades[over:]...)
	}
}

func wholeQuantity(q decimal.Decimal) (int64, error) {
	if !q.IsPositive() || !q.IsInteger() {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidQuantity, q.String())
	}
	if !q.LessThanOrEqual(decimal.NewFromInt(1 << 53)) {
		return 0, fmt.Errorf("%w: %s is too large", ErrInvalidQuantity, q.String())
	}
	return q.IntPart(), nil
}

// FillPrice picks the execution price. Market orders take the quote;
// limit and stop orders fill immediately at the user price.
func FillPrice(a *model.Asset, req OrderRequest) (decimal.Decimal, error) {
	switch req.Type {
	case model.OrderMarket, "":
		quote := a.Ask
		if req.Side == model.SideSell {
			quote = a.Bid
		}
		if quote <= 0 {
			quote = a.Price
		}
		return decimal.NewFromFloat(quote).Round(model.PriceScale), nil
	case model.OrderLimit, model.OrderStop:
		if req.Price == nil || !req.Price.IsPositive() {
			return decimal.Zero, ErrInvalidPrice
		}
		return *req.Price, nil
	default:
		return decimal.Zero, fmt.Errorf("ledger: unsupported order type %q", req.Type)
	}
}
