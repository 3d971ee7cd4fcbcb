// Package model defines the core domain types shared across the paper
// trading engine. Money (cash, cost basis, P&L, equity) uses
// shopspring/decimal; simulated prices are float64 and are converted to
// decimal when an order fills.
package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/series"
)

// PriceScale is the number of decimal places fill prices are rounded to.
const PriceScale int32 = 4

// PricePoint is one sample of an asset's price history.
type PricePoint struct {
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Asset is a simulated instrument and its derived quote fields.
// Invariant: Price > 0 and Bid <= Price <= Ask.
type Asset struct {
	Symbol        string                     `json:"symbol"`
	Name          string                     `json:"name"`
	Sector        string                     `json:"sector"`
	Volatility    float64                    `json:"volatility"` // annualized
	Price         float64                    `json:"price"`
	History       *series.Window[PricePoint] `json:"history"`
	DayHigh       float64                    `json:"day_high"`
	DayLow        float64                    `json:"day_low"`
	Bid           float64                    `json:"bid"`
	Ask           float64                    `json:"ask"`
	Change        float64                    `json:"change"`
	ChangePercent float64                    `json:"change_percent"`
}

// Clone returns a deep copy of the asset.
func (a *Asset) Clone() *Asset {
	c := *a
	if a.History != nil {
		c.History = a.History.Clone()
	}
	return &c
}

// ScopeKind says whether an event targets one symbol or a whole sector.
type ScopeKind string

const (
	ScopeSymbol ScopeKind = "symbol"
	ScopeSector ScopeKind = "sector"
)

// EventScope targets either Symbol or Sector, never both.
type EventScope struct {
	Kind   ScopeKind `json:"kind"`
	Symbol string    `json:"symbol,omitempty"`
	Sector string    `json:"sector,omitempty"`
}

// SymbolScope scopes an event to a single asset.
func SymbolScope(symbol string) EventScope {
	return EventScope{Kind: ScopeSymbol, Symbol: symbol}
}

// SectorScope scopes an event to every asset tagged with sector.
func SectorScope(sector string) EventScope {
	return EventScope{Kind: ScopeSector, Sector: sector}
}

// Includes reports whether the scope covers the asset.
func (s EventScope) Includes(a *Asset) bool {
	switch s.Kind {
	case ScopeSymbol:
		return a.Symbol == s.Symbol
	case ScopeSector:
		return a.Sector == s.Sector
	default:
		return false
	}
}

// Target returns the symbol or sector name the scope points at.
func (s EventScope) Target() string {
	if s.Kind == ScopeSector {
		return s.Sector
	}
	return s.Symbol
}

// MarketEvent is a transient news shock. It contributes Impact to the drift
// of every asset in Scope on ticks CreatedTick+1 through ExpiresTick.
type MarketEvent struct {
	ID          string     `json:"id"`
	Impact      float64    `json:"impact"`
	Scope       EventScope `json:"scope"`
	Headline    string     `json:"headline"`
	Positive    bool       `json:"positive"`
	CreatedTick int64      `json:"created_tick"`
	ExpiresTick int64      `json:"expires_tick"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

// ActiveAt reports whether the event still contributes on the given tick.
func (e MarketEvent) ActiveAt(tick int64) bool {
	return tick > e.CreatedTick && tick <= e.ExpiresTick
}

// MarketState is the single authoritative copy of the simulated market.
type MarketState struct {
	Sentiment float64           `json:"sentiment"` // [-1, 1]
	Assets    map[string]*Asset `json:"assets"`
	Events    []MarketEvent     `json:"events"` // newest first
	Tick      int64             `json:"tick"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Clone returns a deep copy of the market.
func (m *MarketState) Clone() *MarketState {
	c := &MarketState{
		Sentiment: m.Sentiment,
		Assets:    make(map[string]*Asset, len(m.Assets)),
		Events:    append([]MarketEvent(nil), m.Events...),
		Tick:      m.Tick,
		UpdatedAt: m.UpdatedAt,
	}
	for sym, a := range m.Assets {
		c.Assets[sym] = a.Clone()
	}
	return c
}

// Sectors returns the distinct sector tags present, in no particular order.
func (m *MarketState) Sectors() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range m.Assets {
		if !seen[a.Sector] {
			seen[a.Sector] = true
			out = append(out, a.Sector)
		}
	}
	return out
}

// Symbols returns every asset symbol in ascending order. Anything that
// consumes random draws per asset iterates in this order.
func (m *MarketState) Symbols() []string {
	out := make([]string, 0, len(m.Assets))
	for sym := range m.Assets {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide converts user input into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideBuy, SideSell:
		return Side(s), nil
	default:
		return "", fmt.Errorf("model: unknown side %q", s)
	}
}

// OrderType selects how the fill price is determined.
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
	OrderStop   OrderType = "stop"
)

// ParseOrderType converts user input into an OrderType. Empty input means
// a market order.
func ParseOrderType(s string) (OrderType, error) {
	if s == "" {
		return OrderMarket, nil
	}
	switch OrderType(s) {
	case OrderMarket, OrderLimit, OrderStop:
		return OrderType(s), nil
	default:
		return "", fmt.Errorf("model: unknown order type %q", s)
	}
}

// Position is an open holding. Positions with zero quantity are deleted,
// never stored. Invariant: TotalInvested == AvgCost × Quantity.
type Position struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	TotalInvested decimal.Decimal `json:"total_invested"`
}

// EquityPoint is one sample of total portfolio value.
type EquityPoint struct {
	Value     decimal.Decimal `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

// PerformanceMetrics summarizes realized trading results and the equity
// curve. Only sells count toward TotalTrades and WinRate.
type PerformanceMetrics struct {
	TotalTrades int             `json:"total_trades"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	BestTrade   decimal.Decimal `json:"best_trade"`
	WorstTrade  decimal.Decimal `json:"worst_trade"`
	WinRate     float64         `json:"win_rate"`
	SharpeRatio float64         `json:"sharpe_ratio"`
	MaxDrawdown float64         `json:"max_drawdown"`
}

// Portfolio is the cash-and-positions ledger of one session.
type Portfolio struct {
	Cash          decimal.Decimal             `json:"cash"`
	Positions     map[string]*Position        `json:"positions"`
	RealizedPnL   decimal.Decimal             `json:"realized_pnl"`
	EquityHistory *series.Window[EquityPoint] `json:"equity_history"`
	Metrics       PerformanceMetrics          `json:"metrics"`
}

// NewPortfolio returns an empty portfolio holding cash.
func NewPortfolio(cash decimal.Decimal, equityCapacity int) *Portfolio {
	return &Portfolio{
		Cash:          cash,
		Positions:     make(map[string]*Position),
		RealizedPnL:   decimal.Zero,
		EquityHistory: series.NewWindow[EquityPoint](equityCapacity),
	}
}

// Clone returns a deep copy of the portfolio.
func (p *Portfolio) Clone() *Portfolio {
	c := *p
	c.Positions = make(map[string]*Position, len(p.Positions))
	for sym, pos := range p.Positions {
		cp := *pos
		c.Positions[sym] = &cp
	}
	if p.EquityHistory != nil {
		c.EquityHistory = p.EquityHistory.Clone()
	}
	return &c
}

// Trade is an immutable record of an executed order.
type Trade struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	OrderType   OrderType       `json:"order_type"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	CashDelta   decimal.Decimal `json:"cash_delta"`   // negative for buys
	RealizedPnL decimal.Decimal `json:"realized_pnl"` // zero for buys
}

// Progression is the mission state of a session. Level starts at 1 and
// Badges only ever grow.
type Progression struct {
	Level  int      `json:"level"`
	Badges []string `json:"badges"`
}

// NewProgression returns the starting progression.
func NewProgression() *Progression {
	return &Progression{Level: 1, Badges: []string{}}
}

// HasBadge reports whether badge was already earned.
func (p *Progression) HasBadge(badge string) bool {
	for _, b := range p.Badges {
		if b == badge {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (p *Progression) Clone() *Progression {
	return &Progression{Level: p.Level, Badges: append([]string{}, p.Badges...)}
}

// SnapshotVersion is bumped when the snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is the plain state exchanged with persistence: everything
// needed to resume a session.
type Snapshot struct {
	Version     int          `json:"version"`
	SessionID   string       `json:"session_id"`
	Market      *MarketState `json:"market"`
	Portfolio   *Portfolio   `json:"portfolio"`
	Progression *Progression `json:"progression"`
	Trades      []Trade      `json:"trades"`
	SavedAt     time.Time    `json:"saved_at"`
}
