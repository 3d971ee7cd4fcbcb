// Package pricing implements the per-asset stochastic price process.
//
// Each tick moves the price in log space:
//
//	newPrice = price * exp(drift + diffusion + eventImpact)
//
// where drift is a small base term plus a sentiment term, diffusion is
// volatility * sqrt(dt) * U[-1,1], and eventImpact is the damped sum of
// active news shocks. The result is clamped to [MinPrice, MaxPrice] so
// prices stay strictly positive and finite.
package pricing

import (
	"errors"
	"math"
	"time"

	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/simrand"
)

var (
	// ErrInvalidParams is returned when process parameters cannot produce
	// a well-formed price path.
	ErrInvalidParams = errors.New("pricing: invalid process parameters")

	// MinPrice is the floor applied after every step.
	MinPrice = 0.0001

	// MaxPrice is the ceiling applied after every step. It keeps prices
	// finite and within what decimal conversion at fill time accepts.
	MaxPrice = 1e9
)

// TradingDaysPerYear converts annualized volatility to per-tick volatility.
const TradingDaysPerYear = 252

// Params configures the process. Non-positive TradingDayTicks,
// ImpactDamping, BaseVolume and SentimentStep fall back to DefaultParams;
// a zero QuoteSpread means bid == ask == price.
type Params struct {
	BaseDrift       float64 // per-tick constant drift
	SentimentWeight float64 // drift per unit of sentiment
	ImpactDamping   float64 // multiplier on summed event impact
	QuoteSpread     float64 // full bid/ask spread as a fraction of price; negative means zero
	TradingDayTicks int     // ticks per simulated trading day (N)
	BaseVolume      int64   // mean synthetic volume per tick
	SentimentStep   float64 // max sentiment move per tick
}

// DefaultParams returns the tuning used by the game.
func DefaultParams() Params {
	return Params{
		BaseDrift:       0.00001,
		SentimentWeight: 0.0005,
		ImpactDamping:   0.5,
		QuoteSpread:     0.001,
		TradingDayTicks: 78,
		BaseVolume:      1000,
		SentimentStep:   0.05,
	}
}

// Process advances asset prices. It is stateless apart from its random
// source; all state lives on the assets passed in.
type Process struct {
	params Params
	dt     float64
	rng    simrand.Source
}

// NewProcess builds a process. A nil source is rejected.
func NewProcess(p Params, rng simrand.Source) (*Process, error) {
	if rng == nil {
		return nil, ErrInvalidParams
	}
	def := DefaultParams()
	if p.TradingDayTicks <= 0 {
		p.TradingDayTicks = def.TradingDayTicks
	}
	if p.ImpactDamping <= 0 {
		p.ImpactDamping = def.ImpactDamping
	}
	if p.QuoteSpread < 0 {
		p.QuoteSpread = 0
	}
	if p.BaseVolume <= 0 {
		p.BaseVolume = def.BaseVolume
	}
	if p.SentimentStep <= 0 {
		p.SentimentStep = def.SentimentStep
	}
	return &Process{
		params: p,
		dt:     1.0 / float64(TradingDaysPerYear*p.TradingDayTicks),
		rng:    rng,
	}, nil
}

// Params returns the effective parameters.
func (p *Process) Params() Params { return p.params }

// Seed initializes the derived fields of a freshly configured asset: one
// history sample at the current price, quotes, and a flat day range.
func (p *Process) Seed(a *model.Asset, now time.Time) {
	a.Price = clamp(a.Price, MinPrice, MaxPrice)
	a.History.Push(model.PricePoint{Price: a.Price, Volume: 0, Timestamp: now})
	p.refresh(a)
}

// Advance moves the asset one tick and updates every derived field.
// eventImpact is the raw sum of active event impacts for this asset.
func (p *Process) Advance(a *model.Asset, sentiment, eventImpact float64, now time.Time) float64 {
	drift := p.params.BaseDrift + p.params.SentimentWeight*sentiment
	diffusion := a.Volatility * math.Sqrt(p.dt) * simrand.Symmetric(p.rng)
	shock := eventImpact * p.params.ImpactDamping

	next := a.Price * math.Exp(drift+diffusion+shock)
	switch {
	case math.IsNaN(next) || next < MinPrice:
		next = MinPrice
	case next > MaxPrice:
		next = MaxPrice
	}
	a.Price = next

	a.History.Push(model.PricePoint{
		Price:     next,
		Volume:    p.volume(diffusion + shock),
		Timestamp: now,
	})
	p.refresh(a)
	return next
}

// SentimentStep performs one step of the bounded sentiment random walk.
func (p *Process) SentimentStep(current float64) float64 {
	next := current + simrand.Symmetric(p.rng)*p.params.SentimentStep
	return clamp(next, -1, 1)
}

// Quote returns bid and ask around price.
func (p *Process) Quote(price float64) (bid, ask float64) {
	half := price * p.params.QuoteSpread / 2
	return price - half, price + half
}

// refresh recomputes quotes, the day range and change fields from history.
func (p *Process) refresh(a *model.Asset) {
	a.Bid, a.Ask = p.Quote(a.Price)

	day := a.History.Tail(p.params.TradingDayTicks)
	hi, lo := a.Price, a.Price
	for _, pt := range day {
		hi = math.Max(hi, pt.Price)
		lo = math.Min(lo, pt.Price)
	}
	a.DayHigh, a.DayLow = hi, lo

	a.Change, a.ChangePercent = 0, 0
	if ref, ok := a.History.Back(p.params.TradingDayTicks); ok && ref.Price > 0 {
		a.Change = a.Price - ref.Price
		a.ChangePercent = a.Change / ref.Price * 100
	}
}

// volume draws a synthetic volume that grows with the size of the move.
func (p *Process) volume(logMove float64) int64 {
	base := float64(p.params.BaseVolume)
	v := base*(0.5+p.rng.Float64()) + base*math.Abs(logMove)*100
	return int64(v)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
