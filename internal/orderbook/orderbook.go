// Package orderbook derives a synthetic depth ladder around the current
// price. It is display data only: no orders rest here and nothing is
// matched against it. Every Build call produces a fresh ladder.
package orderbook

import (
	"time"

	"github.com/atmx/paper-engine/internal/simrand"
)

// Level is a single price and size rung.
type Level struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"`
}

// Depth is a full synthetic snapshot for one symbol. Bids are sorted
// best (highest) first, asks best (lowest) first.
type Depth struct {
	Symbol    string    `json:"symbol"`
	Bids      []Level   `json:"bids"`
	Asks      []Level   `json:"asks"`
	Spread    float64   `json:"spread"`
	Timestamp time.Time `json:"timestamp"`
}

// BestBid returns the top bid, or zero when the bid side is empty.
func (d Depth) BestBid() float64 {
	if len(d.Bids) == 0 {
		return 0
	}
	return d.Bids[0].Price
}

// BestAsk returns the top ask, or zero when the ask side is empty.
func (d Depth) BestAsk() float64 {
	if len(d.Asks) == 0 {
		return 0
	}
	return d.Asks[0].Price
}

// Clone returns a copy that shares no slices with d.
func (d Depth) Clone() Depth {
	d.Bids = append([]Level(nil), d.Bids...)
	d.Asks = append([]Level(nil), d.Asks...)
	return d
}

// Config shapes the ladder.
type Config struct {
	SpreadFraction float64 // level step as a fraction of price
	Levels         int     // rungs per side
	MinSize        int64
	MaxSize        int64
}

// DefaultConfig returns the ladder used by the game.
func DefaultConfig() Config {
	return Config{
		SpreadFraction: 0.001,
		Levels:         10,
		MinSize:        100,
		MaxSize:        1000,
	}
}

// Builder generates depth snapshots from an injected random source.
type Builder struct {
	cfg Config
	rng simrand.Source
}

// NewBuilder creates a builder. Non-positive settings fall back to the
// defaults and an inverted size range is collapsed to MinSize.
func NewBuilder(cfg Config, rng simrand.Source) *Builder {
	def := DefaultConfig()
	if cfg.SpreadFraction <= 0 {
		cfg.SpreadFraction = def.SpreadFraction
	}
	if cfg.Levels < 1 {
		cfg.Levels = def.Levels
	}
	if cfg.MinSize < 1 {
		cfg.MinSize = def.MinSize
	}
	if cfg.MaxSize < cfg.MinSize {
		cfg.MaxSize = cfg.MinSize
	}
	return &Builder{cfg: cfg, rng: rng}
}

// Config returns the normalized configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build returns a ladder of Levels rungs each side of price, rung i sitting
// i × spread away. Bid rungs that would reach zero or below are omitted, so
// a very low price can yield fewer bids than asks. A non-positive price
// yields an empty book.
func (b *Builder) Build(symbol string, price float64, now time.Time) Depth {
	d := Depth{Symbol: symbol, Timestamp: now, Bids: []Level{}, Asks: []Level{}}
	if price <= 0 {
		return d
	}

	spread := b.cfg.SpreadFraction * price
	d.Spread = spread
	for i := 1; i <= b.cfg.Levels; i++ {
		step := float64(i) * spread
		if bid := price - step; bid > 0 {
			d.Bids = append(d.Bids, Level{Price: bid, Size: b.size()})
		}
		d.Asks = append(d.Asks, Level{Price: price + step, Size: b.size()})
	}
	return d
}

func (b *Builder) size() int64 {
	return int64(simrand.IntBetween(b.rng, int(b.cfg.MinSize), int(b.cfg.MaxSize)))
}
