// Package events generates, scopes and expires the news shocks that
// perturb the price process.
//
// Expiry is tick based and has a single removal path: Prune runs once at
// the end of every tick. An event created at tick c with duration D
// contributes on ticks c+1..c+D and is removed after tick c+D.
package events

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/simrand"
)

// Config tunes event generation.
type Config struct {
	SpawnProbability  float64 // chance per MaybeSpawn call
	PositiveSkew      float64 // chance a spawned event is positive
	SectorProbability float64 // chance the scope is a sector rather than a symbol
	MinImpact         float64 // per-tick log drift magnitude
	MaxImpact         float64
	MinDuration       int // ticks
	MaxDuration       int
	TickInterval      time.Duration // used only for the display ExpiresAt
}

// DefaultConfig returns the game tuning.
func DefaultConfig() Config {
	return Config{
		SpawnProbability:  0.3,
		PositiveSkew:      0.55,
		SectorProbability: 0.4,
		MinImpact:         0.001,
		MaxImpact:         0.005,
		MinDuration:       20,
		MaxDuration:       60,
		TickInterval:      time.Second,
	}
}

var positiveHeadlines = []string{
	"{target} beats earnings expectations",
	"Analysts upgrade {target} to strong buy",
	"{target} announces record quarterly revenue",
	"Regulators approve expansion plans for {target}",
	"{target} unveils breakthrough product line",
}

var negativeHeadlines = []string{
	"{target} misses earnings estimates",
	"Regulatory probe announced into {target}",
	"{target} hit by supply chain disruption",
	"Analysts downgrade {target} on weak guidance",
	"{target} faces major product recall",
}

// Scheduler spawns events from an injected random source.
type Scheduler struct {
	cfg Config
	rng simrand.Source
	ids io.Reader
}

// NewScheduler creates a scheduler. Invalid ranges are normalized so the
// scheduler is total over any config.
func NewScheduler(cfg Config, rng simrand.Source) *Scheduler {
	if cfg.MaxImpact < cfg.MinImpact {
		cfg.MaxImpact = cfg.MinImpact
	}
	if cfg.MinDuration < 1 {
		cfg.MinDuration = 1
	}
	if cfg.MaxDuration < cfg.MinDuration {
		cfg.MaxDuration = cfg.MinDuration
	}
	return &Scheduler{cfg: cfg, rng: rng, ids: simrand.NewReader(rng)}
}

// MaybeSpawn rolls for a new event at the given tick. When one is created it
// is returned and the caller prepends it to the market's event list (see
// Add). Returns nil when the roll fails or the market has no assets.
func (s *Scheduler) MaybeSpawn(now time.Time, tick int64, market *model.MarketState) *model.MarketEvent {
	if len(market.Assets) == 0 || !simrand.Chance(s.rng, s.cfg.SpawnProbability) {
		return nil
	}

	positive := simrand.Chance(s.rng, s.cfg.PositiveSkew)
	headlines := negativeHeadlines
	sign := -1.0
	if positive {
		headlines = positiveHeadlines
		sign = 1.0
	}
	template := headlines[s.rng.IntN(len(headlines))]

	var scope model.EventScope
	if simrand.Chance(s.rng, s.cfg.SectorProbability) {
		sectors := sortedSectors(market)
		scope = model.SectorScope(sectors[s.rng.IntN(len(sectors))])
	} else {
		symbols := market.Symbols()
		scope = model.SymbolScope(symbols[s.rng.IntN(len(symbols))])
	}

	target := scope.Target()
	if scope.Kind == model.ScopeSector {
		target += " sector"
	}

	duration := simrand.IntBetween(s.rng, s.cfg.MinDuration, s.cfg.MaxDuration)
	impact := sign * simrand.Between(s.rng, s.cfg.MinImpact, s.cfg.MaxImpact)
	id, err := uuid.NewRandomFromReader(s.ids)
	if err != nil {
		id = uuid.New()
	}
	return &model.MarketEvent{
		ID:          id.String(),
		Impact:      impact,
		Scope:       scope,
		Headline:    strings.ReplaceAll(template, "{target}", target),
		Positive:    positive,
		CreatedTick: tick,
		ExpiresTick: tick + int64(duration),
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(duration) * s.cfg.TickInterval),
	}
}

// Add prepends e so the list stays newest first.
func Add(list []model.MarketEvent, e model.MarketEvent) []model.MarketEvent {
	out := make([]model.MarketEvent, 0, len(list)+1)
	out = append(out, e)
	return append(out, list...)
}

// ImpactFor sums the impact of every event active at tick whose scope
// covers the asset.
func ImpactFor(a *model.Asset, list []model.MarketEvent, tick int64) float64 {
	var sum float64
	for _, e := range list {
		if e.ActiveAt(tick) && e.Scope.Includes(a) {
			sum += e.Impact
		}
	}
	return sum
}

// Prune removes events whose last contributing tick is at or before tick.
// It returns the surviving events (order preserved) and the removed ones.
func Prune(list []model.MarketEvent, tick int64) (kept, expired []model.MarketEvent) {
	kept = list[:0:0]
	for _, e := range list {
		if e.ExpiresTick <= tick {
			expired = append(expired, e)
			continue
		}
		kept = append(kept, e)
	}
	return kept, expired
}

// Recent returns at most n newest events for display. The active list
// itself is never truncated.
func Recent(list []model.MarketEvent, n int) []model.MarketEvent {
	if n < 0 || n > len(list) {
		n = len(list)
	}
	return append([]model.MarketEvent{}, list[:n]...)
}

// SectorMembers lists the symbols currently tagged with sector, sorted.
func SectorMembers(market *model.MarketState, sector string) []string {
	var out []string
	for _, sym := range market.Symbols() {
		if market.Assets[sym].Sector == sector {
			out = append(out, sym)
		}
	}
	return out
}
