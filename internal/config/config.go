// Package config loads engine settings from an optional YAML file, a .env
// file and the process environment, in that order of precedence (later
// wins).
package config

import (
	"time"

	"github.com/atmx/paper-engine/internal/universe"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Session SessionConfig  `yaml:"session"`
	Sim     SimConfig      `yaml:"sim"`
	Events  EventsConfig   `yaml:"events"`
	Book    BookConfig     `yaml:"book"`
	Storage StorageConfig  `yaml:"storage"`
	Assets  []universe.Def `yaml:"assets"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// SessionConfig identifies the game session and its bankroll.
type SessionConfig struct {
	ID               string  `yaml:"id"`
	StartingCash     string  `yaml:"starting_cash"` // decimal string
	TradeLogCapacity int     `yaml:"trade_log_capacity"`
	EquityCapacity   int     `yaml:"equity_capacity"`
	MaxSectorWeight  float64 `yaml:"max_sector_weight"` // 0 disables the cap
}

// SimConfig drives the scheduler and the price process.
type SimConfig struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	EventInterval   time.Duration `yaml:"event_interval"`
	BookInterval    time.Duration `yaml:"book_interval"`
	SaveInterval    time.Duration `yaml:"save_interval"`
	HistoryCapacity int           `yaml:"history_capacity"`
	TradingDayTicks int           `yaml:"trading_day_ticks"`
	QuoteSpread     *float64      `yaml:"quote_spread"` // nil takes the default; 0 is a valid setting
	SentimentWeight *float64      `yaml:"sentiment_weight"`
	Seed            uint64        `yaml:"seed"` // 0 picks a time-based seed
}

// EventsConfig tunes news generation.
type EventsConfig struct {
	SpawnProbability  *float64 `yaml:"spawn_probability"`
	PositiveSkew      *float64 `yaml:"positive_skew"`
	SectorProbability *float64 `yaml:"sector_probability"`
	MinImpact         float64  `yaml:"min_impact"`
	MaxImpact         float64  `yaml:"max_impact"`
	MinDuration       int      `yaml:"min_duration"`
	MaxDuration       int      `yaml:"max_duration"`
	RecentLimit       int      `yaml:"recent_limit"`
}

// BookConfig shapes the synthetic depth ladder.
type BookConfig struct {
	SpreadFraction float64 `yaml:"spread_fraction"`
	Levels         int     `yaml:"levels"`
	MinSize        int64   `yaml:"min_size"`
	MaxSize        int64   `yaml:"max_size"`
}

// StorageConfig selects persistence backends. Empty URLs fall back to the
// in-memory store.
type StorageConfig struct {
	DatabaseURL string        `yaml:"database_url"`
	RedisURL    string        `yaml:"redis_url"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// Float64 returns a pointer to v, for the optional fields where zero is a
// meaningful setting.
func Float64(v float64) *float64 { return &v }

// Float64Value dereferences p, returning 0 for nil.
func Float64Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
