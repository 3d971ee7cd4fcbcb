package config

import (
	"time"

	"github.com/atmx/paper-engine/internal/universe"
)

// Default values for optional configuration fields.
const (
	DefaultPort             = "8080"
	DefaultLogLevel         = "info"
	DefaultSessionID        = "default"
	DefaultStartingCash     = "10000"
	DefaultTradeLogCapacity = 100
	DefaultEquityCapacity   = 500
	DefaultTickInterval     = 1 * time.Second
	DefaultEventInterval    = 15 * time.Second
	DefaultBookInterval     = 2 * time.Second
	DefaultSaveInterval     = 30 * time.Second
	DefaultHistoryCapacity  = 390
	DefaultTradingDayTicks  = 78
	DefaultQuoteSpread      = 0.001
	DefaultSentimentWeight  = 0.0005
	DefaultSpawnProbability = 0.3
	DefaultPositiveSkew     = 0.55
	DefaultSectorChance     = 0.4
	DefaultMinImpact        = 0.001
	DefaultMaxImpact        = 0.005
	MaxEventImpact          = 0.1 // per-tick log drift ceiling for a single event
	DefaultMinDuration      = 20
	DefaultMaxDuration      = 60
	DefaultRecentEvents     = 10
	DefaultSpreadFraction   = 0.001
	DefaultBookLevels       = 10
	DefaultMinLevelSize     = 100
	DefaultMaxLevelSize     = 1000
	DefaultCacheTTL         = 30 * time.Second
)

// Default returns a configuration with every default applied and the
// built-in asset universe.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = DefaultLogLevel
	}

	// Session defaults
	if c.Session.ID == "" {
		c.Session.ID = DefaultSessionID
	}
	if c.Session.StartingCash == "" {
		c.Session.StartingCash = DefaultStartingCash
	}
	if c.Session.TradeLogCapacity == 0 {
		c.Session.TradeLogCapacity = DefaultTradeLogCapacity
	}
	if c.Session.EquityCapacity == 0 {
		c.Session.EquityCapacity = DefaultEquityCapacity
	}

	// Simulation defaults
	if c.Sim.TickInterval == 0 {
		c.Sim.TickInterval = DefaultTickInterval
	}
	if c.Sim.EventInterval == 0 {
		c.Sim.EventInterval = DefaultEventInterval
	}
	if c.Sim.BookInterval == 0 {
		c.Sim.BookInterval = DefaultBookInterval
	}
	if c.Sim.SaveInterval == 0 {
		c.Sim.SaveInterval = DefaultSaveInterval
	}
	if c.Sim.HistoryCapacity == 0 {
		c.Sim.HistoryCapacity = DefaultHistoryCapacity
	}
	if c.Sim.TradingDayTicks == 0 {
		c.Sim.TradingDayTicks = DefaultTradingDayTicks
	}
	setDefault(&c.Sim.QuoteSpread, DefaultQuoteSpread)
	setDefault(&c.Sim.SentimentWeight, DefaultSentimentWeight)

	// Event defaults
	setDefault(&c.Events.SpawnProbability, DefaultSpawnProbability)
	setDefault(&c.Events.PositiveSkew, DefaultPositiveSkew)
	setDefault(&c.Events.SectorProbability, DefaultSectorChance)
	if c.Events.MinImpact == 0 {
		c.Events.MinImpact = DefaultMinImpact
	}
	if c.Events.MaxImpact == 0 {
		c.Events.MaxImpact = DefaultMaxImpact
	}
	if c.Events.MinDuration == 0 {
		c.Events.MinDuration = DefaultMinDuration
	}
	if c.Events.MaxDuration == 0 {
		c.Events.MaxDuration = DefaultMaxDuration
	}
	if c.Events.RecentLimit == 0 {
		c.Events.RecentLimit = DefaultRecentEvents
	}

	// Book defaults
	if c.Book.SpreadFraction == 0 {
		c.Book.SpreadFraction = DefaultSpreadFraction
	}
	if c.Book.Levels == 0 {
		c.Book.Levels = DefaultBookLevels
	}
	if c.Book.MinSize == 0 {
		c.Book.MinSize = DefaultMinLevelSize
	}
	if c.Book.MaxSize == 0 {
		c.Book.MaxSize = DefaultMaxLevelSize
	}

	// Storage defaults
	if c.Storage.CacheTTL == 0 {
		c.Storage.CacheTTL = DefaultCacheTTL
	}

	if len(c.Assets) == 0 {
		c.Assets = universe.Default()
	}
}

// setDefault fills an unset optional field. An explicit zero is kept.
func setDefault(p **float64, v float64) {
	if *p == nil {
		*p = Float64(v)
	}
}
