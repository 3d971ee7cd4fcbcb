package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/universe"
)

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if _, err := ParseLevel(c.Server.LogLevel); err != nil {
		return err
	}

	if c.Session.ID == "" {
		return errors.New("session.id is required")
	}
	cash, err := decimal.NewFromString(c.Session.StartingCash)
	if err != nil {
		return fmt.Errorf("session.starting_cash: %w", err)
	}
	if !cash.IsPositive() {
		return fmt.Errorf("session.starting_cash must be positive, got %s", cash)
	}
	if c.Session.TradeLogCapacity < 1 {
		return errors.New("session.trade_log_capacity must be >= 1")
	}
	if c.Session.EquityCapacity < 2 {
		return errors.New("session.equity_capacity must be >= 2")
	}
	if c.Session.MaxSectorWeight < 0 || c.Session.MaxSectorWeight > 1 {
		return fmt.Errorf("session.max_sector_weight must be in [0, 1], got %g", c.Session.MaxSectorWeight)
	}

	if c.Sim.TickInterval <= 0 || c.Sim.EventInterval <= 0 || c.Sim.BookInterval <= 0 || c.Sim.SaveInterval <= 0 {
		return errors.New("sim intervals must be positive")
	}
	if c.Sim.HistoryCapacity < 2 {
		return errors.New("sim.history_capacity must be >= 2")
	}
	if c.Sim.TradingDayTicks < 1 {
		return errors.New("sim.trading_day_ticks must be >= 1")
	}
	if c.Sim.QuoteSpread == nil || c.Sim.SentimentWeight == nil {
		return errors.New("sim.quote_spread and sim.sentiment_weight are required")
	}
	if *c.Sim.QuoteSpread < 0 {
		return fmt.Errorf("sim.quote_spread must be >= 0, got %g", *c.Sim.QuoteSpread)
	}

	if err := checkUnit("events.spawn_probability", c.Events.SpawnProbability); err != nil {
		return err
	}
	if err := checkUnit("events.positive_skew", c.Events.PositiveSkew); err != nil {
		return err
	}
	if err := checkUnit("events.sector_probability", c.Events.SectorProbability); err != nil {
		return err
	}
	if c.Events.MinImpact < 0 || c.Events.MaxImpact < c.Events.MinImpact {
		return errors.New("events impact range is invalid")
	}
	if c.Events.MaxImpact > MaxEventImpact {
		return fmt.Errorf("events.max_impact must be <= %g, got %g", MaxEventImpact, c.Events.MaxImpact)
	}
	if c.Events.MinDuration < 1 || c.Events.MaxDuration < c.Events.MinDuration {
		return errors.New("events duration range is invalid")
	}

	if c.Book.Levels < 1 {
		return errors.New("book.levels must be >= 1")
	}
	if c.Book.MinSize < 1 || c.Book.MaxSize < c.Book.MinSize {
		return errors.New("book size range is invalid")
	}

	if err := universe.Validate(c.Assets); err != nil {
		return fmt.Errorf("assets: %w", err)
	}
	return nil
}

// checkUnit requires a set probability in [0, 1].
func checkUnit(name string, p *float64) error {
	if p == nil {
		return fmt.Errorf("%s is required", name)
	}
	if *p < 0 || *p > 1 {
		return fmt.Errorf("%s must be in [0, 1], got %g", name, *p)
	}
	return nil
}

// StartingCash returns the parsed starting balance. Call after Validate.
func (c *Config) StartingCash() decimal.Decimal {
	cash, err := decimal.NewFromString(c.Session.StartingCash)
	if err != nil {
		return decimal.Zero
	}
	return cash
}

// ParseLevel maps a log level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("server.log_level %q is not one of debug, info, warn, error", s)
	}
}
