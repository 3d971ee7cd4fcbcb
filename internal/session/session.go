// Package session owns one game: the simulated market, the player's
// portfolio and progression, and the HTTP and WebSocket surfaces over them.
//
// A single mutex serializes every mutation (ticks, event checks, book
// refreshes and orders), so an order always observes a fully applied tick.
// No I/O happens under the lock; persistence works on snapshot copies.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/analytics"
	"github.com/atmx/paper-engine/internal/config"
	"github.com/atmx/paper-engine/internal/events"
	"github.com/atmx/paper-engine/internal/exposure"
	"github.com/atmx/paper-engine/internal/ledger"
	"github.com/atmx/paper-engine/internal/mission"
	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/orderbook"
	"github.com/atmx/paper-engine/internal/pricing"
	"github.com/atmx/paper-engine/internal/series"
	"github.com/atmx/paper-engine/internal/simrand"
	"github.com/atmx/paper-engine/internal/universe"
)

var (
	// ErrUnknownSymbol is returned by read views for symbols not in the market.
	ErrUnknownSymbol = errors.New("session: unknown symbol")

	// ErrSnapshotVersion is returned when a snapshot was written by a newer engine.
	ErrSnapshotVersion = errors.New("session: unsupported snapshot version")
)

// The sector cap only applies once holdings reach a quarter of the
// starting cash, so opening positions are never rejected.
const sectorLimitFloorDivisor = 4

// Options configures a session.
type Options struct {
	ID               string
	StartingCash     decimal.Decimal
	Assets           []universe.Def
	HistoryCapacity  int
	EquityCapacity   int
	TradeLogCapacity int
	RecentEvents     int
	MaxSectorWeight  float64
	Pricing          pricing.Params
	Events           events.Config
	Book             orderbook.Config
	Missions         []mission.Mission
}

// DefaultOptions returns a fresh session using the built-in universe and
// campaign.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

// OptionsFromConfig maps validated configuration onto session options.
func OptionsFromConfig(cfg *config.Config) Options {
	params := pricing.DefaultParams()
	params.QuoteSpread = config.Float64Value(cfg.Sim.QuoteSpread)
	params.SentimentWeight = config.Float64Value(cfg.Sim.SentimentWeight)
	params.TradingDayTicks = cfg.Sim.TradingDayTicks

	return Options{
		ID:               cfg.Session.ID,
		StartingCash:     cfg.StartingCash(),
		Assets:           cfg.Assets,
		HistoryCapacity:  cfg.Sim.HistoryCapacity,
		EquityCapacity:   cfg.Session.EquityCapacity,
		TradeLogCapacity: cfg.Session.TradeLogCapacity,
		RecentEvents:     cfg.Events.RecentLimit,
		MaxSectorWeight:  cfg.Session.MaxSectorWeight,
		Pricing:          params,
		Events: events.Config{
			SpawnProbability:  config.Float64Value(cfg.Events.SpawnProbability),
			PositiveSkew:      config.Float64Value(cfg.Events.PositiveSkew),
			SectorProbability: config.Float64Value(cfg.Events.SectorProbability),
			MinImpact:         cfg.Events.MinImpact,
			MaxImpact:         cfg.Events.MaxImpact,
			MinDuration:       cfg.Events.MinDuration,
			MaxDuration:       cfg.Events.MaxDuration,
			TickInterval:      cfg.Sim.TickInterval,
		},
		Book: orderbook.Config{
			SpreadFraction: cfg.Book.SpreadFraction,
			Levels:         cfg.Book.Levels,
			MinSize:        cfg.Book.MinSize,
			MaxSize:        cfg.Book.MaxSize,
		},
		Missions: mission.Default(),
	}
}

// Session is the single logical owner of one game's state.
type Session struct {
	mu sync.Mutex

	id           string
	startingCash decimal.Decimal
	recentEvents int

	market      *model.MarketState
	portfolio   *model.Portfolio
	progression *model.Progression
	books       map[string]orderbook.Depth

	ledger    *ledger.Ledger
	process   *pricing.Process
	scheduler *events.Scheduler
	builder   *orderbook.Builder
	tracker   *mission.Tracker
	limiter   *exposure.Limiter
}

// New creates a session. When snap is non-nil the session resumes from it;
// otherwise it starts from opts with full starting cash, no positions,
// level 1 and no badges. src drives every random draw.
func New(opts Options, snap *model.Snapshot, src simrand.Source, now time.Time) (*Session, error) {
	if src == nil {
		return nil, errors.New("session: nil random source")
	}
	if opts.ID == "" {
		return nil, errors.New("session: empty id")
	}
	if !opts.StartingCash.IsPositive() {
		return nil, fmt.Errorf("session: starting cash must be positive, got %s", opts.StartingCash)
	}

	process, err := pricing.NewProcess(opts.Pricing, src)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	missions := opts.Missions
	if missions == nil {
		missions = mission.Default()
	}
	calc := analytics.NewCalculator(float64(pricing.TradingDaysPerYear * process.Params().TradingDayTicks))

	s := &Session{
		id:           opts.ID,
		startingCash: opts.StartingCash,
		recentEvents: opts.RecentEvents,
		books:        make(map[string]orderbook.Depth),
		process:      process,
		scheduler:    events.NewScheduler(opts.Events, src),
		builder:      orderbook.NewBuilder(opts.Book, src),
		tracker:      mission.NewTracker(missions),
		limiter:      exposure.NewLimiter(opts.MaxSectorWeight, opts.StartingCash.Div(decimal.NewFromInt(sectorLimitFloorDivisor))),
	}

	assets, err := universe.Build(opts.Assets, opts.HistoryCapacity)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	if snap == nil {
		s.market = &model.MarketState{Assets: assets, Events: []model.MarketEvent{}, UpdatedAt: now}
		for _, sym := range s.market.Symbols() {
			process.Seed(s.market.Assets[sym], now)
		}
		s.portfolio = model.NewPortfolio(opts.StartingCash, opts.EquityCapacity)
		s.progression = model.NewProgression()
		s.ledger = ledger.New(opts.TradeLogCapacity, nil, calc)
		s.ledger.RecordEquity(s.portfolio, s.market, now)
	} else {
		if err := s.restore(opts, snap, assets, calc, now); err != nil {
			return nil, err
		}
	}
	s.ledger.SetIDSource(simrand.NewReader(src))

	s.refreshBooksLocked(now)
	return s, nil
}

// restore adopts a snapshot. Assets configured but missing from the
// snapshot are added fresh; assets in the snapshot are kept as saved.
func (s *Session) restore(opts Options, snap *model.Snapshot, fresh map[string]*model.Asset, calc *analytics.Calculator, now time.Time) error {
	if snap.Version > model.SnapshotVersion {
		return fmt.Errorf("%w: %d", ErrSnapshotVersion, snap.Version)
	}

	market := &model.MarketState{Assets: map[string]*model.Asset{}, Events: []model.MarketEvent{}, UpdatedAt: now}
	if snap.Market != nil {
		market = snap.Market.Clone()
		if market.Assets == nil {
			market.Assets = map[string]*model.Asset{}
		}
		if market.Events == nil {
			market.Events = []model.MarketEvent{}
		}
	}
	configured := &model.MarketState{Assets: fresh}
	for _, sym := range configured.Symbols() {
		a, ok := market.Assets[sym]
		if !ok {
			a = fresh[sym]
			market.Assets[sym] = a
			s.process.Seed(a, now)
			continue
		}
		if a.History == nil || a.History.Len() == 0 {
			a.History = series.NewWindow[model.PricePoint](opts.HistoryCapacity)
			s.process.Seed(a, now)
		}
	}
	s.market = market

	if snap.Portfolio != nil {
		s.portfolio = snap.Portfolio.Clone()
		if s.portfolio.Positions == nil {
			s.portfolio.Positions = make(map[string]*model.Position)
		}
		if s.portfolio.EquityHistory == nil {
			s.portfolio.EquityHistory = series.NewWindow[model.EquityPoint](opts.EquityCapacity)
		}
	} else {
		s.portfolio = model.NewPortfolio(opts.StartingCash, opts.EquityCapacity)
	}

	if snap.Progression != nil {
		s.progression = snap.Progression.Clone()
		if s.progression.Level < 1 {
			s.progression.Level = 1
		}
	} else {
		s.progression = model.NewProgression()
	}

	s.ledger = ledger.New(opts.TradeLogCapacity, snap.Trades, calc)
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// TickResult summarizes one applied tick.
type TickResult struct {
	Tick      int64               `json:"tick"`
	Sentiment float64             `json:"sentiment"`
	Quotes    []Quote             `json:"quotes"`
	Expired   []model.MarketEvent `json:"expired,omitempty"`
	Equity    decimal.Decimal     `json:"equity"`
	Mission   *mission.Result     `json:"mission,omitempty"`
	At        time.Time           `json:"at"`
}

// Quote is the per-asset price summary published after each tick.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	ChangePercent float64 `json:"change_percent"`
}

// Tick advances the simulation one step: sentiment walk, per-asset price
// update with the summed impact of active events, expiry of finished
// events, an equity sample, and mission evaluation.
func (s *Session) Tick(now time.Time) TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.market
	m.Tick++
	m.Sentiment = s.process.SentimentStep(m.Sentiment)

	symbols := m.Symbols()
	quotes := make([]Quote, 0, len(symbols))
	for _, sym := range symbols {
		a := m.Assets[sym]
		impact := events.ImpactFor(a, m.Events, m.Tick)
		s.process.Advance(a, m.Sentiment, impact, now)
		quotes = append(quotes, Quote{Symbol: sym, Price: a.Price, Bid: a.Bid, Ask: a.Ask, ChangePercent: a.ChangePercent})
	}

	var expired []model.MarketEvent
	m.Events, expired = events.Prune(m.Events, m.Tick)
	m.UpdatedAt = now

	equity := s.ledger.RecordEquity(s.portfolio, m, now)
	res := TickResult{
		Tick:      m.Tick,
		Sentiment: m.Sentiment,
		Quotes:    quotes,
		Expired:   expired,
		Equity:    equity,
		At:        now,
	}
	if r, ok := s.evaluateLocked(equity); ok {
		res.Mission = &r
	}
	return res
}

// EventNotice is a newly activated event and the symbols it moves.
type EventNotice struct {
	model.MarketEvent
	Affected []string `json:"affected"`
}

// CheckEvents rolls the event scheduler and, on success, activates the new
// event starting with the next tick.
func (s *Session) CheckEvents(now time.Time) *EventNotice {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.scheduler.MaybeSpawn(now, s.market.Tick, s.market)
	if e == nil {
		return nil
	}
	s.market.Events = events.Add(s.market.Events, *e)

	affected := []string{e.Scope.Symbol}
	if e.Scope.Kind == model.ScopeSector {
		affected = events.SectorMembers(s.market, e.Scope.Sector)
	}
	return &EventNotice{MarketEvent: *e, Affected: affected}
}

// RefreshBooks regenerates every synthetic depth ladder from current
// prices and returns how many were built.
func (s *Session) RefreshBooks(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshBooksLocked(now)
}

func (s *Session) refreshBooksLocked(now time.Time) int {
	books := make(map[string]orderbook.Depth, len(s.market.Assets))
	for _, sym := range s.market.Symbols() {
		books[sym] = s.builder.Build(sym, s.market.Assets[sym].Price, now)
	}
	s.books = books
	return len(books)
}

// OrderResult is an accepted order and its side effects.
type OrderResult struct {
	Trade   model.Trade     `json:"trade"`
	Equity  decimal.Decimal `json:"equity"`
	Cash    decimal.Decimal `json:"cash"`
	Mission *mission.Result `json:"mission,omitempty"`
}

// PlaceOrder executes req against current quotes. Rejected orders leave
// all state unchanged and return a ledger or exposure sentinel error.
func (s *Session) PlaceOrder(req ledger.OrderRequest, now time.Time) (OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkExposureLocked(req); err != nil {
		return OrderResult{}, err
	}

	trade, err := s.ledger.Execute(s.portfolio, s.market, req, now)
	if err != nil {
		return OrderResult{}, err
	}

	equity := ledger.Value(s.portfolio, s.market).Total
	res := OrderResult{Trade: trade, Equity: equity, Cash: s.portfolio.Cash}
	if r, ok := s.evaluateLocked(equity); ok {
		res.Mission = &r
	}
	return res, nil
}

// checkExposureLocked applies the sector cap to buys that would otherwise
// be valid. Invalid or unaffordable orders fall through so the ledger
// reports them first: funds take precedence over the cap.
func (s *Session) checkExposureLocked(req ledger.OrderRequest) error {
	if req.Side != model.SideBuy || !s.limiter.Enabled() {
		return nil
	}
	a, ok := s.market.Assets[req.Symbol]
	if !ok || !req.Quantity.IsPositive() || !req.Quantity.IsInteger() {
		return nil
	}
	fill, err := ledger.FillPrice(a, req)
	if err != nil {
		return nil
	}
	cost := fill.Mul(req.Quantity)
	if cost.GreaterThan(s.portfolio.Cash) {
		return nil
	}
	return s.limiter.CheckBuy(s.portfolio, s.market, req.Symbol, cost)
}

func (s *Session) evaluateLocked(equity decimal.Decimal) (mission.Result, bool) {
	ctx := mission.Context{
		Portfolio:     s.portfolio,
		Market:        s.market,
		Equity:        equity,
		EquityHistory: s.portfolio.EquityHistory.Slice(),
		Trades:        s.ledger.Trades(),
		StartingCash:  s.startingCash,
	}
	return s.tracker.Evaluate(s.progression, ctx)
}

// Snapshot returns a deep copy of everything needed to resume.
func (s *Session) Snapshot(now time.Time) *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &model.Snapshot{
		Version:     model.SnapshotVersion,
		SessionID:   s.id,
		Market:      s.market.Clone(),
		Portfolio:   s.portfolio.Clone(),
		Progression: s.progression.Clone(),
		Trades:      s.ledger.Trades(),
		SavedAt:     now,
	}
}

// --- Read views ---

// MarketView is the market as served to clients. Assets carry their full
// price history; Events lists the newest active events.
type MarketView struct {
	Tick      int64               `json:"tick"`
	Sentiment float64             `json:"sentiment"`
	Assets    []*model.Asset      `json:"assets"`
	Events    []model.MarketEvent `json:"events"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Market returns a copy of the market with assets sorted by symbol.
func (s *Session) Market() MarketView {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbols := s.market.Symbols()
	assets := make([]*model.Asset, 0, len(symbols))
	for _, sym := range symbols {
		assets = append(assets, s.market.Assets[sym].Clone())
	}
	return MarketView{
		Tick:      s.market.Tick,
		Sentiment: s.market.Sentiment,
		Assets:    assets,
		Events:    events.Recent(s.market.Events, s.recentEvents),
		UpdatedAt: s.market.UpdatedAt,
	}
}

// Asset returns a copy of one asset.
func (s *Session) Asset(symbol string) (*model.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.market.Assets[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return a.Clone(), nil
}

// BookView is a depth ladder with its top of book.
type BookView struct {
	orderbook.Depth
	BestBid float64 `json:"best_bid"`
	BestAsk float64 `json:"best_ask"`
}

// Book returns the latest synthetic depth for symbol.
func (s *Session) Book(symbol string) (BookView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.books[symbol]
	if !ok {
		return BookView{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return BookView{Depth: d.Clone(), BestBid: d.BestBid(), BestAsk: d.BestAsk()}, nil
}

// PortfolioView is the portfolio marked to market.
type PortfolioView struct {
	ledger.Valuation
	StartingCash  decimal.Decimal          `json:"starting_cash"`
	Positions     []ledger.PositionView    `json:"positions"`
	Metrics       model.PerformanceMetrics `json:"metrics"`
	Sectors       []exposure.SectorWeight  `json:"sectors"`
	Concentration float64                  `json:"concentration"`
	EquityHistory []model.EquityPoint      `json:"equity_history"`
}

// Portfolio returns the current portfolio valuation and statistics.
func (s *Session) Portfolio() PortfolioView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return PortfolioView{
		Valuation:     ledger.Value(s.portfolio, s.market),
		StartingCash:  s.startingCash,
		Positions:     ledger.Positions(s.portfolio, s.market),
		Metrics:       s.portfolio.Metrics,
		Sectors:       exposure.Weights(s.portfolio, s.market),
		Concentration: exposure.Concentration(s.portfolio, s.market),
		EquityHistory: s.portfolio.EquityHistory.Slice(),
	}
}

// ActiveEvents returns how many events are still in the market.
func (s *Session) ActiveEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.market.Events)
}

// Trades returns the trade log, oldest first.
func (s *Session) Trades() []model.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Trades()
}

// ProgressionView is the mission state as served to clients.
type ProgressionView struct {
	Level    int               `json:"level"`
	Badges   []string          `json:"badges"`
	Complete bool              `json:"complete"`
	Current  *mission.Mission  `json:"current,omitempty"`
	Missions []mission.Mission `json:"missions"`
}

// Progression returns the current level, badges and active mission.
func (s *Session) Progression() ProgressionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.progression.Clone()
	return ProgressionView{
		Level:    p.Level,
		Badges:   p.Badges,
		Complete: s.tracker.Complete(p),
		Current:  s.tracker.Current(p),
		Missions: s.tracker.Missions(),
	}
}
