package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/exposure"
	"github.com/atmx/paper-engine/internal/ledger"
	"github.com/atmx/paper-engine/internal/metrics"
	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/store"
)

// Service exposes a session over HTTP. Trades are persisted as they fill;
// full snapshots are written by the Runner.
type Service struct {
	session *Session
	store   store.Store
	hub     Broadcaster // optional
	now     func() time.Time
}

// NewService creates the HTTP service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(sess *Session, st store.Store, hub Broadcaster) *Service {
	return &Service{
		session: sess,
		store:   st,
		hub:     hub,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register mounts the API routes on r.
func (s *Service) Register(r chi.Router) {
	r.Get("/market", s.GetMarket)
	r.Get("/market/{symbol}", s.GetAsset)
	r.Get("/market/{symbol}/book", s.GetBook)
	r.Post("/orders", s.PlaceOrder)
	r.Get("/portfolio", s.GetPortfolio)
	r.Get("/trades", s.ListTrades)
	r.Get("/progression", s.GetProgression)
}

// --- Request/Response types ---

// OrderRequest is the JSON body for POST /orders.
type OrderRequest struct {
	Symbol   string           `json:"symbol"`
	Side     string           `json:"side"`           // "buy" or "sell"
	Quantity decimal.Decimal  `json:"quantity"`       // whole shares
	Type     string           `json:"type,omitempty"` // "market" (default), "limit" or "stop"
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// --- HTTP Handlers ---

// GetMarket handles GET /api/v1/market
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Market())
}

// GetAsset handles GET /api/v1/market/{symbol}
func (s *Service) GetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := s.session.Asset(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, "asset not found", "unknown_symbol", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// GetBook handles GET /api/v1/market/{symbol}/book
func (s *Service) GetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.session.Book(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, "asset not found", "unknown_symbol", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// PlaceOrder handles POST /api/v1/orders
func (s *Service) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var body OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", "invalid_body", http.StatusBadRequest)
		return
	}

	side, err := model.ParseSide(body.Side)
	if err != nil {
		metrics.OrderRejections.WithLabelValues("invalid_side").Inc()
		writeError(w, "side must be buy or sell", "invalid_side", http.StatusBadRequest)
		return
	}
	orderType, err := model.ParseOrderType(body.Type)
	if err != nil {
		metrics.OrderRejections.WithLabelValues("invalid_type").Inc()
		writeError(w, "type must be market, limit or stop", "invalid_type", http.StatusBadRequest)
		return
	}

	req := ledger.OrderRequest{
		Side:     side,
		Symbol:   body.Symbol,
		Quantity: body.Quantity,
		Type:     orderType,
		Price:    body.Price,
	}

	start := time.Now()
	res, err := s.session.PlaceOrder(req, s.now())
	metrics.OrderLatency.WithLabelValues(string(side)).Observe(time.Since(start).Seconds())
	if err != nil {
		code, status := classifyOrderError(err)
		metrics.OrderRejections.WithLabelValues(code).Inc()
		slog.Info("order rejected",
			"symbol", body.Symbol,
			"side", side,
			"qty", body.Quantity.String(),
			"reason", code,
		)
		writeError(w, err.Error(), code, status)
		return
	}

	t := res.Trade
	metrics.OrdersTotal.WithLabelValues(string(t.Side), string(t.OrderType)).Inc()
	metrics.ShareVolume.WithLabelValues(t.Symbol, string(t.Side)).Add(float64(t.Quantity))
	metrics.Equity.Set(res.Equity.InexactFloat64())

	// The fill is already applied in memory; a failed insert is recovered by
	// the next snapshot, which carries the trade log.
	if err := s.store.InsertTrade(r.Context(), s.session.ID(), t); err != nil {
		slog.Error("failed to persist trade", "trade_id", t.ID, "err", err)
	}

	slog.Info("order filled",
		"trade_id", t.ID,
		"symbol", t.Symbol,
		"side", t.Side,
		"type", t.OrderType,
		"qty", t.Quantity,
		"price", t.Price.String(),
		"cash", res.Cash.String(),
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{Type: MsgTrade, Timestamp: t.Timestamp, Data: t})
		if res.Mission != nil {
			s.hub.Broadcast(WSMessage{Type: MsgMission, Timestamp: t.Timestamp, Data: res.Mission})
		}
	}
	if res.Mission != nil {
		metrics.MissionLevel.Set(float64(res.Mission.Level))
		slog.Info("mission complete", "mission", res.Mission.Mission.ID, "level", res.Mission.Level)
	}

	writeJSON(w, http.StatusCreated, res)
}

// classifyOrderError maps a rejection to a stable code and HTTP status.
func classifyOrderError(err error) (string, int) {
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return "invalid_quantity", http.StatusBadRequest
	case errors.Is(err, ledger.ErrInvalidPrice):
		return "invalid_price", http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnknownAsset):
		return "unknown_symbol", http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds", http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientShares):
		return "insufficient_shares", http.StatusConflict
	case errors.Is(err, exposure.ErrSectorLimitExceeded):
		return "sector_limit", http.StatusConflict
	default:
		return "internal", http.StatusInternalServerError
	}
}

// GetPortfolio handles GET /api/v1/portfolio
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Portfolio())
}

// ListTrades handles GET /api/v1/trades
// Returns trades oldest first, optionally capped to the newest N by
// ?limit=N. The in-memory log is bounded; when limit asks for more than it
// holds, or ?source=store is given, the persisted history is read instead.
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	source := q.Get("source")
	if source != "" && source != "memory" && source != "store" {
		writeError(w, "source must be memory or store", "invalid_source", http.StatusBadRequest)
		return
	}

	limit := -1
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, "limit must be a non-negative integer", "invalid_limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit == 0 {
		writeJSON(w, http.StatusOK, []model.Trade{})
		return
	}

	trades := s.session.Trades()
	wantStore := source == "store" || (source == "" && limit > len(trades))
	if wantStore && s.store != nil {
		stored, err := s.store.ListTrades(r.Context(), s.session.ID(), max(limit, 0))
		switch {
		case err != nil && source == "store":
			slog.Error("failed to list stored trades", "session", s.session.ID(), "err", err)
			writeError(w, "failed to read trade history", "internal", http.StatusInternalServerError)
			return
		case err != nil:
			slog.Warn("stored trades unavailable, serving in-memory log", "session", s.session.ID(), "err", err)
		case source == "store" || len(stored) > len(trades):
			trades = stored
		}
	}

	if limit > 0 && limit < len(trades) {
		trades = trades[len(trades)-limit:]
	}
	writeJSON(w, http.StatusOK, trades)
}

// GetProgression handles GET /api/v1/progression
func (s *Service) GetProgression(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Progression())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message, code string, status int) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}
