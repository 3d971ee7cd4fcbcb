package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/model"
)

// migrationsFS embeds the PostgreSQL schema.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Snapshots are kept as JSONB; trade money columns are NUMERIC for exact
// decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies all embedded SQL files in lexical order. Migrations are
// idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	var tick int64
	if snap.Market != nil {
		tick = snap.Market.Tick
	}
	cash := decimal.Zero
	if snap.Portfolio != nil {
		cash = snap.Portfolio.Cash
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, version, tick, cash, snapshot, saved_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET version = EXCLUDED.version, tick = EXCLUDED.tick, cash = EXCLUDED.cash,
		     snapshot = EXCLUDED.snapshot, saved_at = EXCLUDED.saved_at`,
		snap.SessionID, snap.Version, tick, cash.String(), data, snap.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context, sessionID string) (*model.Snapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot FROM sessions WHERE id = $1`, sessionID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", sessionID, err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", sessionID, err)
	}
	return &snap, nil
}

func (s *PostgresStore) InsertTrade(ctx context.Context, sessionID string, t model.Trade) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, session_id, symbol, side, order_type, quantity, price, cash_delta, realized_pnl, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10)
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, sessionID, t.Symbol, string(t.Side), string(t.OrderType), t.Quantity,
		t.Price.String(), t.CashDelta.String(), t.RealizedPnL.String(),
		t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListTrades(ctx context.Context, sessionID string, limit int) ([]model.Trade, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, symbol, side, order_type, quantity,
		        price::TEXT, cash_delta::TEXT, realized_pnl::TEXT, executed_at
		 FROM trades WHERE session_id = $1
		 ORDER BY seq DESC LIMIT $2`, sessionID, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades, err := scanTrades(rows)
	if err != nil {
		return nil, err
	}
	// Newest first from the query; callers want oldest first.
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return trades, nil
}

// pgxRows is the subset of pgx.Rows used by scanTrades.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanTrades(rows pgxRows) ([]model.Trade, error) {
	trades := []model.Trade{}
	for rows.Next() {
		var t model.Trade
		var side, orderType, priceS, deltaS, pnlS string

		if err := rows.Scan(&t.ID, &t.Symbol, &side, &orderType, &t.Quantity,
			&priceS, &deltaS, &pnlS, &t.Timestamp); err != nil {
			return nil, err
		}

		t.Side = model.Side(side)
		t.OrderType = model.OrderType(orderType)
		t.Price, _ = decimal.NewFromString(priceS)
		t.CashDelta, _ = decimal.NewFromString(deltaS)
		t.RealizedPnL, _ = decimal.NewFromString(pnlS)

		trades = append(trades, t)
	}
	return trades, rows.Err()
}
