// Package store defines the persistence interface for game sessions.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and local play).
package store

import (
	"context"
	"errors"

	"github.com/atmx/paper-engine/internal/model"
)

// ErrNotFound is returned when no snapshot exists for a session.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. The engine only ever hands it plain
// snapshots; it never reaches into live session state.
type Store interface {
	// --- Session snapshots ---

	// SaveSnapshot upserts the latest snapshot for snap.SessionID.
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error

	// LoadSnapshot returns the latest snapshot or ErrNotFound.
	LoadSnapshot(ctx context.Context, sessionID string) (*model.Snapshot, error)

	// --- Trade history ---

	// InsertTrade appends an executed trade. Re-inserting the same trade
	// ID is a no-op.
	InsertTrade(ctx context.Context, sessionID string, t model.Trade) error

	// ListTrades returns up to limit of the most recent trades, oldest
	// first. A non-positive limit returns all of them.
	ListTrades(ctx context.Context, sessionID string, limit int) ([]model.Trade, error)
}
