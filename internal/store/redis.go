package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/paper-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for snapshots. Saves go to the primary store and then refresh the
// cache; loads check Redis first then fall back to the primary. Trades
// pass straight through.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh cache) ---

func (s *CachedStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if err := s.primary.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	s.cacheSnapshot(ctx, snap)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) LoadSnapshot(ctx context.Context, sessionID string) (*model.Snapshot, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err == nil {
		var snap model.Snapshot
		if json.Unmarshal(data, &snap) == nil {
			return &snap, nil
		}
	}

	// Cache miss: read from primary.
	snap, err := s.primary.LoadSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.cacheSnapshot(ctx, snap)
	return snap, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) InsertTrade(ctx context.Context, sessionID string, t model.Trade) error {
	return s.primary.InsertTrade(ctx, sessionID, t)
}

func (s *CachedStore) ListTrades(ctx context.Context, sessionID string, limit int) ([]model.Trade, error) {
	return s.primary.ListTrades(ctx, sessionID, limit)
}

// --- Cache helpers ---

func (s *CachedStore) cacheSnapshot(ctx context.Context, snap *model.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, snapshotKey(snap.SessionID), data, s.ttl).Err(); err != nil {
		slog.Warn("snapshot cache write failed", "session", snap.SessionID, "err", err)
	}
}

func snapshotKey(id string) string { return fmt.Sprintf("snapshot:%s", id) }
