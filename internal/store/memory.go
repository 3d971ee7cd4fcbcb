package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/atmx/paper-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	trades    map[string][]model.Trade
	tradeIDs  map[string]bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]byte),
		trades:    make(map[string][]model.Trade),
		tradeIDs:  make(map[string]bool),
	}
}

// SaveSnapshot stores an encoded copy so later mutation of snap is not
// visible through the store.
func (s *MemoryStore) SaveSnapshot(_ context.Context, snap *model.Snapshot) error {
	if snap.SessionID == "" {
		return fmt.Errorf("save snapshot: empty session id")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.SessionID] = data
	return nil
}

func (s *MemoryStore) LoadSnapshot(_ context.Context, sessionID string) (*model.Snapshot, error) {
	s.mu.RLock()
	data, ok := s.snapshots[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *MemoryStore) InsertTrade(_ context.Context, sessionID string, t model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tradeIDs[t.ID] {
		return nil
	}
	s.tradeIDs[t.ID] = true
	s.trades[sessionID] = append(s.trades[sessionID], t)
	return nil
}

func (s *MemoryStore) ListTrades(_ context.Context, sessionID string, limit int) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.trades[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]model.Trade{}, all...), nil
}
