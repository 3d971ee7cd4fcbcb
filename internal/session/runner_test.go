package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/store"
)

func TestRunner_TickBroadcasts(t *testing.T) {
	hub := &recorder{}
	r := NewRunner(newTestSession(t, testOptions()), store.NewMemoryStore(), hub, Intervals{})

	res := r.Tick()
	assert.Equal(t, int64(1), res.Tick)
	require.NotEmpty(t, hub.msgs)
	assert.Equal(t, MsgTick, hub.msgs[0].Type)
	assert.Equal(t, int64(1), hub.msgs[0].Tick)
}

func TestRunner_CheckEventsBroadcastsSpawn(t *testing.T) {
	opts := testOptions()
	opts.Events.SpawnProbability = 1
	hub := &recorder{}
	r := NewRunner(newTestSession(t, opts), store.NewMemoryStore(), hub, Intervals{})

	r.CheckEvents()
	require.Len(t, hub.msgs, 1)
	assert.Equal(t, MsgEvent, hub.msgs[0].Type)
	notice, ok := hub.msgs[0].Data.(*EventNotice)
	require.True(t, ok)
	assert.NotEmpty(t, notice.Affected)
}

func TestRunner_SaveIsLoadable(t *testing.T) {
	sess := newTestSession(t, testOptions())
	st := store.NewMemoryStore()
	r := NewRunner(sess, st, nil, Intervals{})
	r.Tick()
	r.Tick()

	ctx := context.Background()
	require.NoError(t, r.Save(ctx))

	snap, err := st.LoadSnapshot(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, model.SnapshotVersion, snap.Version)
	assert.Equal(t, int64(2), snap.Market.Tick)
	assert.Len(t, snap.Market.Assets, 12)
}

func TestRunner_RunSavesOnShutdown(t *testing.T) {
	sess := newTestSession(t, testOptions())
	st := store.NewMemoryStore()
	r := NewRunner(sess, st, nil, Intervals{Tick: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return sess.Market().Tick >= 3
	}, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}

	snap, err := st.LoadSnapshot(context.Background(), "test")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, snap.Market.Tick, int64(3))
}

type failingStore struct{ store.Store }

func (failingStore) SaveSnapshot(context.Context, *model.Snapshot) error {
	return errors.New("disk full")
}

func TestRunner_SaveError(t *testing.T) {
	r := NewRunner(newTestSession(t, testOptions()), failingStore{store.NewMemoryStore()}, nil, Intervals{})
	assert.EqualError(t, r.Save(context.Background()), "disk full")
}
