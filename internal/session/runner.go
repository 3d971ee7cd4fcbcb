package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/atmx/paper-engine/internal/metrics"
	"github.com/atmx/paper-engine/internal/store"
)

// Intervals sets the cadence of the Runner's periodic jobs. A non-positive
// interval disables that job.
type Intervals struct {
	Tick  time.Duration
	Event time.Duration
	Book  time.Duration
	Save  time.Duration
}

// Runner drives a session on wall-clock timers: price ticks, event rolls,
// order book refreshes and periodic snapshots. All jobs run on one
// goroutine, so they never overlap each other.
type Runner struct {
	session   *Session
	store     store.Store
	hub       Broadcaster // optional
	intervals Intervals
	now       func() time.Time
}

// NewRunner creates a runner. Pass nil for hub if WebSocket broadcasting
// is not needed.
func NewRunner(sess *Session, st store.Store, hub Broadcaster, iv Intervals) *Runner {
	return &Runner{
		session:   sess,
		store:     st,
		hub:       hub,
		intervals: iv,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until ctx is cancelled, then writes a final snapshot.
func (r *Runner) Run(ctx context.Context) error {
	tick, stopTick := newTicker(r.intervals.Tick)
	defer stopTick()
	event, stopEvent := newTicker(r.intervals.Event)
	defer stopEvent()
	book, stopBook := newTicker(r.intervals.Book)
	defer stopBook()
	save, stopSave := newTicker(r.intervals.Save)
	defer stopSave()

	slog.Info("session runner started",
		"session", r.session.ID(),
		"tick", r.intervals.Tick,
		"event", r.intervals.Event,
		"book", r.intervals.Book,
		"save", r.intervals.Save,
	)

	for {
		select {
		case <-ctx.Done():
			// The parent context is gone; give the final save its own deadline.
			saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			err := r.Save(saveCtx)
			cancel()
			slog.Info("session runner stopped", "session", r.session.ID())
			return err
		case <-tick:
			r.Tick()
		case <-event:
			r.CheckEvents()
		case <-book:
			r.session.RefreshBooks(r.now())
		case <-save:
			if err := r.Save(ctx); err != nil {
				slog.Error("snapshot save failed", "session", r.session.ID(), "err", err)
			}
		}
	}
}

// Tick applies one simulation step and publishes the result.
func (r *Runner) Tick() TickResult {
	res := r.session.Tick(r.now())

	metrics.TicksTotal.Inc()
	metrics.Sentiment.Set(res.Sentiment)
	metrics.Equity.Set(res.Equity.InexactFloat64())

	if r.hub != nil {
		r.hub.Broadcast(WSMessage{Type: MsgTick, Tick: res.Tick, Timestamp: res.At, Data: res})
		for _, e := range res.Expired {
			r.hub.Broadcast(WSMessage{Type: MsgExpired, Tick: res.Tick, Timestamp: res.At, Data: e})
		}
		if res.Mission != nil {
			r.hub.Broadcast(WSMessage{Type: MsgMission, Tick: res.Tick, Timestamp: res.At, Data: res.Mission})
		}
	}
	if res.Mission != nil {
		metrics.MissionLevel.Set(float64(res.Mission.Level))
		slog.Info("mission complete", "mission", res.Mission.Mission.ID, "level", res.Mission.Level)
	}
	for _, e := range res.Expired {
		slog.Debug("event expired", "id", e.ID, "headline", e.Headline)
	}
	return res
}

// CheckEvents rolls for a new market event and publishes it if one spawns.
func (r *Runner) CheckEvents() {
	now := r.now()
	e := r.session.CheckEvents(now)
	active := r.session.ActiveEvents()
	metrics.ActiveEvents.Set(float64(active))
	if e == nil {
		return
	}

	metrics.EventsSpawned.WithLabelValues(string(e.Scope.Kind)).Inc()
	slog.Info("market event",
		"id", e.ID,
		"headline", e.Headline,
		"scope", e.Scope.Kind,
		"target", e.Scope.Target(),
		"impact", e.Impact,
		"expires_tick", e.ExpiresTick,
		"affected", len(e.Affected),
	)
	if r.hub != nil {
		r.hub.Broadcast(WSMessage{Type: MsgEvent, Tick: e.CreatedTick, Timestamp: now, Data: e})
	}
}

// Save persists a snapshot of the session. The snapshot is copied under the
// session lock and written without holding it.
func (r *Runner) Save(ctx context.Context) error {
	snap := r.session.Snapshot(r.now())
	if err := r.store.SaveSnapshot(ctx, snap); err != nil {
		metrics.SnapshotSaves.WithLabelValues("error").Inc()
		return err
	}
	metrics.SnapshotSaves.WithLabelValues("ok").Inc()
	slog.Debug("snapshot saved", "session", snap.SessionID, "tick", snap.Market.Tick)
	return nil
}

// newTicker returns a ticker channel, or a nil channel that never fires
// when d is not positive.
func newTicker(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}
