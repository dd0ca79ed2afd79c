package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/nora/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
)

// sessionTracker remembers when each session was last seen on one database and disconnects
// sessions whose lease ran out, which applies their on-disconnect writes.
// A nil tracker ignores all calls.
type sessionTracker struct {
	store    store.IStore
	ttl      time.Duration
	lastSeen *xsync.MapOf[string, *atomic.Int64]
	now      func() time.Time
}

func newSessionTracker(s store.IStore, ttl time.Duration) *sessionTracker {
	return &sessionTracker{
		store:    s,
		ttl:      ttl,
		lastSeen: xsync.NewMapOf[string, *atomic.Int64](),
		now:      time.Now,
	}
}

// touch renews the lease of a session
func (t *sessionTracker) touch(session string) {
	if t == nil {
		return
	}
	now := t.now().UnixNano()
	seen, loaded := t.lastSeen.LoadOrCompute(session, func() *atomic.Int64 {
		v := new(atomic.Int64)
		v.Store(now)
		return v
	})
	if loaded {
		seen.Store(now)
	}
}

// forget stops tracking a session that disconnected on its own
func (t *sessionTracker) forget(session string) {
	if t == nil {
		return
	}
	t.lastSeen.Delete(session)
}

// size returns the number of tracked sessions
func (t *sessionTracker) size() int {
	if t == nil {
		return 0
	}
	return t.lastSeen.Size()
}

// reap disconnects all sessions that were not seen within the ttl and returns how many
func (t *sessionTracker) reap() int {
	if t == nil {
		return 0
	}
	deadline := t.now().Add(-t.ttl).UnixNano()
	reaped := 0
	t.lastSeen.Range(func(session string, seen *atomic.Int64) bool {
		if seen.Load() >= deadline {
			return true
		}
		// a keepalive between Range and Compute renews the lease
		expired := false
		t.lastSeen.Compute(session, func(old *atomic.Int64, loaded bool) (*atomic.Int64, bool) {
			expired = loaded && old.Load() < deadline
			return old, expired
		})
		if !expired {
			return true
		}
		if err := t.store.Disconnect(session); err != nil {
			Logger.Warningf("failed to disconnect expired session %s: %v", session, err)
			return true
		}
		Logger.Infof("session %s expired, applied its on-disconnect writes", session)
		reaped++
		return true
	})
	return reaped
}

// run reaps expired sessions until ctx ends
func (t *sessionTracker) run(ctx context.Context) {
	if t == nil || t.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(max(t.ttl/4, 100*time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.reap()
		}
	}
}
