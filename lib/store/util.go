package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/nora/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

// decodeRawObject decodes b into a JSON object without normalizing its keys.
func decodeRawObject(b []byte) (map[string]any, error) {
	var v map[string]any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("update value must be a JSON object: %w", err)
	}
	return v, nil
}

// --------------------------------------------------------------------------
// Change Notification (used by the Watch implementations)
// --------------------------------------------------------------------------

type waiter struct {
	path db.Path
	ch   chan struct{}
}

// Notifier wakes up watchers whose path is related to a written path.
// Every subscription fires at most once, watchers re-subscribe after waking up.
type Notifier struct {
	waiters *xsync.MapOf[uint64, waiter]
	nextID  atomic.Uint64
}

// NewNotifier creates a notifier without any subscriptions.
func NewNotifier() *Notifier {
	return &Notifier{
		waiters: xsync.NewMapOf[uint64, waiter](),
	}
}

// Subscribe returns a channel that is closed on the next write related to path.
// The returned cancel function releases the subscription if it did not fire.
func (n *Notifier) Subscribe(path db.Path) (<-chan struct{}, func()) {
	id := n.nextID.Add(1)
	w := waiter{path: path, ch: make(chan struct{})}
	n.waiters.Store(id, w)
	return w.ch, func() { n.waiters.Delete(id) }
}

// Notify fires all subscriptions related to path.
func (n *Notifier) Notify(path db.Path) {
	n.waiters.Range(func(id uint64, w waiter) bool {
		if w.path.Related(path) {
			// only the caller that removes the waiter may close its channel
			if fired, ok := n.waiters.LoadAndDelete(id); ok {
				close(fired.ch)
			}
		}
		return true
	})
}

// Watch implements IStore.Watch on top of a read function and a notifier.
// The subscription is taken before every read so that no write can slip in between.
func Watch(ctx context.Context, n *Notifier, path string, knownHash uint64, read func(path string) ([]byte, error)) ([]byte, bool, error) {
	p, err := db.ParsePath(path)
	if err != nil {
		return nil, false, NewError(RetCInvalidPath, err.Error())
	}
	for {
		ch, cancel := n.Subscribe(p)
		value, err := read(path)
		if err != nil {
			cancel()
			return nil, false, err
		}
		if db.HashBytes(value) != knownHash {
			cancel()
			return value, true, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			cancel()
			return value, false, nil
		}
	}
}
