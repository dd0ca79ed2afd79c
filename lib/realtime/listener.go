package realtime

import (
	"context"
	"sync"

	"github.com/ValentinKolb/nora/lib/database"
	"github.com/ValentinKolb/nora/lib/db"
)

// listener delivers the events of one Observe call. A single goroutine polls the store,
// transactions with local events feed tentative values in from their own goroutines.
type listener struct {
	id       uint64
	ref      *reference
	event    database.DataEventType
	single   bool
	onEvent  func(database.Snapshot)
	onCancel func(error)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex // serializes deliveries
	last     any
	lastHash uint64
	started  bool
}

// Cancel implements database.Handle.
func (l *listener) Cancel() {
	l.cancel()
}

func (r *reference) Observe(event database.DataEventType, onEvent func(database.Snapshot), onCancel func(error)) database.Handle {
	return r.observe(event, false, onEvent, onCancel)
}

// ObserveSingleEvent delivers the first event of the given type and stops. For value and
// child-added events on existing data that is the current state, for the other types it is the next change.
func (r *reference) ObserveSingleEvent(event database.DataEventType, onEvent func(database.Snapshot), onCancel func(error)) {
	r.observe(event, true, onEvent, onCancel)
}

func (r *reference) observe(event database.DataEventType, single bool, onEvent func(database.Snapshot), onCancel func(error)) *listener {
	if onEvent == nil {
		onEvent = func(database.Snapshot) {}
	}
	if onCancel == nil {
		onCancel = func(error) {}
	}

	d := r.db
	ctx, cancel := context.WithCancel(d.ctx)
	l := &listener{
		id:       d.nextID.Add(1),
		ref:      r,
		event:    event,
		single:   single,
		onEvent:  onEvent,
		onCancel: onCancel,
		ctx:      ctx,
		cancel:   cancel,
	}

	if r.err != nil {
		cancel()
		go onCancel(r.err)
		return l
	}

	d.listeners.Store(l.id, l)
	if !d.async(func() { d.runListener(l) }) {
		d.listeners.Delete(l.id)
		cancel()
		go onCancel(ErrClosed)
	}
	return l
}

// runListener polls the store until the listener is cancelled or the store fails.
func (d *Database) runListener(l *listener) {
	defer d.listeners.Delete(l.id)
	defer l.cancel()

	path := l.ref.path.String()
	raw, err := d.store.Get(path)
	if err != nil {
		l.fail(err)
		return
	}
	if err := l.receive(raw); err != nil {
		l.fail(err)
		return
	}

	for {
		known := db.HashBytes(raw)
		ctx, cancel := context.WithTimeout(l.ctx, d.pollTimeout)
		value, changed, err := d.store.Watch(ctx, path, known)
		cancel()

		if l.ctx.Err() != nil {
			return
		}
		if err != nil {
			l.fail(err)
			return
		}
		if !changed {
			continue
		}
		raw = value
		if err := l.receive(raw); err != nil {
			l.fail(err)
			return
		}
	}
}

// receive decodes a value read from the store and delivers it.
func (l *listener) receive(raw []byte) error {
	v, err := db.Decode(raw)
	if err != nil {
		return err
	}
	l.deliver(v)
	return nil
}

// deliver turns a new value of the observed location into events.
func (l *listener) deliver(value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliverLocked(value)
}

// deliverLocked is deliver for callers that hold l.mu.
func (l *listener) deliverLocked(value any) {
	h := db.Hash(value)
	if l.started && h == l.lastHash {
		return
	}
	before := l.last
	l.last, l.lastHash, l.started = value, h, true

	switch l.event {
	case database.EventValue:
		l.emit(&snapshot{ref: l.ref, value: value})
	case database.EventChildAdded, database.EventChildChanged, database.EventChildRemoved:
		for _, c := range db.DiffChildren(before, value) {
			if childEventType(c.Type) == l.event {
				l.emit(&snapshot{ref: l.ref.child(c.Key), value: c.Value})
			}
		}
	case database.EventChildMoved:
		// children have no priorities, so they never move
	}
}

// emit calls onEvent unless the listener was cancelled. The caller must hold l.mu.
func (l *listener) emit(s database.Snapshot) {
	if l.ctx.Err() != nil {
		return
	}
	l.onEvent(s)
	if l.single {
		l.cancel()
	}
}

// fail reports err once, unless the listener was cancelled.
func (l *listener) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx.Err() != nil {
		return
	}
	l.cancel()
	log.Debugf("listener on %s failed: %v", l.ref.Path(), err)
	l.onCancel(err)
}

func childEventType(t db.ChangeType) database.DataEventType {
	switch t {
	case db.ChildAdded:
		return database.EventChildAdded
	case db.ChildChanged:
		return database.EventChildChanged
	default:
		return database.EventChildRemoved
	}
}

// --------------------------------------------------------------------------
// Local Events
// --------------------------------------------------------------------------

// publishLocal shows value, a tentative value for path, to all listeners whose location is
// related to path. The next value read from the store replaces it again.
func (d *Database) publishLocal(path db.Path, value any) {
	v, err := db.Normalize(value)
	if err != nil {
		return
	}
	d.listeners.Range(func(_ uint64, l *listener) bool {
		if l.ref.path.Related(path) {
			l.showLocal(path, v)
		}
		return true
	})
}

// showLocal delivers the value the observed location would have after writing v at path,
// based on the last delivered value. Both happen under l.mu.
func (l *listener) showLocal(path db.Path, v any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return
	}

	lp := l.ref.path
	view := db.NewTree()
	if lp.Contains(path) {
		// the write is at or below the listener
		view.Set(db.Path{}, l.last)
		view.Set(path[len(lp):], v)
		l.deliverLocked(view.Get(db.Path{}))
	} else {
		// the write is above the listener
		view.Set(db.Path{}, v)
		l.deliverLocked(view.Get(lp[len(path):]))
	}
}
