package database

import (
	"strings"
	"sync"
)

// fakeBackend records every backend call and answers with preset values.
type fakeBackend struct {
	mu        sync.Mutex
	calls     []string
	value     any   // delivered by reads and transactions
	err       error // reported by every operation
	committed bool  // reported by transactions
	hold      bool  // never complete one-shot operations
	listeners []*fakeListener
}

func (b *fakeBackend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) Reference(path string) Reference {
	return &fakeRef{b: b, path: path}
}

type fakeRef struct {
	b    *fakeBackend
	path string
}

func (r *fakeRef) Ref() Reference { return r }
func (r *fakeRef) Path() string   { return r.path }
func (r *fakeRef) Key() string    { return r.path[strings.LastIndex(r.path, "/")+1:] }

func (r *fakeRef) Observe(event DataEventType, onEvent func(Snapshot), onCancel func(error)) Handle {
	r.b.record("observe")
	l := &fakeListener{ref: r, onEvent: onEvent, onCancel: onCancel}
	r.b.mu.Lock()
	r.b.listeners = append(r.b.listeners, l)
	r.b.mu.Unlock()
	return l
}

func (r *fakeRef) ObserveSingleEvent(event DataEventType, onEvent func(Snapshot), onCancel func(error)) {
	r.b.record("observeSingleEvent")
	switch {
	case r.b.hold:
	case r.b.err != nil:
		onCancel(r.b.err)
	default:
		onEvent(&fakeSnapshot{ref: r, value: r.b.value})
	}
}

func (r *fakeRef) complete(call string, completion WriteCompletion) {
	r.b.record(call)
	if !r.b.hold {
		completion(r.b.err, r)
	}
}

func (r *fakeRef) SetValue(_ any, c WriteCompletion) { r.complete("setValue", c) }
func (r *fakeRef) UpdateChildValues(_ map[string]any, c WriteCompletion) {
	r.complete("updateChildValues", c)
}
func (r *fakeRef) RemoveValue(c WriteCompletion) { r.complete("removeValue", c) }
func (r *fakeRef) OnDisconnectSetValue(_ any, c WriteCompletion) {
	r.complete("onDisconnectSetValue", c)
}
func (r *fakeRef) OnDisconnectUpdateChildValues(_ map[string]any, c WriteCompletion) {
	r.complete("onDisconnectUpdateChildValues", c)
}
func (r *fakeRef) OnDisconnectRemoveValue(c WriteCompletion) {
	r.complete("onDisconnectRemoveValue", c)
}

func (r *fakeRef) RunTransaction(block TransactionBlock, completion TransactionCompletion, localEvents bool) {
	r.b.record("runTransaction")
	if r.b.hold {
		return
	}
	if r.b.err != nil {
		completion(r.b.err, false, nil)
		return
	}
	completion(nil, r.b.committed, &fakeSnapshot{ref: r, value: r.b.value})
}

type fakeListener struct {
	mu        sync.Mutex
	ref       *fakeRef
	onEvent   func(Snapshot)
	onCancel  func(error)
	cancelled bool
}

func (l *fakeListener) Cancel() {
	l.mu.Lock()
	l.cancelled = true
	l.mu.Unlock()
}

func (l *fakeListener) active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.cancelled
}

func (l *fakeListener) fire(value any) {
	if l.active() {
		l.onEvent(&fakeSnapshot{ref: l.ref, value: value})
	}
}

func (l *fakeListener) fail(err error) {
	if l.active() {
		l.Cancel()
		l.onCancel(err)
	}
}

type fakeSnapshot struct {
	ref   Reference
	value any
}

func (s *fakeSnapshot) Ref() Reference { return s.ref }
func (s *fakeSnapshot) Key() string    { return s.ref.Key() }
func (s *fakeSnapshot) Value() any     { return s.value }
func (s *fakeSnapshot) Exists() bool   { return s.value != nil }
