package lstore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/nora/lib/db"
	"github.com/ValentinKolb/nora/lib/store"
)

type storeImpl struct {
	mu       sync.RWMutex
	tree     *db.Tree
	sessions map[string][]store.Operation // guarded by mu
	notifier *store.Notifier
	index    atomic.Uint64
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		tree:     factory(),
		sessions: make(map[string][]store.Operation),
		notifier: store.NewNotifier(),
	}
}

// incAndGetIndex increments the write index and returns the new value.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// apply validates and applies a single operation and wakes up related watchers.
func (s *storeImpl) apply(op store.Operation) error {
	m, err := store.ParseOperation(op)
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = m.Apply(s.tree)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.incAndGetIndex()
	s.notifier.Notify(m.Path)
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(path string) ([]byte, error) {
	p, err := db.ParsePath(path)
	if err != nil {
		return nil, store.NewError(store.RetCInvalidPath, err.Error())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return db.Encode(s.tree.Get(p)), nil
}

func (s *storeImpl) Set(path string, value []byte) error {
	return s.apply(store.Operation{Type: store.OpSet, Path: path, Value: value})
}

func (s *storeImpl) Update(path string, values []byte) error {
	return s.apply(store.Operation{Type: store.OpUpdate, Path: path, Value: values})
}

func (s *storeImpl) Remove(path string) error {
	return s.apply(store.Operation{Type: store.OpRemove, Path: path})
}

func (s *storeImpl) CompareAndSet(path string, expectedHash uint64, value []byte) (bool, []byte, error) {
	m, err := store.ParseOperation(store.Operation{Type: store.OpSet, Path: path, Value: value})
	if err != nil {
		return false, nil, err
	}

	s.mu.Lock()
	current := s.tree.Get(m.Path)
	if db.Hash(current) != expectedHash {
		s.mu.Unlock()
		return false, db.Encode(current), nil
	}
	s.tree.Set(m.Path, m.Value)
	s.mu.Unlock()

	s.incAndGetIndex()
	s.notifier.Notify(m.Path)
	return true, db.Encode(m.Value), nil
}

func (s *storeImpl) Watch(ctx context.Context, path string, knownHash uint64) ([]byte, bool, error) {
	return store.Watch(ctx, s.notifier, path, knownHash, s.Get)
}

func (s *storeImpl) RegisterOnDisconnect(session string, op store.Operation) error {
	// validate now, a broken operation must not fail the disconnect later
	if _, err := store.ParseOperation(op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session] = append(s.sessions[session], op)
	return nil
}

func (s *storeImpl) CancelOnDisconnect(session string, path string) error {
	p, err := db.ParsePath(path)
	if err != nil {
		return store.NewError(store.RetCInvalidPath, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session] = store.FilterOperations(s.sessions[session], p)
	if len(s.sessions[session]) == 0 {
		delete(s.sessions, session)
	}
	return nil
}

func (s *storeImpl) Disconnect(session string) error {
	s.mu.Lock()
	ops := s.sessions[session]
	delete(s.sessions, session)

	// apply all operations of the session under a single lock, notify afterward
	written := make([]db.Path, 0, len(ops))
	for _, op := range ops {
		m, err := store.ParseOperation(op)
		if err != nil {
			continue
		}
		if err := m.Apply(s.tree); err != nil {
			continue
		}
		written = append(written, m.Path)
	}
	s.mu.Unlock()

	for _, p := range written {
		s.incAndGetIndex()
		s.notifier.Notify(p)
	}
	return nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := s.tree.GetInfo()
	info.Metadata = map[string]uint64{
		"writes":   s.index.Load(),
		"sessions": uint64(len(s.sessions)),
	}
	return info, nil
}
