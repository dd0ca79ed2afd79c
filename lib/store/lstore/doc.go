// Package lstore implements a local, in-memory, single-node hierarchical store based on the
// store.IStore interface. It provides a thin wrapper around a db.Tree with locking,
// change notification and on-disconnect sessions. Data is stored entirely in memory
// and is not persisted between process restarts.
//
// Key Features:
//   - Pure in-memory storage without persistence
//   - Atomic compare-and-set under a single store wide lock
//   - Long-poll style Watch based on store.Notifier
//   - On-disconnect sessions kept in a plain map
//
// Thread Safety:
//
//	All operations in the local store are thread-safe. Reads share a read lock, writes
//	take the write lock only for the duration of the tree mutation. Watchers are woken up
//	after the lock is released.
//
// Usage Example:
//
//	s := lstore.NewLocalStore(db.NewTree)
//	_ = s.Set("/users/alice", []byte(`{"name":"Alice"}`))
//	value, _ := s.Get("/users/alice/name") // "Alice"
package lstore
