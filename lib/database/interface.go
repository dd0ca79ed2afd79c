package database

// --------------------------------------------------------------------------
// Backend Interfaces
// --------------------------------------------------------------------------

// Backend resolves paths to references of a hierarchical database.
// Implementations run their I/O on their own goroutines and invoke the callbacks asynchronously.
type Backend interface {
	// Reference returns the reference for path. Invalid paths are reported by the
	// operations of the reference, not here.
	Reference(path string) Reference
}

// Handle identifies a persistent listener.
type Handle interface {
	// Cancel stops the listener. Cancelling more than once has no effect.
	Cancel()
}

// WriteCompletion is called once a write was acknowledged (err == nil) or rejected.
type WriteCompletion func(err error, ref Reference)

// TransactionCompletion is called once with the terminal outcome of a transaction.
type TransactionCompletion func(err error, committed bool, snapshot Snapshot)

// Query is a readable location of the database.
type Query interface {
	// Ref returns the reference of the queried location.
	Ref() Reference
	// Observe calls onEvent for every event of the given type until the returned handle is cancelled.
	// If the listener fails, onCancel is called once and no further events are delivered.
	Observe(event DataEventType, onEvent func(Snapshot), onCancel func(error)) Handle
	// ObserveSingleEvent calls either onEvent or onCancel exactly once.
	ObserveSingleEvent(event DataEventType, onEvent func(Snapshot), onCancel func(error))
}

// Reference is a writable location of the database.
type Reference interface {
	Query

	// Path returns the normalized path of the location ("/" for the root).
	Path() string
	// Key returns the last segment of the path ("" for the root).
	Key() string

	SetValue(value any, completion WriteCompletion)
	UpdateChildValues(values map[string]any, completion WriteCompletion)
	RemoveValue(completion WriteCompletion)

	OnDisconnectSetValue(value any, completion WriteCompletion)
	OnDisconnectUpdateChildValues(values map[string]any, completion WriteCompletion)
	OnDisconnectRemoveValue(completion WriteCompletion)

	// RunTransaction runs block until its result could be committed atomically or block aborts.
	RunTransaction(block TransactionBlock, completion TransactionCompletion, localEvents bool)
}

// Snapshot is an immutable copy of the data at a location.
type Snapshot interface {
	Ref() Reference
	Key() string
	// Value returns the data as decoded JSON (map[string]any, string, float64, bool) or nil.
	Value() any
	Exists() bool
}

// MutableData is the value handed to a TransactionBlock.
type MutableData interface {
	Key() string
	Value() any
	SetValue(value any)
}
