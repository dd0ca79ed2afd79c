// Package realtime implements database.Backend on top of any store.IStore, which makes
// the stores of this module usable as a realtime database.
//
// Listeners:
//
//	Every listener runs a goroutine that long-polls the store with Watch, passing the hash of
//	the last value it has seen. The first event reflects the current state: a value event always,
//	a child-added event per existing child. Later values are diffed against the previous one
//	and turned into child events. Events of one listener are delivered in order. If the store
//	fails, the cancel callback is called once and the listener ends.
//
// Transactions:
//
//	A transaction reads the current value, runs the block and commits the result with
//	CompareAndSet on the hash of the value the block has seen. If another client won the race,
//	the block is run again with the winning value, at most WithMaxTransactionRetries times.
//	With local events, listeners of this database see the tentative value before the commit.
//
// Sessions:
//
//	On-disconnect writes are registered for the session of the database and applied when Close
//	is called. With the rpc client the server also applies them once the client stops sending
//	keepalives.
package realtime
