// Package store provides the synchronous interface every nora database backend implements.
// It serves as an abstraction layer over the db.Tree engine, adding atomic
// compare-and-set, change watching, on-disconnect sessions and unified error handling.
//
// The package focuses on:
//   - A unified interface (IStore) for hierarchical JSON operations across different backends
//   - Pluggable tree creation through the DBFactory pattern
//   - Shared helpers for implementations (ParseOperation, Notifier, Watch)
//
// Key Components:
//
//   - IStore Interface: The core abstraction. Values cross the interface as JSON bytes so that
//     the same contract can be served locally, replicated through raft or forwarded over RPC.
//     Reads always return the canonical encoding produced by db.Encode, which makes
//     db.HashBytes of a read usable as the expected hash of a later CompareAndSet or Watch.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     (RetCode) and descriptive messages.
//
//   - Operations: Writes that are stored now and applied later. They back the
//     on-disconnect registrations of a session.
//
// Implementations:
//
//	- Local Store (lstore): A single node implementation that guards a db.Tree with a mutex.
//	  Available in the "github.com/ValentinKolb/nora/lib/store/lstore" package.
//
//	- Distributed Store (dstore): An implementation built on the Dragonboat
//	  RAFT consensus library. Writes and on-disconnect sessions are replicated to all nodes.
//	  Available in the "github.com/ValentinKolb/nora/lib/store/dstore" package.
//
//	- RPC Store: Forwards every call to a nora server.
//	  Available in the "github.com/ValentinKolb/nora/rpc/client" package.
package store
