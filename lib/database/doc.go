// Package database dispatches requests against a hierarchical realtime database and
// normalizes all of their outcomes into a single result type.
//
// A request is described by a Target: a path, a Task and two flags. The six tasks fall
// into three groups, each handled by its own strategy of the DatabaseProvider:
//
//   - Observe and ObserveOnce register a listener on a Query.
//   - SetValue, UpdateChildValues and RemoveValue write to a Reference, either right away
//     or, with OnDisconnect, once the client disconnects.
//   - Transaction runs an optimistic read-modify-write cycle on a Reference.
//
// The backend answers with a different callback for every group. The provider converts all of
// them into a Result[DatabaseResponse]; failures are always a *NoraError.
//
// Three styles of use are offered:
//
//	// callbacks, as the backend delivers them
//	handle := provider.Request(target, func(r database.Result[database.DatabaseResponse]) { ... })
//	provider.RemoveObserver(handle)
//
//	// blocking, for one-shot tasks
//	res, err := provider.Do(ctx, target)
//
//	// streaming, for Observe
//	sub := provider.Observe(target)
//	defer sub.Cancel()
//	for r := range sub.Results() { ... }
//
// The package contains no backend. lib/realtime implements Backend on any store.IStore and
// lib/database/firebasedb implements it on the Firebase Admin SDK.
package database
