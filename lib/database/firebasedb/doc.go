// Package firebasedb connects the database package to a Firebase Realtime Database through
// the Firebase Admin SDK.
//
// NewStore adapts an Admin SDK client to store.IStore. New opens the client and wraps the store with the realtime
// package so that it can be used as a database.Backend:
//
//	backend, err := firebasedb.New(ctx, firebasedb.Config{DatabaseURL: "https://<project>.firebaseio.com"})
//	if err != nil { ... }
//	defer backend.Close()
//	provider := database.NewDatabaseProvider[database.Target](backend)
//
// Writes and transactions use the native REST operations. Listeners poll, since the Admin SDK
// has no streaming API, and on-disconnect writes are not supported.
package firebasedb
