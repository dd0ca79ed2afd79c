// Package testing provides a standardized test suite for store.IStore implementations.
// Every implementation (local, raft, rpc) is expected to pass RunStoreTests.
package testing
