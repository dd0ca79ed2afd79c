package store

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/nora/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new tree used by the store.
// This is used to abstract the creation of the tree from the store implementation.
type DBFactory func() *db.Tree

// IStore is the generic interface for interacting with a hierarchical JSON store.
// Values are exchanged as JSON bytes, an absent node reads as "null".
// All write operations return only an error (nil on success),
// while read operations return the requested data along with an error (nil on success).
type IStore interface {
	// Get returns the canonical JSON encoding of the value at path ("null" if absent).
	Get(path string) (value []byte, err error)
	// Set replaces the value at path. Setting "null" removes the node.
	Set(path string, value []byte) (err error)
	// Update merges a JSON object into the node at path. Keys of the object are relative
	// paths, a "null" child removes that child. The update is applied atomically.
	Update(path string, values []byte) (err error)
	// Remove deletes the node at path and everything below it.
	Remove(path string) (err error)
	// CompareAndSet replaces the value at path only if the hash (see db.Hash) of the current
	// value equals expectedHash. On a mismatch ok is false and current holds the value that
	// was found instead, so that the caller can retry without another read.
	CompareAndSet(path string, expectedHash uint64, value []byte) (ok bool, current []byte, err error)
	// Watch blocks until the value at path hashes differently from knownHash and returns it.
	// If ctx ends first, the current value is returned with changed=false and no error.
	Watch(ctx context.Context, path string, knownHash uint64) (value []byte, changed bool, err error)
	// RegisterOnDisconnect queues op to be applied once the given session disconnects.
	RegisterOnDisconnect(session string, op Operation) (err error)
	// CancelOnDisconnect drops all queued operations of the session at or below path.
	CancelOnDisconnect(session string, path string) (err error)
	// Disconnect applies all queued operations of the session in registration order and forgets the session.
	// Disconnecting an unknown session is not an error.
	Disconnect(session string) (err error)
	// GetDBInfo returns metadata about the tree underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Operations (used for deferred on-disconnect writes)
// --------------------------------------------------------------------------

// OperationType is the kind of write an Operation performs.
type OperationType uint8

const (
	OpSet OperationType = iota + 1
	OpUpdate
	OpRemove
)

func (o OperationType) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpUpdate:
		return "update"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Operation is a single write that can be stored and applied later.
// Value holds the JSON value for OpSet and the JSON object for OpUpdate.
type Operation struct {
	Type  OperationType `json:"type"`
	Path  string        `json:"path"`
	Value []byte        `json:"value,omitempty"`
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new StoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the store.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCInvalidPath                         // 4: The path could not be parsed.
	RetCInvalidValue                        // 5: The value is not valid JSON or contains invalid keys.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCInvalidPath:
		return "InvalidPath"
	case RetCInvalidValue:
		return "InvalidValue"
	default:
		return "Unknown"
	}
}
