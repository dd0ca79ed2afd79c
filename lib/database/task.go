package database

import "fmt"

// --------------------------------------------------------------------------
// Event Types
// --------------------------------------------------------------------------

// DataEventType is the kind of change a listener is interested in.
type DataEventType uint8

const (
	EventValue        DataEventType = iota // Any change of the value at the path (or below).
	EventChildAdded                        // A direct child was added.
	EventChildChanged                      // The value of a direct child changed.
	EventChildRemoved                      // A direct child was removed.
	EventChildMoved                        // A direct child changed its sort position.
)

func (e DataEventType) String() string {
	switch e {
	case EventValue:
		return "value"
	case EventChildAdded:
		return "child_added"
	case EventChildChanged:
		return "child_changed"
	case EventChildRemoved:
		return "child_removed"
	case EventChildMoved:
		return "child_moved"
	default:
		return fmt.Sprintf("unknown(%d)", e)
	}
}

// ParseDataEventType is the inverse of DataEventType.String.
func ParseDataEventType(s string) (DataEventType, error) {
	for e := EventValue; e <= EventChildMoved; e++ {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// --------------------------------------------------------------------------
// Tasks
// --------------------------------------------------------------------------

// Task is the operation a Target performs. The set of tasks is closed, the only
// implementations are the six types below.
type Task interface {
	isTask()
}

// Observe continuously listens for events of the given type.
type Observe struct{ Event DataEventType }

// ObserveOnce reads the current state matching the given event type once.
type ObserveOnce struct{ Event DataEventType }

// SetValue overwrites the node with Value. A nil Value removes the node.
type SetValue struct{ Value any }

// UpdateChildValues merges Values into the node. Keys may be relative paths.
type UpdateChildValues struct{ Values map[string]any }

// RemoveValue deletes the node.
type RemoveValue struct{}

// Transaction atomically modifies the node with Block.
type Transaction struct{ Block TransactionBlock }

func (Observe) isTask()           {}
func (ObserveOnce) isTask()       {}
func (SetValue) isTask()          {}
func (UpdateChildValues) isTask() {}
func (RemoveValue) isTask()       {}
func (Transaction) isTask()       {}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

// TransactionBlock receives the current value of a node and decides what to commit.
// It may be called more than once if the node is modified concurrently.
type TransactionBlock func(current MutableData) TransactionResult

// TransactionResult is returned by a TransactionBlock.
type TransactionResult struct {
	data    MutableData
	aborted bool
}

// Success commits the value held by data.
func Success(data MutableData) TransactionResult {
	return TransactionResult{data: data}
}

// Abort ends the transaction without writing anything.
func Abort() TransactionResult {
	return TransactionResult{aborted: true}
}

// IsAborted reports whether the block gave up.
func (r TransactionResult) IsAborted() bool {
	return r.aborted
}

// Data returns the value to commit, nil if the transaction was aborted.
func (r TransactionResult) Data() MutableData {
	return r.data
}
