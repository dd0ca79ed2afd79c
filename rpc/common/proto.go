package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/nora/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Path    string `json:"path,omitempty"`    // Used for: all tree operations
	Value   []byte `json:"value,omitempty"`   // Used for: Set, Update, CompareAndSet (request), Get, Watch, CompareAndSet (response)
	Hash    uint64 `json:"hash,omitempty"`    // Used for: CompareAndSet, Watch
	Session string `json:"session,omitempty"` // Used for: on-disconnect operations and keepalives
	OpType  uint8  `json:"op_type,omitempty"` // Used for: RegisterOnDisconnect
	WaitMs  uint64 `json:"wait_ms,omitempty"` // Used for: Watch

	// Response only fields
	Ok   bool   `json:"ok,omitempty"`   // Used for: CompareAndSet, Watch responses
	Err  string `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message
	Code uint64 `json:"code,omitempty"` // store.RetCode of the error, 0 if the error did not come from the store

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: DBInfo responses (JSON encoded db.DatabaseInfo)
}

// Error converts the error fields of a response back into an error.
// Errors raised by the store keep their return code.
func (m *Message) Error() error {
	if m.Err == "" && m.MsgType != MsgTError {
		return nil
	}
	if m.Code != 0 {
		return store.NewError(store.RetCode(m.Code), m.Err)
	}
	if m.Err == "" {
		return errors.New("remote error without message")
	}
	return errors.New(m.Err)
}

// setErr fills the error fields of a response
func (m *Message) setErr(err error) *Message {
	if err == nil {
		return m
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		m.Err = storeErr.Msg
		m.Code = uint64(storeErr.Code)
	} else {
		m.Err = err.Error()
	}
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewGetRequest creates a new Get request
func NewGetRequest(path string) *Message {
	return &Message{
		MsgType: MsgTDBGet,
		Path:    path,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTDBGet,
		Value:   value,
	}
	return msg.setErr(err)
}

// NewSetRequest creates a new Set request
func NewSetRequest(path string, value []byte) *Message {
	return &Message{
		MsgType: MsgTDBSet,
		Path:    path,
		Value:   value,
	}
}

// NewUpdateRequest creates a new Update request. values is a JSON object of relative paths.
func NewUpdateRequest(path string, values []byte) *Message {
	return &Message{
		MsgType: MsgTDBUpdate,
		Path:    path,
		Value:   values,
	}
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(path string) *Message {
	return &Message{
		MsgType: MsgTDBRemove,
		Path:    path,
	}
}

// NewCompareAndSetRequest creates a new CompareAndSet request
func NewCompareAndSetRequest(path string, expectedHash uint64, value []byte) *Message {
	return &Message{
		MsgType: MsgTDBCompareAndSet,
		Path:    path,
		Hash:    expectedHash,
		Value:   value,
	}
}

// NewCompareAndSetResponse creates a new CompareAndSet response.
// On a mismatch, value carries the value that was found instead.
func NewCompareAndSetResponse(ok bool, current []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTDBCompareAndSet,
		Ok:      ok,
		Value:   current,
	}
	return msg.setErr(err)
}

// NewWatchRequest creates a new Watch request. The server answers after at most waitMs milliseconds.
func NewWatchRequest(path string, knownHash uint64, waitMs uint64) *Message {
	return &Message{
		MsgType: MsgTDBWatch,
		Path:    path,
		Hash:    knownHash,
		WaitMs:  waitMs,
	}
}

// NewWatchResponse creates a new Watch response
func NewWatchResponse(value []byte, changed bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTDBWatch,
		Value:   value,
		Ok:      changed,
	}
	return msg.setErr(err)
}

// NewRegisterOnDisconnectRequest creates a new RegisterOnDisconnect request
func NewRegisterOnDisconnectRequest(session string, op store.Operation) *Message {
	return &Message{
		MsgType: MsgTDBRegisterOnDisconnect,
		Session: session,
		OpType:  uint8(op.Type),
		Path:    op.Path,
		Value:   op.Value,
	}
}

// Operation returns the deferred operation carried by a RegisterOnDisconnect request
func (m *Message) Operation() store.Operation {
	return store.Operation{
		Type:  store.OperationType(m.OpType),
		Path:  m.Path,
		Value: m.Value,
	}
}

// NewCancelOnDisconnectRequest creates a new CancelOnDisconnect request
func NewCancelOnDisconnectRequest(session string, path string) *Message {
	return &Message{
		MsgType: MsgTDBCancelOnDisconnect,
		Session: session,
		Path:    path,
	}
}

// NewDisconnectRequest creates a new Disconnect request
func NewDisconnectRequest(session string) *Message {
	return &Message{
		MsgType: MsgTDBDisconnect,
		Session: session,
	}
}

// NewKeepaliveRequest creates a new Keepalive request that renews the lease of a session
func NewKeepaliveRequest(session string) *Message {
	return &Message{
		MsgType: MsgTDBKeepalive,
		Session: session,
	}
}

// NewDBInfoRequest creates a new DBInfo request
func NewDBInfoRequest() *Message {
	return &Message{
		MsgType: MsgTDBInfo,
	}
}

// NewDBInfoResponse creates a new DBInfo response
func NewDBInfoResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTDBInfo,
		Meta:    meta,
	}
	return msg.setErr(err)
}

// NewResponse creates a response without payload, used for all plain write operations
func NewResponse(msgType MessageType, err error) *Message {
	msg := &Message{
		MsgType: msgType,
	}
	return msg.setErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTSuccess:
		return "success"
	case MsgTError:
		return "error"
	case MsgTDBGet:
		return "get"
	case MsgTDBSet:
		return "set"
	case MsgTDBUpdate:
		return "update"
	case MsgTDBRemove:
		return "remove"
	case MsgTDBCompareAndSet:
		return "compareAndSet"
	case MsgTDBWatch:
		return "watch"
	case MsgTDBRegisterOnDisconnect:
		return "registerOnDisconnect"
	case MsgTDBCancelOnDisconnect:
		return "cancelOnDisconnect"
	case MsgTDBDisconnect:
		return "disconnect"
	case MsgTDBKeepalive:
		return "keepalive"
	case MsgTDBInfo:
		return "info"
	case MsgTCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for candidate := MsgTSuccess; candidate <= MsgTCustom; candidate++ {
		if candidate.String() == s {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTDBGet                  // Read the value at a path
	MsgTDBSet                  // Replace the value at a path
	MsgTDBUpdate               // Merge children into the node at a path
	MsgTDBRemove               // Remove the node at a path
	MsgTDBCompareAndSet        // Replace the value at a path if its hash matches
	MsgTDBWatch                // Wait for the value at a path to change
	MsgTDBRegisterOnDisconnect // Queue a write for when a session disconnects
	MsgTDBCancelOnDisconnect   // Drop queued writes of a session
	MsgTDBDisconnect           // Apply queued writes of a session
	MsgTDBKeepalive            // Renew the lease of a session
	MsgTDBInfo                 // Read metadata about the database

	// Custom operations

	MsgTCustom // Custom operation type
)
