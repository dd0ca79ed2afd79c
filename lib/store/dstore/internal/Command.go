package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/nora/lib/store"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTSet                  CommandType = iota // Replace the value at a path.
	CommandTUpdate                                  // Merge children into the node at a path.
	CommandTRemove                                  // Remove the node at a path.
	CommandTCompareAndSet                           // Replace the value at a path if its hash matches.
	CommandTRegisterOnDisconnect                    // Queue a write for a session.
	CommandTCancelOnDisconnect                      // Drop queued writes of a session below a path.
	CommandTDisconnect                              // Apply and forget the queued writes of a session.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTSet:
		return "Set"
	case CommandTUpdate:
		return "Update"
	case CommandTRemove:
		return "Remove"
	case CommandTCompareAndSet:
		return "CompareAndSet"
	case CommandTRegisterOnDisconnect:
		return "RegisterOnDisconnect"
	case CommandTCancelOnDisconnect:
		return "CancelOnDisconnect"
	case CommandTDisconnect:
		return "Disconnect"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToOperationType converts a plain write command to the corresponding store.OperationType.
func (ct CommandType) ToOperationType() (store.OperationType, error) {
	switch ct {
	case CommandTSet:
		return store.OpSet, nil
	case CommandTUpdate:
		return store.OpUpdate, nil
	case CommandTRemove:
		return store.OpRemove, nil
	default:
		return 0, fmt.Errorf("command type %s is not a plain write", ct)
	}
}

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type    CommandType
	OpType  store.OperationType // only for CommandTRegisterOnDisconnect
	Hash    uint64              // only for CommandTCompareAndSet
	Path    string
	Session string
	Value   []byte
}

// headerSize is Type + OpType + Hash + PathLen
const headerSize = 1 + 1 + 8 + 4

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	size := headerSize + len(command.Path) + 4 + len(command.Session)
	if command.Value != nil {
		size += len(command.Value)
	}
	return size
}

// Operation returns the store operation described by a write or register command.
func (command *Command) Operation() store.Operation {
	op := store.Operation{Type: command.OpType, Path: command.Path, Value: command.Value}
	if t, err := command.Type.ToOperationType(); err == nil {
		op.Type = t
	}
	return op
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for command type,
// 1 byte for operation type,
// 8 bytes for the expected hash (big endian),
// 4 bytes for path length (big endian),
// N bytes for path data,
// 4 bytes for session length (big endian),
// N bytes for session data,
// N bytes for value data (optional)
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	result[1] = byte(command.OpType)
	binary.BigEndian.PutUint64(result[2:10], command.Hash)

	pos := 10
	binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(command.Path)))
	pos += 4
	pos += copy(result[pos:], command.Path)

	binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(command.Session)))
	pos += 4
	pos += copy(result[pos:], command.Session)

	if command.Value != nil {
		copy(result[pos:], command.Value)
	}

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	command.OpType = store.OperationType(data[1])
	command.Hash = binary.BigEndian.Uint64(data[2:10])

	pos := 10
	pathLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if len(data) < pos+pathLen+4 {
		return fmt.Errorf("data too short for path of length %d", pathLen)
	}
	command.Path = string(data[pos : pos+pathLen])
	pos += pathLen

	sessionLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if len(data) < pos+sessionLen {
		return fmt.Errorf("data too short for session of length %d", sessionLen)
	}
	command.Session = string(data[pos : pos+sessionLen])
	pos += sessionLen

	if len(data) > pos {
		valueLen := len(data) - pos
		// Reuse existing buffer if possible to reduce allocations
		if command.Value == nil || cap(command.Value) < valueLen {
			command.Value = make([]byte, valueLen)
		} else {
			command.Value = command.Value[:valueLen]
		}
		copy(command.Value, data[pos:])
	} else {
		command.Value = nil
	}

	return nil
}
