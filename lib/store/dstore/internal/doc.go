// Package internal provides the communication protocol structures and serialization
// logic for the dstore package. It defines the wire format used to transmit operations
// between the store client and the distributed state machine.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
// The package consists of two main components:
//
//   - Command System: Defines write operations (Set, Update, Remove, CompareAndSet and the
//     on-disconnect session commands) that modify the state of the machine. Commands are
//     serialized and proposed to the RAFT cluster, executed on the state machine, and
//     produce results that are returned to the client.
//
//   - Query System: Defines read operations (Get, GetDBInfo) that retrieve data from
//     the tree without modifying it. Queries are executed locally on the
//     state machine and therefore do not require serialization.
//
// Command Format:
//
//	- 1 byte: Command type
//	- 1 byte: Operation type (only used to register on-disconnect writes)
//	- 8 bytes: Expected hash (uint64, big endian, only used by CompareAndSet)
//	- 4 bytes: Path length (uint32, big endian)
//	- N bytes: Path
//	- 4 bytes: Session length (uint32, big endian)
//	- N bytes: Session
//	- M bytes: Value (optional, JSON)
//
// Thread Safety:
//
//	The types in this package are not thread-safe. The RAFT protocol ensures sequential
//	processing of commands on the state machine.
package internal
