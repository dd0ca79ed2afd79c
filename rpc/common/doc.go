// Package common provides the data structures shared by the rpc client, the rpc server
// and the cli.
//
// Key Components:
//
//   - Message: The single structure used for all requests and responses. Which fields are
//     set depends on the MessageType. Errors raised by a store travel with their
//     store.RetCode so that Message.Error restores an equivalent *store.Error on the client.
//
//   - MessageType: Enumeration of all operations of the store.IStore interface plus
//     keepalives for session leases. Serialized as a string in JSON.
//
//   - ServerConfig: Configuration of a server node, including the databases it serves,
//     RAFT parameters for replicated databases, session lease settings and the
//     transport. Provides helpers for converting to Dragonboat configurations.
//
//   - ClientConfig: Configuration of a client, controlling endpoints, timeouts,
//     retries and keepalives.
//
//   - Logger: Implementation of dragonboats logger.ILogger so that the raft library and
//     all nora packages log in the same format.
package common
