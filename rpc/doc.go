// Package rpc makes nora databases available over the network. It is the layer between
// the realtime database on a client and the stores on the servers.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol, configuration structures and logging.
//
//   - transport: Network communication with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization (Binary, JSON, GOB).
//
//   - client: RPCStore, a store.IStore backed by a remote database.
//
//   - server: The server that routes requests to its databases.
package rpc
