// Package server implements the RPC server of nora. A single server serves any number
// of databases, each addressed by its id.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface with the Handle method that processes a request
//     against the store.IStore of a database.
//
//   - NewIStoreServerAdapter: Adapter translating requests into store.IStore calls.
//     Watches are long polls bounded by the wait time of the request.
//
//   - NewRPCServer: Factory function creating a server with the given transport and
//     serializer.
//
// Database Types:
//
//   - DatabaseTypeLocal: The tree lives in memory of this node only.
//
//   - DatabaseTypeReplicated: The tree is replicated with raft (dragonboat). The raft
//     configuration (RTTMillisecond, SnapshotEntries, CompactionOverhead, DataDir,
//     ReplicaID and ClusterMembers) must be set. The shard id equals the database id.
//
// Sessions:
//
//	Requests that carry a session renew its lease. Sessions that are not seen for
//	SessionTTLSecond are disconnected, which applies their on-disconnect writes.
//	A ttl of zero disables expiry.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Databases: []common.ServerDatabase{
//	    {ID: 100, Type: common.DatabaseTypeLocal},
//	  },
//	  TimeoutSecond:    5,
//	  SessionTTLSecond: 30,
//	  Transport:        common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	}
//
//	s := server.NewRPCServer(config, tcp.NewTCPDefaultServerTransport(), serializer.NewBinarySerializer())
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// If MetricsEndpoint is set, request counters, durations and session gauges are
// served in the prometheus text format on /metrics.
package server
