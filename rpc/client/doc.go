// Package client implements the RPC client of nora. RPCStore implements store.IStore
// for a database served by a remote server, so a realtime.Database can run on top of it
// exactly like on a local store.
//
// Key Components:
//
//   - NewRPCStore: Factory function that connects the transport and returns a store
//     that forwards all operations to the configured database of the server.
//
//   - Watch: Long polls the server. A single request waits at most half of the client
//     timeout, so slow watches never trip the timeout of the transport.
//
//   - Keepalive: Sessions with registered on-disconnect writes are kept alive by a
//     background goroutine. If the client dies, the server applies the writes once
//     the lease of the session ran out.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond:   5,
//	  KeepaliveSecond: 10,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:8080"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	s, err := client.NewRPCStore(100, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer s.Close()
//
//	_ = s.Set("/users/alice", []byte(`{"name":"Alice"}`))
//	value, _ := s.Get("/users/alice/name")
//
// Errors of the remote store keep their store.RetCode, errors.As with a *store.Error
// works the same as on a local store.
//
// Thread Safety:
//
//	RPCStore is safe for concurrent use by multiple goroutines.
package client
