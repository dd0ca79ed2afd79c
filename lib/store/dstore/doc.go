// Package dstore implements a distributed, fault-tolerant JSON tree store using
// the Dragonboat RAFT consensus library. It provides a strongly consistent implementation
// of the store.IStore interface that can operate across multiple nodes while
// maintaining linearizable consistency.
//
// Architecture:
//
// The dstore implementation consists of three main components:
//
//   - Store Client: Implements the store.IStore interface and communicates with
//     the RAFT cluster. It serializes operations into commands, sends them to the
//     consensus layer, and processes responses.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine implementation that processes
//     commands and queries on each node. The state machine contains the db.Tree and the
//     queued on-disconnect writes of all sessions, so both survive a leader change.
//
//   - Communication Protocol: Defined in the internal package, this consists of Command
//     and Query structures with serialization logic for transmitting operations across
//     the network.
//
// Write Operations:
//
//	All write operations (Set, Update, Remove, CompareAndSet and the session commands) follow this flow:
//
//	1. The operation is serialized into a Command structure
//	2. The Command is proposed to the RAFT cluster via SyncPropose
//	3. The leader node replicates the command to a majority of followers
//	4. Once committed, the command is executed on the state machine on each node (Update method in statemachine.go)
//	5. The result is returned to the client
//
//	CompareAndSet is decided inside the state machine, so two clients racing on the same
//	hash can never both win.
//
// Read Operations:
//
//   - Linearizable Reads: Get uses SyncRead which ensures that the node processing the
//     read has applied all committed log entries locally.
//
//   - Stale Reads: GetDBInfo and the reads of Watch use StaleRead. Watch is woken up by the
//     state machine of the same node host after it applied a related write, which is why
//     NewDistributedStore takes the notifier that was passed to CreateStateMachineFactory.
//
// Error Handling and Retries:
//
//	When Dragonboat returns ErrSystemBusy, the operation is retried after a short delay,
//	up to a fixed number of attempts. All operations have a configurable timeout.
//
// Snapshotting and Recovery:
//
//	PrepareSnapshot copies the tree and the session queues while updates are blocked,
//	SaveSnapshot then writes the copy as JSON. RecoverFromSnapshot replaces the state and
//	wakes up every watcher, since any path may have changed.
//
// Usage:
//
//	  nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	  if err != nil { ... }
//
//	  notifier := store.NewNotifier()
//	  err = nh.StartConcurrentReplica(
//	      clusterMembers,
//	      false,
//	      dstore.CreateStateMachineFactory(db.NewTree, notifier),
//	      shardConfig)
//	  if err != nil { ... }
//
//	  s := dstore.NewDistributedStore(nh, shardID, 5*time.Second, notifier)
//
// For scenarios where distributed consensus is not required, consider using the simpler
// and faster lstore package, which provides a single-node not-persistent implementation of the
// same interface.
package dstore
