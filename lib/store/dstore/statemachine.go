package dstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ValentinKolb/nora/lib/db"
	"github.com/ValentinKolb/nora/lib/store"
	"github.com/ValentinKolb/nora/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// TreeStateMachine is a state machine implementation for Dragonboat RAFT
type TreeStateMachine struct {
	replicaID uint64
	shardID   uint64

	mu       sync.RWMutex
	tree     *db.Tree                     // the actual data storage
	sessions map[string][]store.Operation // queued on-disconnect writes per session
	notifier *store.Notifier              // wakes up watchers on the local replica
}

// snapshot is the serialized state of a TreeStateMachine
type snapshot struct {
	Tree     json.RawMessage              `json:"tree"`
	Sessions map[string][]store.Operation `json:"sessions,omitempty"`
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host.
// The factory pattern is used to enable the caller to pass an interchangeable dbFactory.
// Every applied write is announced on notifier so that the store of the same node host can serve Watch requests.
func CreateStateMachineFactory(dbFactory store.DBFactory, notifier *store.Notifier) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &TreeStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			tree:      dbFactory(),
			sessions:  make(map[string][]store.Operation),
			notifier:  notifier,
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the corresponding tree method.
func (fsm *TreeStateMachine) Lookup(itf interface{}) (interface{}, error) {

	// try to parse Query into Query struct
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	switch q.Type {
	case internal.QueryTGet:
		p, err := db.ParsePath(q.Path)
		if err != nil {
			return nil, store.NewError(store.RetCInvalidPath, err.Error())
		}
		fsm.mu.RLock()
		defer fsm.mu.RUnlock()
		return db.Encode(fsm.tree.Get(p)), nil
	case internal.QueryTGetDBInfo:
		fsm.mu.RLock()
		defer fsm.mu.RUnlock()
		info := fsm.tree.GetInfo()
		info.Metadata = map[string]uint64{
			"shard":    fsm.shardID,
			"replica":  fsm.replicaID,
			"sessions": uint64(len(fsm.sessions)),
		}
		return info, nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update handles write commands on the tree.
// All write operations are serialized into []byte and are accessible via the entries struct.
// Watchers are notified after the lock was released.
func (fsm *TreeStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	var written []db.Path
	cmd := internal.Command{}

	fsm.mu.Lock()
	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
			continue
		}

		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = sm.Result{
				Value: uint64(store.RetCInternalError),
				Data:  []byte(fmt.Sprintf("failed to deserialize command: %v", err)),
			}
			continue
		}

		var paths []db.Path
		entries[idx].Result, paths = fsm.apply(&cmd)
		written = append(written, paths...)
	}
	fsm.mu.Unlock()

	for _, p := range written {
		fsm.notifier.Notify(p)
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("Statemachine took long to update. Batch updated %d entries, took %.2fms:", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// apply executes a single command. The caller must hold the write lock.
// It returns the result for the entry and the paths that were written.
func (fsm *TreeStateMachine) apply(cmd *internal.Command) (sm.Result, []db.Path) {
	switch cmd.Type {
	case internal.CommandTSet, internal.CommandTUpdate, internal.CommandTRemove:
		m, err := store.ParseOperation(cmd.Operation())
		if err != nil {
			return errorResult(err), nil
		}
		if err := m.Apply(fsm.tree); err != nil {
			return errorResult(err), nil
		}
		return sm.Result{
			Value: uint64(store.RetCSuccess),
			Data:  []byte(fmt.Sprintf("%s: path=%s", m.Type, m.Path)),
		}, []db.Path{m.Path}

	case internal.CommandTCompareAndSet:
		m, err := store.ParseOperation(store.Operation{Type: store.OpSet, Path: cmd.Path, Value: cmd.Value})
		if err != nil {
			return errorResult(err), nil
		}
		current := fsm.tree.Get(m.Path)
		if db.Hash(current) != cmd.Hash {
			return sm.Result{Value: uint64(store.RetCSuccess), Data: encodeCASResult(false, db.Encode(current))}, nil
		}
		fsm.tree.Set(m.Path, m.Value)
		return sm.Result{Value: uint64(store.RetCSuccess), Data: encodeCASResult(true, db.Encode(m.Value))}, []db.Path{m.Path}

	case internal.CommandTRegisterOnDisconnect:
		op := cmd.Operation()
		if _, err := store.ParseOperation(op); err != nil {
			return errorResult(err), nil
		}
		// the value buffer is reused by the next Deserialize
		op.Value = append([]byte(nil), op.Value...)
		fsm.sessions[cmd.Session] = append(fsm.sessions[cmd.Session], op)
		return sm.Result{
			Value: uint64(store.RetCSuccess),
			Data:  []byte(fmt.Sprintf("registered %s: session=%s path=%s", op.Type, cmd.Session, op.Path)),
		}, nil

	case internal.CommandTCancelOnDisconnect:
		p, err := db.ParsePath(cmd.Path)
		if err != nil {
			return errorResult(store.NewError(store.RetCInvalidPath, err.Error())), nil
		}
		fsm.sessions[cmd.Session] = store.FilterOperations(fsm.sessions[cmd.Session], p)
		if len(fsm.sessions[cmd.Session]) == 0 {
			delete(fsm.sessions, cmd.Session)
		}
		return sm.Result{
			Value: uint64(store.RetCSuccess),
			Data:  []byte(fmt.Sprintf("canceled: session=%s path=%s", cmd.Session, p)),
		}, nil

	case internal.CommandTDisconnect:
		ops := fsm.sessions[cmd.Session]
		delete(fsm.sessions, cmd.Session)
		written := make([]db.Path, 0, len(ops))
		for _, op := range ops {
			m, err := store.ParseOperation(op)
			if err != nil {
				continue
			}
			if err := m.Apply(fsm.tree); err != nil {
				continue
			}
			written = append(written, m.Path)
		}
		return sm.Result{
			Value: uint64(store.RetCSuccess),
			Data:  []byte(fmt.Sprintf("disconnected: session=%s applied=%d", cmd.Session, len(written))),
		}, written

	default:
		return sm.Result{
			Value: uint64(store.RetCInvalidOperation),
			Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
		}, nil
	}
}

// errorResult converts an error into a state machine result, keeping the code of store errors
func errorResult(err error) sm.Result {
	if se, ok := err.(*store.Error); ok {
		return sm.Result{Value: uint64(se.Code), Data: []byte(se.Msg)}
	}
	return sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(err.Error())}
}

// encodeCASResult prefixes the current value with a single byte flag (1 = committed)
func encodeCASResult(ok bool, current []byte) []byte {
	out := make([]byte, 1+len(current))
	if ok {
		out[0] = 1
	}
	copy(out[1:], current)
	return out
}

// decodeCASResult is the inverse of encodeCASResult
func decodeCASResult(data []byte) (bool, []byte, error) {
	if len(data) == 0 {
		return false, nil, store.NewError(store.RetCInternalError, "empty compare-and-set result")
	}
	return data[0] == 1, data[1:], nil
}

// PrepareSnapshot copies the state while updates are blocked, the copy is then written concurrently.
func (fsm *TreeStateMachine) PrepareSnapshot() (interface{}, error) {
	fsm.mu.RLock()
	defer fsm.mu.RUnlock()

	var buf bytes.Buffer
	if err := fsm.tree.Save(&buf); err != nil {
		return nil, err
	}
	sessions := make(map[string][]store.Operation, len(fsm.sessions))
	for s, ops := range fsm.sessions {
		sessions[s] = append([]store.Operation(nil), ops...)
	}
	return &snapshot{Tree: buf.Bytes(), Sessions: sessions}, nil
}

// SaveSnapshot writes the state captured by PrepareSnapshot to the writer
func (fsm *TreeStateMachine) SaveSnapshot(ctx interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	snap, ok := ctx.(*snapshot)
	if !ok {
		return fmt.Errorf("invalid snapshot context: %T", ctx)
	}
	return json.NewEncoder(writer).Encode(snap)
}

// RecoverFromSnapshot replaces the state with the snapshot read from r and wakes up all watchers.
func (fsm *TreeStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	fsm.mu.Lock()
	if err := fsm.tree.Load(bytes.NewReader(snap.Tree)); err != nil {
		fsm.mu.Unlock()
		return err
	}
	fsm.sessions = snap.Sessions
	if fsm.sessions == nil {
		fsm.sessions = make(map[string][]store.Operation)
	}
	fsm.mu.Unlock()

	fsm.notifier.Notify(db.Path{})
	return nil
}

// Close performs any necessary cleanup.
func (fsm *TreeStateMachine) Close() error {
	return nil
}
