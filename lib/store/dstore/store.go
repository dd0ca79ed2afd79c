package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/nora/lib/db"
	"github.com/ValentinKolb/nora/lib/store"
	"github.com/ValentinKolb/nora/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the concrete implementation of the IStore interface.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh       *dragonboat.NodeHost
	shardID  uint64
	cs       *client.Session
	timeout  time.Duration
	notifier *store.Notifier
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes. The notifier must be the one passed to CreateStateMachineFactory for the same shard.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration, notifier *store.Notifier) store.IStore {
	cs := nh.GetNoOPSession(shardID)
	return &storeImpl{
		nh:       nh,
		shardID:  shardID,
		cs:       cs,
		timeout:  timeout,
		notifier: notifier,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write serializes a Command and sends it via SyncPropose.
// It returns the result of the state machine or a *store.Error if an error occurs.
func (s *storeImpl) write(cmd internal.Command) (sm.Result, error) {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

		res, err := s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return sm.Result{}, store.NewError(store.RetCInternalError, err.Error())
		}
		if res.Value != uint64(store.RetCSuccess) {
			return sm.Result{}, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return res, nil
	}
	return sm.Result{}, store.NewError(store.RetCInternalError, "timeout")
}

// read is a generic helper function queries the statemachine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragonboat) by default to Query the state machine.
// If linearizability is not required, the stale parameter can be set to true to use the faster StaleRead function.
//
// Is the read operation fails due to a system busy error, the function retries up to 5 times.
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		// Query the state machine, use StaleRead if stale is set otherwise use SyncRead (default)
		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			var se *store.Error
			if errors.As(err, &se) {
				return zero, se
			}
			return zero, store.NewError(store.RetCInternalError, err.Error())
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(path string) ([]byte, error) {
	return read[[]byte](s, internal.Query{Type: internal.QueryTGet, Path: path}, false)
}

func (s *storeImpl) Set(path string, value []byte) error {
	_, err := s.write(internal.Command{Type: internal.CommandTSet, Path: path, Value: value})
	return err
}

func (s *storeImpl) Update(path string, values []byte) error {
	_, err := s.write(internal.Command{Type: internal.CommandTUpdate, Path: path, Value: values})
	return err
}

func (s *storeImpl) Remove(path string) error {
	_, err := s.write(internal.Command{Type: internal.CommandTRemove, Path: path})
	return err
}

func (s *storeImpl) CompareAndSet(path string, expectedHash uint64, value []byte) (bool, []byte, error) {
	res, err := s.write(internal.Command{
		Type:  internal.CommandTCompareAndSet,
		Path:  path,
		Hash:  expectedHash,
		Value: value,
	})
	if err != nil {
		return false, nil, err
	}
	return decodeCASResult(res.Data)
}

// Watch reads from the local replica. Notifications are raised when the local replica applies
// a write, so a stale read taken after a notification already contains that write.
func (s *storeImpl) Watch(ctx context.Context, path string, knownHash uint64) ([]byte, bool, error) {
	return store.Watch(ctx, s.notifier, path, knownHash, func(path string) ([]byte, error) {
		return read[[]byte](s, internal.Query{Type: internal.QueryTGet, Path: path}, true)
	})
}

func (s *storeImpl) RegisterOnDisconnect(session string, op store.Operation) error {
	_, err := s.write(internal.Command{
		Type:    internal.CommandTRegisterOnDisconnect,
		OpType:  op.Type,
		Path:    op.Path,
		Session: session,
		Value:   op.Value,
	})
	return err
}

func (s *storeImpl) CancelOnDisconnect(session string, path string) error {
	_, err := s.write(internal.Command{Type: internal.CommandTCancelOnDisconnect, Path: path, Session: session})
	return err
}

func (s *storeImpl) Disconnect(session string) error {
	_, err := s.write(internal.Command{Type: internal.CommandTDisconnect, Session: session})
	return err
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{
			Type: internal.QueryTGetDBInfo,
		},
		true, // Note: allow for stale reads
	)
}
