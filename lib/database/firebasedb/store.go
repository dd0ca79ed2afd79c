package firebasedb

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	fdb "firebase.google.com/go/v4/db"
	"github.com/ValentinKolb/nora/lib/db"
	"github.com/ValentinKolb/nora/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("firebasedb")

const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = time.Second
)

// errHashMismatch aborts a Firebase transaction whose value changed since it was read.
var errHashMismatch = errors.New("hash mismatch")

type storeImpl struct {
	client       *fdb.Client
	timeout      time.Duration
	pollInterval time.Duration
}

// NewStore returns a store.IStore on top of a Firebase Realtime Database.
// Compare-and-set uses Firebase transactions, Watch polls the location every pollInterval.
// Non-positive durations are replaced by DefaultTimeout and DefaultPollInterval.
// Firebase binds on-disconnect writes to a realtime connection, which the Admin SDK does not
// hold, so the session operations fail with RetCUnsupportedOperation.
func NewStore(client *fdb.Client, timeout, pollInterval time.Duration) store.IStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &storeImpl{client: client, timeout: timeout, pollInterval: pollInterval}
}

// ref validates path and returns the Firebase reference for it.
func (s *storeImpl) ref(path string) (*fdb.Ref, error) {
	p, err := db.ParsePath(path)
	if err != nil {
		return nil, store.NewError(store.RetCInvalidPath, err.Error())
	}
	return s.client.NewRef(strings.TrimPrefix(p.String(), "/")), nil
}

func (s *storeImpl) withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func internalError(err error) error {
	return store.NewError(store.RetCInternalError, err.Error())
}

// canonical converts a Firebase response to canonical JSON.
func canonical(raw json.RawMessage) ([]byte, error) {
	v, err := db.Decode(raw)
	if err != nil {
		return nil, err
	}
	return db.Encode(v), nil
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(path string) ([]byte, error) {
	ref, err := s.ref(path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout()
	defer cancel()

	var raw json.RawMessage
	if err := ref.Get(ctx, &raw); err != nil {
		return nil, internalError(err)
	}
	b, err := canonical(raw)
	if err != nil {
		return nil, internalError(err)
	}
	return b, nil
}

func (s *storeImpl) Set(path string, value []byte) error {
	m, err := store.ParseOperation(store.Operation{Type: store.OpSet, Path: path, Value: value})
	if err != nil {
		return err
	}
	ref, err := s.ref(path)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout()
	defer cancel()

	if m.Value == nil {
		err = ref.Delete(ctx)
	} else {
		err = ref.Set(ctx, json.RawMessage(db.Encode(m.Value)))
	}
	if err != nil {
		return internalError(err)
	}
	return nil
}

func (s *storeImpl) Update(path string, values []byte) error {
	m, err := store.ParseOperation(store.Operation{Type: store.OpUpdate, Path: path, Value: values})
	if err != nil {
		return err
	}
	if len(m.Children) == 0 {
		return nil
	}
	ref, err := s.ref(path)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout()
	defer cancel()

	children := make(map[string]interface{}, len(m.Children))
	for key, v := range m.Children {
		children[key] = json.RawMessage(db.Encode(v))
	}
	if err := ref.Update(ctx, children); err != nil {
		return internalError(err)
	}
	return nil
}

func (s *storeImpl) Remove(path string) error {
	ref, err := s.ref(path)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout()
	defer cancel()

	if err := ref.Delete(ctx); err != nil {
		return internalError(err)
	}
	return nil
}

func (s *storeImpl) CompareAndSet(path string, expectedHash uint64, value []byte) (bool, []byte, error) {
	m, err := store.ParseOperation(store.Operation{Type: store.OpSet, Path: path, Value: value})
	if err != nil {
		return false, nil, err
	}
	ref, err := s.ref(path)
	if err != nil {
		return false, nil, err
	}
	ctx, cancel := s.withTimeout()
	defer cancel()

	var current []byte
	err = ref.Transaction(ctx, func(node fdb.TransactionNode) (interface{}, error) {
		var raw json.RawMessage
		if err := node.Unmarshal(&raw); err != nil {
			return nil, err
		}
		next, actual, err := compareAndSwap(raw, expectedHash, m.Value)
		current = actual
		return next, err
	})

	switch {
	case errors.Is(err, errHashMismatch):
		return false, current, nil
	case err != nil:
		return false, nil, internalError(err)
	default:
		return true, db.Encode(m.Value), nil
	}
}

// compareAndSwap decides a compare-and-set inside a Firebase transaction. It returns the
// value to write, or errHashMismatch together with the canonical current value.
func compareAndSwap(raw json.RawMessage, expectedHash uint64, value any) (interface{}, []byte, error) {
	current, err := canonical(raw)
	if err != nil {
		return nil, nil, err
	}
	if db.HashBytes(current) != expectedHash {
		return nil, current, errHashMismatch
	}
	if value == nil {
		return nil, current, nil
	}
	return json.RawMessage(db.Encode(value)), current, nil
}

// Watch polls the location until its value changes.
func (s *storeImpl) Watch(ctx context.Context, path string, knownHash uint64) ([]byte, bool, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		value, err := s.Get(path)
		if err != nil {
			return nil, false, err
		}
		if db.HashBytes(value) != knownHash {
			return value, true, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return value, false, nil
		}
	}
}

func (s *storeImpl) RegisterOnDisconnect(string, store.Operation) error {
	return store.NewError(store.RetCUnsupportedOperation, "on-disconnect writes need a realtime connection")
}

func (s *storeImpl) CancelOnDisconnect(string, string) error {
	return store.NewError(store.RetCUnsupportedOperation, "on-disconnect writes need a realtime connection")
}

// Disconnect has nothing to apply since no write can be registered.
func (s *storeImpl) Disconnect(session string) error {
	log.Debugf("session %s disconnected", session)
	return nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return db.DatabaseInfo{}, store.NewError(store.RetCUnsupportedOperation, "firebase does not expose database statistics")
}
