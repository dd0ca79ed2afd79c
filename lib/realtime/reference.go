package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/nora/lib/database"
	"github.com/ValentinKolb/nora/lib/db"
	"github.com/ValentinKolb/nora/lib/store"
)

// reference is a location in the database. A reference with err set stands for an invalid
// path and reports err from every operation.
type reference struct {
	db   *Database
	path db.Path
	raw  string
	err  error
}

func (r *reference) Ref() database.Reference { return r }

func (r *reference) Path() string {
	if r.err != nil {
		return r.raw
	}
	return r.path.String()
}

func (r *reference) Key() string { return r.path.Key() }

func (r *reference) child(key string) *reference {
	return &reference{db: r.db, path: r.path.Child(db.Path{key})}
}

// --------------------------------------------------------------------------
// Writes
// --------------------------------------------------------------------------

// write runs op asynchronously and reports its outcome to completion.
func (r *reference) write(op func() error, completion database.WriteCompletion) {
	if completion == nil {
		completion = func(error, database.Reference) {}
	}
	run := func() {
		if r.err != nil {
			completion(r.err, r)
			return
		}
		completion(op(), r)
	}
	if !r.db.async(run) {
		go completion(ErrClosed, r)
	}
}

func (r *reference) SetValue(value any, completion database.WriteCompletion) {
	r.write(func() error {
		b, err := encode(value)
		if err != nil {
			return err
		}
		return r.db.store.Set(r.path.String(), b)
	}, completion)
}

func (r *reference) UpdateChildValues(values map[string]any, completion database.WriteCompletion) {
	r.write(func() error {
		b, err := encode(values)
		if err != nil {
			return err
		}
		return r.db.store.Update(r.path.String(), b)
	}, completion)
}

func (r *reference) RemoveValue(completion database.WriteCompletion) {
	r.write(func() error {
		return r.db.store.Remove(r.path.String())
	}, completion)
}

func (r *reference) registerOnDisconnect(opType store.OperationType, value any, completion database.WriteCompletion) {
	r.write(func() error {
		op := store.Operation{Type: opType, Path: r.path.String()}
		if opType != store.OpRemove {
			b, err := encode(value)
			if err != nil {
				return err
			}
			op.Value = b
		}
		return r.db.store.RegisterOnDisconnect(r.db.session, op)
	}, completion)
}

func (r *reference) OnDisconnectSetValue(value any, completion database.WriteCompletion) {
	r.registerOnDisconnect(store.OpSet, value, completion)
}

func (r *reference) OnDisconnectUpdateChildValues(values map[string]any, completion database.WriteCompletion) {
	r.registerOnDisconnect(store.OpUpdate, values, completion)
}

func (r *reference) OnDisconnectRemoveValue(completion database.WriteCompletion) {
	r.registerOnDisconnect(store.OpRemove, nil, completion)
}

// CancelDisconnectOperations drops all on-disconnect writes at or below this location.
func (r *reference) CancelDisconnectOperations(completion database.WriteCompletion) {
	r.write(func() error {
		return r.db.store.CancelOnDisconnect(r.db.session, r.path.String())
	}, completion)
}

// encode converts a Go value to JSON, rejecting values the tree cannot hold.
func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, store.NewError(store.RetCInvalidValue, fmt.Sprintf("failed to encode value: %v", err))
	}
	return b, nil
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

type snapshot struct {
	ref   *reference
	value any
}

func (s *snapshot) Ref() database.Reference { return s.ref }
func (s *snapshot) Key() string             { return s.ref.Key() }
func (s *snapshot) Value() any              { return db.Clone(s.value) }
func (s *snapshot) Exists() bool            { return s.value != nil }

// mutableData is handed to transaction blocks.
type mutableData struct {
	key   string
	value any
}

func (m *mutableData) Key() string        { return m.key }
func (m *mutableData) Value() any         { return m.value }
func (m *mutableData) SetValue(value any) { m.value = value }
