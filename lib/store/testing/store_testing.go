package testing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/nora/lib/db"
	"github.com/ValentinKolb/nora/lib/store"
)

// StoreFactory is a function that creates a new, empty instance of an IStore implementation
type StoreFactory func() store.IStore

// RunStoreTests runs a comprehensive test suite for an IStore implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Update", func(t *testing.T) {
			testUpdate(t, factory())
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory())
		})

		t.Run("InvalidInput", func(t *testing.T) {
			testInvalidInput(t, factory())
		})

		t.Run("CompareAndSet", func(t *testing.T) {
			testCompareAndSet(t, factory())
		})

		t.Run("ConcurrentCompareAndSet", func(t *testing.T) {
			testConcurrentCompareAndSet(t, factory())
		})

		t.Run("Watch", func(t *testing.T) {
			testWatch(t, factory())
		})

		t.Run("WatchTimeout", func(t *testing.T) {
			testWatchTimeout(t, factory())
		})

		t.Run("OnDisconnect", func(t *testing.T) {
			testOnDisconnect(t, factory())
		})

		t.Run("DBInfo", func(t *testing.T) {
			testDBInfo(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustGet(t *testing.T, s store.IStore, path string) string {
	t.Helper()
	v, err := s.Get(path)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", path, err)
	}
	return string(v)
}

func expectValue(t *testing.T, s store.IStore, path, want string) {
	t.Helper()
	if got := mustGet(t, s, path); got != want {
		t.Errorf("Get(%s) = %s, want %s", path, got, want)
	}
}

func expectCode(t *testing.T, err error, code store.RetCode) {
	t.Helper()
	var se *store.Error
	if !errors.As(err, &se) {
		t.Errorf("expected *store.Error with code %s, got %v", code, err)
		return
	}
	if se.Code != code {
		t.Errorf("expected code %s, got %s (%s)", code, se.Code, se.Msg)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, s store.IStore) {
	expectValue(t, s, "/missing", "null")

	if err := s.Set("/users/alice", []byte(`{"name":"Alice","age":30}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	expectValue(t, s, "/users/alice", `{"age":30,"name":"Alice"}`)
	expectValue(t, s, "users/alice/name", `"Alice"`)

	if err := s.Set("/users/alice/age", []byte(`31`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	expectValue(t, s, "/users/alice/age", `31`)

	// setting null removes the node
	if err := s.Set("/users/alice", []byte(`null`)); err != nil {
		t.Fatalf("Set(null) failed: %v", err)
	}
	expectValue(t, s, "/users", "null")
}

func testUpdate(t *testing.T, s store.IStore) {
	if err := s.Set("/room", []byte(`{"name":"lobby","members":{"a":true}}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Update("/room", []byte(`{"name":"hall","members/b":true,"topic":null}`)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	expectValue(t, s, "/room", `{"members":{"a":true,"b":true},"name":"hall"}`)

	err := s.Update("/room", []byte(`{"members":null,"members/c":true}`))
	expectCode(t, err, store.RetCInvalidPath)
	expectValue(t, s, "/room/members", `{"a":true,"b":true}`)

	err = s.Update("/room", []byte(`[1,2]`))
	expectCode(t, err, store.RetCInvalidValue)
}

func testRemove(t *testing.T, s store.IStore) {
	if err := s.Set("/a/b/c", []byte(`1`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Remove("/a/b"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	expectValue(t, s, "/a", "null")

	// removing a missing node succeeds
	if err := s.Remove("/does/not/exist"); err != nil {
		t.Errorf("Remove of missing node failed: %v", err)
	}
}

func testInvalidInput(t *testing.T, s store.IStore) {
	_, err := s.Get("/a.b")
	expectCode(t, err, store.RetCInvalidPath)

	err = s.Set("/a", []byte(`{not json`))
	expectCode(t, err, store.RetCInvalidValue)

	err = s.Set("/a", []byte(`{"bad$key":1}`))
	expectCode(t, err, store.RetCInvalidValue)

	err = s.RegisterOnDisconnect("session", store.Operation{Type: store.OpSet, Path: "/x#"})
	expectCode(t, err, store.RetCInvalidPath)
}

func testCompareAndSet(t *testing.T, s store.IStore) {
	// absent value hashes like null
	ok, current, err := s.CompareAndSet("/counter", db.Hash(nil), []byte(`1`))
	if err != nil || !ok {
		t.Fatalf("CompareAndSet on empty node = (%v, %s, %v), want success", ok, current, err)
	}
	expectValue(t, s, "/counter", "1")

	// stale hash is rejected and the current value is reported
	ok, current, err = s.CompareAndSet("/counter", db.Hash(nil), []byte(`5`))
	if err != nil {
		t.Fatalf("CompareAndSet failed: %v", err)
	}
	if ok {
		t.Errorf("CompareAndSet with stale hash succeeded")
	}
	if string(current) != "1" {
		t.Errorf("CompareAndSet current = %s, want 1", current)
	}
	expectValue(t, s, "/counter", "1")

	// a change of a descendant changes the hash of the ancestor
	if err := s.Set("/obj/a", []byte(`1`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	before, _ := s.Get("/obj")
	if err := s.Set("/obj/b", []byte(`2`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	ok, _, err = s.CompareAndSet("/obj", db.HashBytes(before), []byte(`{}`))
	if err != nil || ok {
		t.Errorf("CompareAndSet after child write = (%v, %v), want rejected", ok, err)
	}
}

func testConcurrentCompareAndSet(t *testing.T, s store.IStore) {
	const workers = 8
	const increments = 10

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < increments; i++ {
				for {
					raw, err := s.Get("/counter")
					if err != nil {
						t.Errorf("Get failed: %v", err)
						return
					}
					v, _ := db.Decode(raw)
					n, _ := v.(float64)
					ok, _, err := s.CompareAndSet("/counter", db.HashBytes(raw), db.Encode(n+1))
					if err != nil {
						t.Errorf("CompareAndSet failed: %v", err)
						return
					}
					if ok {
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	expectValue(t, s, "/counter", "80")
}

func testWatch(t *testing.T, s store.IStore) {
	if err := s.Set("/doc/title", []byte(`"a"`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	known, _ := s.Get("/doc")

	type watchResult struct {
		value   []byte
		changed bool
		err     error
	}
	done := make(chan watchResult, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		v, changed, err := s.Watch(ctx, "/doc", db.HashBytes(known))
		done <- watchResult{v, changed, err}
	}()

	// unrelated writes must not wake the watcher up with a change
	time.Sleep(20 * time.Millisecond)
	if err := s.Set("/other", []byte(`1`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("/doc/title", []byte(`"b"`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("Watch failed: %v", res.err)
	}
	if !res.changed || string(res.value) != `{"title":"b"}` {
		t.Errorf("Watch = (%s, %v), want ({\"title\":\"b\"}, true)", res.value, res.changed)
	}

	// a stale hash returns immediately
	v, changed, err := s.Watch(context.Background(), "/doc", db.HashBytes(known))
	if err != nil || !changed || string(v) != `{"title":"b"}` {
		t.Errorf("Watch with stale hash = (%s, %v, %v)", v, changed, err)
	}
}

func testWatchTimeout(t *testing.T, s store.IStore) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	v, changed, err := s.Watch(ctx, "/quiet", db.Hash(nil))
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if changed || string(v) != "null" {
		t.Errorf("Watch on quiet node = (%s, %v), want (null, false)", v, changed)
	}
}

func testOnDisconnect(t *testing.T, s store.IStore) {
	if err := s.Set("/presence/alice", []byte(`"online"`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ops := []store.Operation{
		{Type: store.OpSet, Path: "/presence/alice", Value: []byte(`"offline"`)},
		{Type: store.OpUpdate, Path: "/presence", Value: []byte(`{"count":0}`)},
		{Type: store.OpRemove, Path: "/typing/alice"},
		{Type: store.OpSet, Path: "/last/alice", Value: []byte(`1`)},
	}
	for _, op := range ops {
		if err := s.RegisterOnDisconnect("alice-session", op); err != nil {
			t.Fatalf("RegisterOnDisconnect(%s) failed: %v", op.Type, err)
		}
	}
	if err := s.Set("/typing/alice", []byte(`true`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// registrations must not run before the disconnect
	expectValue(t, s, "/presence/alice", `"online"`)

	if err := s.CancelOnDisconnect("alice-session", "/last"); err != nil {
		t.Fatalf("CancelOnDisconnect failed: %v", err)
	}

	// other sessions are independent
	if err := s.Disconnect("bob-session"); err != nil {
		t.Fatalf("Disconnect(unknown) failed: %v", err)
	}
	expectValue(t, s, "/presence/alice", `"online"`)

	if err := s.Disconnect("alice-session"); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	expectValue(t, s, "/presence", `{"alice":"offline","count":0}`)
	expectValue(t, s, "/typing", "null")
	expectValue(t, s, "/last", "null")

	// a session fires only once
	if err := s.Set("/presence/alice", []byte(`"online"`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Disconnect("alice-session"); err != nil {
		t.Fatalf("second Disconnect failed: %v", err)
	}
	expectValue(t, s, "/presence/alice", `"online"`)
}

func testDBInfo(t *testing.T, s store.IStore) {
	if err := s.Set("/a/b", []byte(`1`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	info, err := s.GetDBInfo()
	if err != nil {
		t.Fatalf("GetDBInfo failed: %v", err)
	}
	if info.NodeCount != 3 {
		t.Errorf("GetDBInfo().NodeCount = %d, want 3", info.NodeCount)
	}
	if info.SizeBytes == 0 {
		t.Errorf("GetDBInfo().SizeBytes = 0")
	}
}
