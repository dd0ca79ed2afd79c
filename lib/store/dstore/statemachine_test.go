package dstore

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/nora/lib/db"
	"github.com/ValentinKolb/nora/lib/store"
	"github.com/ValentinKolb/nora/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

func newTestMachine(n *store.Notifier) *TreeStateMachine {
	return CreateStateMachineFactory(db.NewTree, n)(1, 1).(*TreeStateMachine)
}

func applyCommands(t *testing.T, fsm *TreeStateMachine, cmds ...internal.Command) []sm.Result {
	t.Helper()
	entries := make([]sm.Entry, len(cmds))
	for i, c := range cmds {
		entries[i] = sm.Entry{Index: uint64(i + 1), Cmd: c.Serialize()}
	}
	out, err := fsm.Update(entries)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	results := make([]sm.Result, len(out))
	for i, e := range out {
		results[i] = e.Result
	}
	return results
}

func lookupValue(t *testing.T, fsm *TreeStateMachine, path string) string {
	t.Helper()
	res, err := fsm.Lookup(internal.Query{Type: internal.QueryTGet, Path: path})
	if err != nil {
		t.Fatalf("Lookup(%s) error = %v", path, err)
	}
	return string(res.([]byte))
}

func TestStateMachineWrites(t *testing.T) {
	fsm := newTestMachine(store.NewNotifier())

	results := applyCommands(t, fsm,
		internal.Command{Type: internal.CommandTSet, Path: "/a", Value: []byte(`{"b":1,"c":2}`)},
		internal.Command{Type: internal.CommandTUpdate, Path: "/a", Value: []byte(`{"b":null,"d/e":3}`)},
		internal.Command{Type: internal.CommandTRemove, Path: "/a/c"},
		internal.Command{Type: internal.CommandTSet, Path: "/bad.key", Value: []byte(`1`)},
		internal.Command{Type: internal.CommandTSet, Path: "/x", Value: []byte(`{`)},
	)

	for i := 0; i < 3; i++ {
		if results[i].Value != uint64(store.RetCSuccess) {
			t.Errorf("entry %d: result = %d (%s)", i, results[i].Value, results[i].Data)
		}
	}
	if results[3].Value != uint64(store.RetCInvalidPath) {
		t.Errorf("invalid path: result = %d", results[3].Value)
	}
	if results[4].Value != uint64(store.RetCInvalidValue) {
		t.Errorf("invalid value: result = %d", results[4].Value)
	}

	if got := lookupValue(t, fsm, "/a"); got != `{"d":{"e":3}}` {
		t.Errorf("Get(/a) = %s", got)
	}
}

func TestStateMachineInvalidEntries(t *testing.T) {
	fsm := newTestMachine(store.NewNotifier())
	out, err := fsm.Update([]sm.Entry{{Cmd: nil}, {Cmd: []byte{1, 2}}, {Cmd: (&internal.Command{Type: 99}).Serialize()}})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	want := []store.RetCode{store.RetCInvalidOperation, store.RetCInternalError, store.RetCInvalidOperation}
	for i, e := range out {
		if e.Result.Value != uint64(want[i]) {
			t.Errorf("entry %d: result = %d, want %d", i, e.Result.Value, want[i])
		}
	}
}

func TestStateMachineCompareAndSet(t *testing.T) {
	fsm := newTestMachine(store.NewNotifier())

	results := applyCommands(t, fsm,
		internal.Command{Type: internal.CommandTCompareAndSet, Path: "/n", Hash: db.Hash(nil), Value: []byte(`1`)},
		internal.Command{Type: internal.CommandTCompareAndSet, Path: "/n", Hash: db.Hash(nil), Value: []byte(`2`)},
	)

	ok, current, err := decodeCASResult(results[0].Data)
	if err != nil || !ok || string(current) != "1" {
		t.Errorf("first CAS = %v %s %v, want true 1", ok, current, err)
	}
	ok, current, err = decodeCASResult(results[1].Data)
	if err != nil || ok || string(current) != "1" {
		t.Errorf("second CAS = %v %s %v, want false 1", ok, current, err)
	}
}

func TestStateMachineSessions(t *testing.T) {
	fsm := newTestMachine(store.NewNotifier())

	applyCommands(t, fsm,
		internal.Command{Type: internal.CommandTSet, Path: "/users/ada/online", Value: []byte(`true`)},
		internal.Command{Type: internal.CommandTRegisterOnDisconnect, OpType: store.OpSet, Session: "s1", Path: "/users/ada/online", Value: []byte(`false`)},
		internal.Command{Type: internal.CommandTRegisterOnDisconnect, OpType: store.OpRemove, Session: "s1", Path: "/tmp/ada"},
		internal.Command{Type: internal.CommandTSet, Path: "/tmp/ada", Value: []byte(`1`)},
		internal.Command{Type: internal.CommandTCancelOnDisconnect, Session: "s1", Path: "/tmp"},
	)

	info, err := fsm.Lookup(internal.Query{Type: internal.QueryTGetDBInfo})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got := info.(db.DatabaseInfo).Metadata["sessions"]; got != 1 {
		t.Errorf("sessions = %d, want 1", got)
	}

	applyCommands(t, fsm, internal.Command{Type: internal.CommandTDisconnect, Session: "s1"})

	if got := lookupValue(t, fsm, "/users/ada/online"); got != "false" {
		t.Errorf("online = %s, want false", got)
	}
	if got := lookupValue(t, fsm, "/tmp/ada"); got != "1" {
		t.Errorf("canceled operation was applied, /tmp/ada = %s", got)
	}
}

func TestStateMachineNotifies(t *testing.T) {
	n := store.NewNotifier()
	fsm := newTestMachine(n)

	ch, cancel := n.Subscribe(db.MustParsePath("/a"))
	defer cancel()

	applyCommands(t, fsm, internal.Command{Type: internal.CommandTSet, Path: "/a/b", Value: []byte(`1`)})

	select {
	case <-ch:
	default:
		t.Error("expected watcher of /a to be notified")
	}
}

func TestStateMachineSnapshot(t *testing.T) {
	src := newTestMachine(store.NewNotifier())
	applyCommands(t, src,
		internal.Command{Type: internal.CommandTSet, Path: "/a", Value: []byte(`{"b":"c"}`)},
		internal.Command{Type: internal.CommandTRegisterOnDisconnect, OpType: store.OpRemove, Session: "s", Path: "/a"},
	)

	ctx, err := src.PrepareSnapshot()
	if err != nil {
		t.Fatalf("PrepareSnapshot() error = %v", err)
	}
	var buf bytes.Buffer
	if err := src.SaveSnapshot(ctx, &buf, nil, nil); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	dst := newTestMachine(store.NewNotifier())
	if err := dst.RecoverFromSnapshot(&buf, nil, nil); err != nil {
		t.Fatalf("RecoverFromSnapshot() error = %v", err)
	}
	if got := lookupValue(t, dst, "/a"); got != `{"b":"c"}` {
		t.Errorf("Get(/a) = %s", got)
	}

	applyCommands(t, dst, internal.Command{Type: internal.CommandTDisconnect, Session: "s"})
	if got := lookupValue(t, dst, "/a"); got != "null" {
		t.Errorf("session was not restored, /a = %s", got)
	}
}
