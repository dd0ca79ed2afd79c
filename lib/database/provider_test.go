package database

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func newProvider(b *fakeBackend) *DatabaseProvider[Target] {
	return NewDatabaseProvider[Target](b)
}

// collect returns a completion that records every result.
func collect() (Completion, func() []Result[DatabaseResponse]) {
	ch := make(chan Result[DatabaseResponse], 16)
	return func(r Result[DatabaseResponse]) { ch <- r }, func() []Result[DatabaseResponse] {
		var out []Result[DatabaseResponse]
		for {
			select {
			case r := <-ch:
				out = append(out, r)
			default:
				return out
			}
		}
	}
}

func noopBlock(d MutableData) TransactionResult { return Success(d) }

func TestRequestRouting(t *testing.T) {
	tests := []struct {
		name       string
		target     Target
		wantCalls  []string
		wantHandle bool
	}{
		{"observe", NewTarget("/a", Observe{Event: EventValue}), []string{"observe"}, true},
		{"observe once", NewTarget("/a", ObserveOnce{Event: EventValue}), []string{"observeSingleEvent"}, false},
		{"set", NewTarget("/a", SetValue{Value: 1}), []string{"setValue"}, false},
		{"update", NewTarget("/a", UpdateChildValues{Values: map[string]any{"b": 1}}), []string{"updateChildValues"}, false},
		{"remove", NewTarget("/a", RemoveValue{}), []string{"removeValue"}, false},
		{"transaction", NewTarget("/a", Transaction{Block: noopBlock}), []string{"runTransaction"}, false},
		{"set on disconnect", NewTarget("/a", SetValue{Value: 1}, WithOnDisconnect()), []string{"onDisconnectSetValue"}, false},
		{"update on disconnect", NewTarget("/a", UpdateChildValues{}, WithOnDisconnect()), []string{"onDisconnectUpdateChildValues"}, false},
		{"remove on disconnect", NewTarget("/a", RemoveValue{}, WithOnDisconnect()), []string{"onDisconnectRemoveValue"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{committed: true}
			handle := newProvider(b).Request(tt.target, nil)

			if got := b.Calls(); !reflect.DeepEqual(got, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", got, tt.wantCalls)
			}
			if (handle != nil) != tt.wantHandle {
				t.Errorf("handle = %v, want handle: %t", handle, tt.wantHandle)
			}
		})
	}
}

func TestRequestObserveOnce(t *testing.T) {
	b := &fakeBackend{value: "hello"}
	completion, results := collect()

	handle := newProvider(b).Request(NewTarget("/greeting", ObserveOnce{Event: EventValue}), completion)
	if handle != nil {
		t.Error("expected no handle for observeOnce")
	}

	got := results()
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	res, err := got[0].Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reference.Path() != "/greeting" {
		t.Errorf("reference = %s, want /greeting", res.Reference.Path())
	}
	if res.Snapshot == nil || res.Snapshot.Value() != "hello" {
		t.Errorf("snapshot = %v, want hello", res.Snapshot)
	}
	if !res.IsCommitted {
		t.Error("expected reads to be committed")
	}
}

func TestRequestObserve(t *testing.T) {
	b := &fakeBackend{}
	p := newProvider(b)
	completion, results := collect()

	handle := p.Request(NewTarget("/counter", Observe{Event: EventValue}), completion)
	if handle == nil {
		t.Fatal("expected a handle for observe")
	}

	l := b.listeners[0]
	l.fire(1.0)
	l.fire(2.0)
	l.fire(3.0)
	p.RemoveObserver(handle)
	l.fire(4.0)
	p.RemoveObserver(handle) // double cancel is a no-op

	got := results()
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	for i, r := range got {
		if r.Err != nil {
			t.Fatalf("result %d: unexpected error %v", i, r.Err)
		}
		if want := float64(i + 1); r.Value.Snapshot.Value() != want {
			t.Errorf("result %d = %v, want %v", i, r.Value.Snapshot.Value(), want)
		}
	}
}

func TestRequestObserveFailure(t *testing.T) {
	boom := errors.New("permission denied")
	b := &fakeBackend{}
	completion, results := collect()

	newProvider(b).Request(NewTarget("/secret", Observe{Event: EventChildAdded}), completion)
	b.listeners[0].fail(boom)
	b.listeners[0].fire("late")

	got := results()
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	var nerr *NoraError
	if !errors.As(got[0].Err, &nerr) || nerr.Kind != KindUnderlying || !errors.Is(got[0].Err, boom) {
		t.Errorf("err = %v, want underlying(%v)", got[0].Err, boom)
	}
}

func TestRequestWriteAcknowledged(t *testing.T) {
	b := &fakeBackend{}
	completion, results := collect()

	newProvider(b).Request(NewTarget("/a", SetValue{Value: "v"}), completion)

	got := results()
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	res, err := got[0].Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reference.Path() != "/a" || res.Snapshot != nil || !res.IsCommitted {
		t.Errorf("response = %+v, want reference /a, no snapshot, committed", res)
	}
}

func TestRequestTransactionAborted(t *testing.T) {
	b := &fakeBackend{committed: false, value: 41.0}
	completion, results := collect()

	newProvider(b).Request(NewTarget("/n", Transaction{Block: func(MutableData) TransactionResult { return Abort() }}), completion)

	got := results()
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	res, err := got[0].Get()
	if err != nil {
		t.Fatalf("an aborted transaction is not an error, got %v", err)
	}
	if res.IsCommitted {
		t.Error("expected IsCommitted = false")
	}
	if res.Snapshot == nil || res.Snapshot.Value() != 41.0 {
		t.Errorf("snapshot = %v, want 41", res.Snapshot)
	}
}

func TestRequestUnderlyingErrorForEveryTask(t *testing.T) {
	boom := errors.New("backend down")
	tasks := map[string]Task{
		"observeOnce": ObserveOnce{Event: EventValue},
		"set":         SetValue{Value: 1},
		"update":      UpdateChildValues{Values: map[string]any{"x": 1}},
		"remove":      RemoveValue{},
		"transaction": Transaction{Block: noopBlock},
	}

	for name, task := range tasks {
		t.Run(name, func(t *testing.T) {
			b := &fakeBackend{err: boom}
			completion, results := collect()
			newProvider(b).Request(NewTarget("/a", task), completion)

			got := results()
			if len(got) != 1 {
				t.Fatalf("got %d results, want 1", len(got))
			}
			var nerr *NoraError
			if !errors.As(got[0].Err, &nerr) || nerr.Kind != KindUnderlying {
				t.Fatalf("err = %v, want underlying", got[0].Err)
			}
			if !errors.Is(got[0].Err, boom) {
				t.Errorf("cause was not preserved: %v", got[0].Err)
			}
		})
	}
}

func TestRequestNilTask(t *testing.T) {
	b := &fakeBackend{}
	completion, results := collect()

	handle := newProvider(b).Request(NewTarget("/a", nil), completion)
	if handle != nil {
		t.Error("expected no handle")
	}
	if len(b.Calls()) != 0 {
		t.Errorf("expected no backend calls, got %v", b.Calls())
	}
	got := results()
	if len(got) != 1 || !errors.Is(got[0].Err, ErrRequestMapping) {
		t.Errorf("results = %v, want a single requestMapping failure", got)
	}
}

// The strategies are only reached through Request, which never hands them a foreign task.
// These checks should never trigger in practice.
func TestStrategiesRejectForeignTasks(t *testing.T) {
	b := &fakeBackend{}
	p := newProvider(b)

	t.Run("observe strategy", func(t *testing.T) {
		completion, results := collect()
		h := p.processObserve(DatabaseQueryRequest{Query: b.Reference("/a"), Task: SetValue{}}, completion)
		if h != nil {
			t.Error("expected no handle")
		}
		if got := results(); len(got) != 1 || !errors.Is(got[0].Err, ErrRequestMapping) {
			t.Errorf("results = %v, want requestMapping", got)
		}
	})

	t.Run("write strategy", func(t *testing.T) {
		completion, results := collect()
		p.processWrite(DatabaseRequest{Reference: b.Reference("/a"), Task: Observe{}}, completion)
		if got := results(); len(got) != 1 || !errors.Is(got[0].Err, ErrRequestMapping) {
			t.Errorf("results = %v, want requestMapping", got)
		}
	})

	t.Run("transaction strategy", func(t *testing.T) {
		completion, results := collect()
		p.processTransaction(DatabaseRequest{Reference: b.Reference("/a"), Task: RemoveValue{}}, completion)
		if got := results(); len(got) != 1 || !errors.Is(got[0].Err, ErrRequestMapping) {
			t.Errorf("results = %v, want requestMapping", got)
		}
	})

	if calls := b.Calls(); len(calls) != 0 {
		t.Errorf("expected no backend calls, got %v", calls)
	}
}

func TestDo(t *testing.T) {
	t.Run("returns the result", func(t *testing.T) {
		b := &fakeBackend{value: true}
		res, err := newProvider(b).Do(context.Background(), NewTarget("/flag", ObserveOnce{Event: EventValue}))
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if res.Snapshot.Value() != true {
			t.Errorf("value = %v, want true", res.Snapshot.Value())
		}
	})

	t.Run("rejects observe", func(t *testing.T) {
		b := &fakeBackend{}
		_, err := newProvider(b).Do(context.Background(), NewTarget("/a", Observe{Event: EventValue}))
		if !errors.Is(err, ErrRequestMapping) {
			t.Errorf("err = %v, want requestMapping", err)
		}
		if len(b.Calls()) != 0 {
			t.Errorf("expected no backend calls, got %v", b.Calls())
		}
	})

	t.Run("honors the context", func(t *testing.T) {
		b := &fakeBackend{hold: true}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := newProvider(b).Do(ctx, NewTarget("/a", RemoveValue{}))
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want deadline exceeded", err)
		}
	})
}

func receive(t *testing.T, s *Subscription) (Result[DatabaseResponse], bool) {
	t.Helper()
	select {
	case r, ok := <-s.Results():
		return r, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the subscription")
		return Result[DatabaseResponse]{}, false
	}
}

func TestObserveSubscription(t *testing.T) {
	b := &fakeBackend{}
	p := newProvider(b)

	sub := p.Observe(NewTarget("/feed", Observe{Event: EventChildAdded}))
	l := b.listeners[0]
	l.fire("a")
	l.fire("b")

	for _, want := range []string{"a", "b"} {
		r, ok := receive(t, sub)
		if !ok || r.Err != nil || r.Value.Snapshot.Value() != want {
			t.Fatalf("got %+v (open=%t), want %s", r, ok, want)
		}
	}

	sub.Cancel()
	sub.Cancel()
	if l.active() {
		t.Error("expected the listener to be cancelled")
	}
	if _, ok := receive(t, sub); ok {
		t.Error("expected the stream to be closed")
	}
}

func TestObserveSubscriptionEndsOnFailure(t *testing.T) {
	b := &fakeBackend{}
	sub := newProvider(b).Observe(NewTarget("/feed", Observe{Event: EventValue}))
	defer sub.Cancel()

	b.listeners[0].fail(errors.New("revoked"))

	r, ok := receive(t, sub)
	if !ok || r.IsSuccess() {
		t.Fatalf("got %+v (open=%t), want a failure", r, ok)
	}
	if _, ok := receive(t, sub); ok {
		t.Error("expected the stream to be closed after a failure")
	}
}

func TestObserveSubscriptionRejectsOneShotTasks(t *testing.T) {
	b := &fakeBackend{}
	sub := newProvider(b).Observe(NewTarget("/a", SetValue{Value: 1}))
	defer sub.Cancel()

	r, ok := receive(t, sub)
	if !ok || !errors.Is(r.Err, ErrRequestMapping) {
		t.Fatalf("got %+v (open=%t), want requestMapping", r, ok)
	}
	if _, ok := receive(t, sub); ok {
		t.Error("expected the stream to be closed")
	}
	if len(b.Calls()) != 0 {
		t.Errorf("expected no backend calls, got %v", b.Calls())
	}
}
