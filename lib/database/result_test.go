package database

import (
	"errors"
	"testing"
)

func TestConvertResponseToResult(t *testing.T) {
	ref := (&fakeBackend{}).Reference("/a")
	snap := &fakeSnapshot{ref: ref, value: "v"}
	boom := errors.New("boom")
	yes, no := true, false

	type outcome int
	const (
		success outcome = iota
		underlying
		conversion
	)

	tests := []struct {
		name          string
		snapshot      Snapshot
		reference     Reference
		err           error
		committed     *bool
		want          outcome
		wantCommitted bool
		wantSnapshot  bool
	}{
		// row 1: reference, no error, committed given
		{"transaction committed", snap, ref, nil, &yes, success, true, true},
		{"transaction aborted", snap, ref, nil, &no, success, false, true},
		{"transaction aborted without snapshot", nil, ref, nil, &no, success, false, false},
		// row 2: snapshot and reference, no error
		{"read", snap, ref, nil, nil, success, true, true},
		// row 3: reference only
		{"write acknowledged", nil, ref, nil, nil, success, true, false},
		// row 4: error without snapshot
		{"write failed", nil, ref, boom, nil, underlying, false, false},
		{"observe cancelled", nil, nil, boom, nil, underlying, false, false},
		{"transaction failed", nil, ref, boom, &no, underlying, false, false},
		{"error wins over committed", nil, ref, boom, &yes, underlying, false, false},
		// row 5: everything else
		{"nothing at all", nil, nil, nil, nil, conversion, false, false},
		{"snapshot without reference", snap, nil, nil, nil, conversion, false, false},
		{"snapshot and error", snap, ref, boom, nil, conversion, false, false},
		{"snapshot, error and committed", snap, ref, boom, &yes, conversion, false, false},
		{"committed without reference", snap, nil, nil, &yes, conversion, false, false},
		{"cancelled without error", nil, nil, nil, &no, conversion, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := convertResponseToResult(tt.snapshot, tt.reference, tt.err, tt.committed)

			switch tt.want {
			case success:
				if res.Err != nil {
					t.Fatalf("unexpected error: %v", res.Err)
				}
				if res.Value.Reference != tt.reference {
					t.Error("reference was not passed through")
				}
				if res.Value.IsCommitted != tt.wantCommitted {
					t.Errorf("IsCommitted = %t, want %t", res.Value.IsCommitted, tt.wantCommitted)
				}
				if (res.Value.Snapshot != nil) != tt.wantSnapshot {
					t.Errorf("snapshot present = %t, want %t", res.Value.Snapshot != nil, tt.wantSnapshot)
				}
			case underlying:
				var nerr *NoraError
				if !errors.As(res.Err, &nerr) || nerr.Kind != KindUnderlying || nerr.Cause != tt.err {
					t.Errorf("err = %v, want underlying(%v)", res.Err, tt.err)
				}
			case conversion:
				if !errors.Is(res.Err, ErrResultConversion) {
					t.Errorf("err = %v, want resultConversion", res.Err)
				}
			}
		})
	}
}

func TestNoraError(t *testing.T) {
	cause := errors.New("disk full")
	err := error(Underlying(cause))

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
	if errors.Is(err, ErrRequestMapping) || errors.Is(err, ErrResultConversion) {
		t.Error("underlying error matched another kind")
	}
	if !errors.Is(err, &NoraError{Kind: KindUnderlying}) {
		t.Error("expected a kind-only target to match")
	}
	if errors.Is(ErrRequestMapping, ErrResultConversion) {
		t.Error("different kinds must not match")
	}
	if got := err.Error(); got != "nora: underlying: disk full" {
		t.Errorf("Error() = %q", got)
	}
	if got := ErrResultConversion.Error(); got != "nora: resultConversion" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNewTarget(t *testing.T) {
	plain := NewTarget("/a", RemoveValue{})
	if plain.Path() != "/a" || plain.OnDisconnect() || plain.LocalEvents() {
		t.Errorf("unexpected target %+v", plain)
	}
	if _, ok := plain.Task().(RemoveValue); !ok {
		t.Errorf("task = %T, want RemoveValue", plain.Task())
	}

	full := NewTarget("/b", Transaction{Block: noopBlock}, WithOnDisconnect(), WithLocalEvents())
	if !full.OnDisconnect() || !full.LocalEvents() {
		t.Errorf("options were not applied: %+v", full)
	}
}

func TestTransactionResult(t *testing.T) {
	if r := Abort(); !r.IsAborted() || r.Data() != nil {
		t.Errorf("Abort() = %+v", r)
	}
	if r := Success(nil); r.IsAborted() {
		t.Errorf("Success() = %+v", r)
	}

	req := DatabaseRequest{Task: Transaction{Block: noopBlock}}
	if req.TransactionBlock() == nil {
		t.Error("expected the block of a transaction task")
	}
	if (DatabaseRequest{Task: SetValue{}}).TransactionBlock() != nil {
		t.Error("expected no block for a write task")
	}
}

func TestParseDataEventType(t *testing.T) {
	for e := EventValue; e <= EventChildMoved; e++ {
		got, err := ParseDataEventType(e.String())
		if err != nil || got != e {
			t.Errorf("ParseDataEventType(%s) = %v, %v", e, got, err)
		}
	}
	if _, err := ParseDataEventType("bogus"); err == nil {
		t.Error("expected an error for an unknown event type")
	}
}
