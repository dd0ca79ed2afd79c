package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/nora/lib/store"
)

func TestMessageTypeJSON(t *testing.T) {
	for msgType := MsgTSuccess; msgType <= MsgTCustom; msgType++ {
		t.Run(msgType.String(), func(t *testing.T) {
			data, err := json.Marshal(msgType)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != fmt.Sprintf("%q", msgType.String()) {
				t.Errorf("expected %q, got %s", msgType.String(), data)
			}

			var decoded MessageType
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if decoded != msgType {
				t.Errorf("expected %s, got %s", msgType, decoded)
			}
		})
	}

	var decoded MessageType
	if err := json.Unmarshal([]byte(`"acquire"`), &decoded); err == nil {
		t.Error("expected an error for an unknown message type")
	}
}

func TestMessageTypeNamesAreUnique(t *testing.T) {
	seen := map[string]MessageType{}
	for msgType := MsgTSuccess; msgType <= MsgTCustom; msgType++ {
		name := msgType.String()
		if name == "unknown" {
			t.Errorf("message type %d has no name", msgType)
		}
		if other, ok := seen[name]; ok {
			t.Errorf("message types %d and %d share the name %s", other, msgType, name)
		}
		seen[name] = msgType
	}
}

func TestMessageError(t *testing.T) {
	tests := []struct {
		name     string
		msg      *Message
		wantNil  bool
		wantCode store.RetCode
	}{
		{
			name:    "no error",
			msg:     NewResponse(MsgTDBSet, nil),
			wantNil: true,
		},
		{
			name:     "store error keeps its code",
			msg:      NewResponse(MsgTDBSet, store.NewError(store.RetCInvalidPath, "bad path")),
			wantCode: store.RetCInvalidPath,
		},
		{
			name:     "wrapped store error keeps its code",
			msg:      NewGetResponse(nil, fmt.Errorf("reading: %w", store.NewError(store.RetCInvalidValue, "bad value"))),
			wantCode: store.RetCInvalidValue,
		},
		{
			name: "plain error",
			msg:  NewWatchResponse(nil, false, errors.New("boom")),
		},
		{
			name: "error response",
			msg:  NewErrorResponse("unknown database"),
		},
		{
			name: "error type without message",
			msg:  &Message{MsgType: MsgTError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Error()
			if tt.wantNil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}

			var storeErr *store.Error
			isStoreErr := errors.As(err, &storeErr)
			if tt.wantCode == 0 {
				if isStoreErr {
					t.Errorf("expected a plain error, got %v", err)
				}
				return
			}
			if !isStoreErr {
				t.Fatalf("expected a store error, got %v", err)
			}
			if storeErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, storeErr.Code)
			}
		})
	}
}

func TestRegisterOnDisconnectCarriesOperation(t *testing.T) {
	op := store.Operation{Type: store.OpUpdate, Path: "/users/a", Value: []byte(`{"online":false}`)}
	msg := NewRegisterOnDisconnectRequest("session-1", op)

	if msg.Session != "session-1" {
		t.Errorf("expected session-1, got %s", msg.Session)
	}
	got := msg.Operation()
	if got.Type != op.Type || got.Path != op.Path || string(got.Value) != string(op.Value) {
		t.Errorf("expected %+v, got %+v", op, got)
	}
}
