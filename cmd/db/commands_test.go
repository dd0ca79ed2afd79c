package db

import (
	"reflect"
	"testing"
)

// mutableData holds a single value for transaction blocks
type mutableData struct {
	value any
}

func (m *mutableData) Key() string        { return "counter" }
func (m *mutableData) Value() any         { return m.value }
func (m *mutableData) SetValue(value any) { m.value = value }

func TestParseValue(t *testing.T) {
	tests := []struct {
		arg  string
		want any
	}{
		{arg: `42`, want: 42.0},
		{arg: `true`, want: true},
		{arg: `"quoted"`, want: "quoted"},
		{arg: `{"a":1}`, want: map[string]any{"a": 1.0}},
		{arg: `plain text`, want: "plain text"},
		{arg: `null`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			if got := parseValue(tt.arg); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseValue(%q) = %#v, want %#v", tt.arg, got, tt.want)
			}
		})
	}
}

func TestIncrement(t *testing.T) {
	tests := []struct {
		name      string
		current   any
		want      any
		wantAbort bool
	}{
		{name: "missing", current: nil, want: 2.0},
		{name: "number", current: 40.0, want: 42.0},
		{name: "string", current: "x", wantAbort: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := &mutableData{value: tt.current}
			result := increment(2)(data)
			if result.IsAborted() != tt.wantAbort {
				t.Fatalf("IsAborted() = %v, want %v", result.IsAborted(), tt.wantAbort)
			}
			if !tt.wantAbort && result.Data().Value() != tt.want {
				t.Errorf("value = %v, want %v", result.Data().Value(), tt.want)
			}
		})
	}
}
