package db

import (
	"bytes"
	"reflect"
	"testing"
)

func mustDecode(t *testing.T, s string) any {
	t.Helper()
	v, err := Decode([]byte(s))
	if err != nil {
		t.Fatalf("Decode(%s) failed: %v", s, err)
	}
	return v
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "nil", input: nil, want: "null"},
		{name: "int", input: 42, want: "42"},
		{name: "empty object is null", input: map[string]any{}, want: "null"},
		{name: "nil children are dropped", input: map[string]any{"a": nil, "b": 1}, want: `{"b":1}`},
		{name: "arrays become objects", input: []any{"x", "y"}, want: `{"0":"x","1":"y"}`},
		{name: "structs are round tripped", input: struct {
			Name string `json:"name"`
		}{"nora"}, want: `{"name":"nora"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if err != nil {
				t.Fatalf("Normalize() unexpected error: %v", err)
			}
			if string(Encode(got)) != tt.want {
				t.Errorf("Normalize() = %s, want %s", Encode(got), tt.want)
			}
		})
	}

	if _, err := Normalize(map[string]any{"a.b": 1}); err == nil {
		t.Errorf("Normalize() expected error for invalid key")
	}
}

func TestTreeSetGet(t *testing.T) {
	tree := NewTree()

	tree.Set(MustParsePath("/users/alice"), mustDecode(t, `{"age":30,"name":"Alice"}`))
	if got := Encode(tree.Get(MustParsePath("/users/alice/name"))); string(got) != `"Alice"` {
		t.Errorf("Get(name) = %s", got)
	}

	// overwrite a leaf with an object
	tree.Set(MustParsePath("/users/alice/name/first"), "Alice")
	if got := Encode(tree.Get(MustParsePath("/users/alice"))); string(got) != `{"age":30,"name":{"first":"Alice"}}` {
		t.Errorf("Get(alice) = %s", got)
	}

	// nonexistent paths read as nil, including paths below leaves
	if v := tree.Get(MustParsePath("/users/bob")); v != nil {
		t.Errorf("Get(bob) = %v, want nil", v)
	}
	if v := tree.Get(MustParsePath("/users/alice/age/x")); v != nil {
		t.Errorf("Get(age/x) = %v, want nil", v)
	}

	// returned values are copies
	got := tree.Get(MustParsePath("/users")).(map[string]any)
	got["mallory"] = true
	if v := tree.Get(MustParsePath("/users/mallory")); v != nil {
		t.Errorf("mutating a returned value changed the tree")
	}
}

func TestTreeRemovePrunesEmptyParents(t *testing.T) {
	tree := NewTree()
	tree.Set(MustParsePath("/a/b/c"), "x")
	tree.Remove(MustParsePath("/a/b/c"))

	if v := tree.Get(Path{}); v != nil {
		t.Errorf("root = %v, want nil after removing the only leaf", v)
	}

	// removing something that does not exist is a no-op
	tree.Set(MustParsePath("/a"), "leaf")
	tree.Remove(MustParsePath("/a/b"))
	if got := Encode(tree.Get(Path{})); string(got) != `{"a":"leaf"}` {
		t.Errorf("root = %s", got)
	}
}

func TestTreeUpdate(t *testing.T) {
	tree := NewTree()
	tree.Set(MustParsePath("/room"), mustDecode(t, `{"name":"lobby","users":{"a":true}}`))

	err := tree.Update(MustParsePath("/room"), map[string]any{
		"name":    "hall",
		"users/b": true,
		"topic":   nil,
	})
	if err != nil {
		t.Fatalf("Update() unexpected error: %v", err)
	}
	want := `{"name":"hall","users":{"a":true,"b":true}}`
	if got := Encode(tree.Get(MustParsePath("/room"))); string(got) != want {
		t.Errorf("Get(room) = %s, want %s", got, want)
	}

	// overlapping keys are rejected and nothing is written
	err = tree.Update(MustParsePath("/room"), map[string]any{"users": nil, "users/c": true})
	if err == nil {
		t.Errorf("Update() with overlapping keys expected error")
	}
	if got := Encode(tree.Get(MustParsePath("/room"))); string(got) != want {
		t.Errorf("failed update modified the tree: %s", got)
	}
}

func TestTreeSaveLoad(t *testing.T) {
	tree := NewTree()
	tree.Set(MustParsePath("/a"), mustDecode(t, `{"b":1,"c":"two"}`))

	var buf bytes.Buffer
	if err := tree.Save(&buf); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded := NewTree()
	if err := loaded.Load(&buf); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !reflect.DeepEqual(tree.Get(Path{}), loaded.Get(Path{})) {
		t.Errorf("loaded tree differs: %v vs %v", loaded.Get(Path{}), tree.Get(Path{}))
	}

	info := loaded.GetInfo()
	if info.NodeCount != 4 || info.DbType != ImplTree {
		t.Errorf("GetInfo() = %+v, want 4 nodes (root included) of type tree", info)
	}
}

func TestHashIsOrderIndependent(t *testing.T) {
	a := mustDecode(t, `{"x":1,"y":{"b":2,"a":1}}`)
	b := mustDecode(t, `{"y":{"a":1,"b":2},"x":1}`)
	if Hash(a) != Hash(b) {
		t.Errorf("equal values hash differently")
	}
	if Hash(a) != HashBytes(Encode(b)) {
		t.Errorf("Hash and HashBytes disagree")
	}
	if HashBytes(nil) != Hash(nil) {
		t.Errorf("empty bytes should hash like null")
	}
}

func TestDiffChildren(t *testing.T) {
	before := mustDecode(t, `{"a":1,"b":2,"c":3}`)
	after := mustDecode(t, `{"b":2,"c":4,"d":5}`)

	got := DiffChildren(before, after)
	want := []ChildChange{
		{Type: ChildRemoved, Key: "a", Value: float64(1)},
		{Type: ChildChanged, Key: "c", Value: float64(4)},
		{Type: ChildAdded, Key: "d", Value: float64(5)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DiffChildren() = %+v, want %+v", got, want)
	}

	if changes := DiffChildren("leaf", nil); len(changes) != 0 {
		t.Errorf("leaves have no children, got %+v", changes)
	}
}
