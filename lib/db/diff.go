package db

import "sort"

// ChangeType classifies a change of a direct child between two versions of a node.
type ChangeType uint8

const (
	ChildAdded ChangeType = iota
	ChildChanged
	ChildRemoved
)

func (c ChangeType) String() string {
	switch c {
	case ChildAdded:
		return "added"
	case ChildChanged:
		return "changed"
	case ChildRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ChildChange describes how a single direct child differs between two node versions.
// Value holds the new value for added and changed children and the old one for removed children.
type ChildChange struct {
	Type  ChangeType
	Key   string
	Value any
}

// Children returns the direct children of a node as a map. Leaves have no children.
func Children(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m
}

// SortedKeys returns the child keys of v in ascending order.
func SortedKeys(v any) []string {
	m := Children(v)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DiffChildren compares the direct children of two versions of a node.
// Changes are ordered removed first, then added and changed by key.
func DiffChildren(before, after any) []ChildChange {
	oldChildren, newChildren := Children(before), Children(after)
	var changes []ChildChange

	for _, key := range SortedKeys(before) {
		if _, ok := newChildren[key]; !ok {
			changes = append(changes, ChildChange{Type: ChildRemoved, Key: key, Value: oldChildren[key]})
		}
	}
	for _, key := range SortedKeys(after) {
		n := newChildren[key]
		o, existed := oldChildren[key]
		switch {
		case !existed:
			changes = append(changes, ChildChange{Type: ChildAdded, Key: key, Value: n})
		case Hash(o) != Hash(n):
			changes = append(changes, ChildChange{Type: ChildChanged, Key: key, Value: n})
		}
	}
	return changes
}
