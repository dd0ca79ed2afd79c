package db

import (
	"encoding/json"
	"fmt"
	"io"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplTree Implementation = "tree"
)

type DatabaseInfo struct {
	SizeBytes int               `json:"size_bytes"`
	NodeCount int               `json:"node_count"`
	DbType    Implementation    `json:"db_type"`
	Metadata  map[string]uint64 `json:"metadata,omitempty"`
}

// --------------------------------------------------------------------------
// Tree
// --------------------------------------------------------------------------

// Tree is an in-memory hierarchical database. All values handed in are expected to be
// in canonical form (see Normalize), all values handed out are deep copies.
type Tree struct {
	root any
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

// Get returns a copy of the value at path, nil if the node does not exist.
func (t *Tree) Get(path Path) any {
	node := t.root
	for _, key := range path {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[key]
	}
	return Clone(node)
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Set replaces the value at path. A nil value removes the node.
func (t *Tree) Set(path Path, value any) {
	t.root = setAt(t.root, path, Clone(value))
}

// Remove deletes the node at path.
func (t *Tree) Remove(path Path) {
	t.root = setAt(t.root, path, nil)
}

// Update merges the given children into the node at path. Keys of values are relative
// paths and may contain slashes. Either all children are written or, if a key is
// invalid or one key is a prefix of another, none are.
func (t *Tree) Update(path Path, values map[string]any) error {
	rels, err := ParseUpdate(values)
	if err != nil {
		return err
	}
	for key, rel := range rels {
		t.root = setAt(t.root, path.Child(rel), Clone(values[key]))
	}
	return nil
}

// ParseUpdate validates the keys of an update and returns their parsed relative paths.
func ParseUpdate(values map[string]any) (map[string]Path, error) {
	rels := make(map[string]Path, len(values))
	for key := range values {
		rel, err := ParsePath(key)
		if err != nil {
			return nil, err
		}
		if rel.IsRoot() {
			return nil, fmt.Errorf("update key %q addresses the node itself", key)
		}
		for otherKey, other := range rels {
			if rel.Related(other) {
				return nil, fmt.Errorf("update keys %q and %q overlap", key, otherKey)
			}
		}
		rels[key] = rel
	}
	return rels, nil
}

// setAt writes value at path below node and returns the new node.
// Empty objects are pruned on the way back up.
func setAt(node any, path Path, value any) any {
	if len(path) == 0 {
		return value
	}
	m, ok := node.(map[string]any)
	if !ok {
		if value == nil {
			return node
		}
		m = make(map[string]any, 1)
	}
	child := setAt(m[path[0]], path[1:], value)
	if child == nil {
		delete(m, path[0])
	} else {
		m[path[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes the whole tree as canonical JSON.
func (t *Tree) Save(w io.Writer) error {
	_, err := w.Write(Encode(t.root))
	return err
}

// Load replaces the tree with the JSON read from r.
func (t *Tree) Load(r io.Reader) error {
	var v any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return fmt.Errorf("failed to load tree: %w", err)
	}
	n, err := Normalize(v)
	if err != nil {
		return fmt.Errorf("failed to load tree: %w", err)
	}
	t.root = n
	return nil
}

// GetInfo returns statistics about the tree. The node count includes the root.
// Computing them walks the whole tree.
func (t *Tree) GetInfo() DatabaseInfo {
	return DatabaseInfo{
		SizeBytes: len(Encode(t.root)),
		NodeCount: countNodes(t.root),
		DbType:    ImplTree,
	}
}
