package store

import (
	"fmt"

	"github.com/ValentinKolb/nora/lib/db"
)

// Mutation is a parsed and validated write, ready to be applied to a tree.
// Parsing happens before any lock is taken so that invalid input never touches the tree.
type Mutation struct {
	Type     OperationType
	Path     db.Path
	Value    any            // OpSet
	Children map[string]any // OpUpdate
}

// ParseOperation validates op and decodes its value.
func ParseOperation(op Operation) (Mutation, error) {
	p, err := db.ParsePath(op.Path)
	if err != nil {
		return Mutation{}, NewError(RetCInvalidPath, err.Error())
	}
	m := Mutation{Type: op.Type, Path: p}

	switch op.Type {
	case OpSet:
		v, err := db.Decode(op.Value)
		if err != nil {
			return Mutation{}, NewError(RetCInvalidValue, err.Error())
		}
		m.Value = v
	case OpUpdate:
		children, err := decodeUpdate(op.Value)
		if err != nil {
			return Mutation{}, err
		}
		m.Children = children
	case OpRemove:
	default:
		return Mutation{}, NewError(RetCInvalidOperation, fmt.Sprintf("unknown operation type: %d", op.Type))
	}
	return m, nil
}

// decodeUpdate parses the JSON object of an update. Children are normalized one by one
// because their keys are relative paths, which Normalize would reject.
func decodeUpdate(b []byte) (map[string]any, error) {
	v, err := decodeRawObject(b)
	if err != nil {
		return nil, NewError(RetCInvalidValue, err.Error())
	}
	children := make(map[string]any, len(v))
	for key, raw := range v {
		n, err := db.Normalize(raw)
		if err != nil {
			return nil, NewError(RetCInvalidValue, err.Error())
		}
		children[key] = n
	}
	if _, err := db.ParseUpdate(children); err != nil {
		return nil, NewError(RetCInvalidPath, err.Error())
	}
	return children, nil
}

// Apply writes the mutation to the tree.
func (m Mutation) Apply(tree *db.Tree) error {
	switch m.Type {
	case OpSet:
		tree.Set(m.Path, m.Value)
	case OpUpdate:
		if err := tree.Update(m.Path, m.Children); err != nil {
			return NewError(RetCInvalidPath, err.Error())
		}
	case OpRemove:
		tree.Remove(m.Path)
	default:
		return NewError(RetCInvalidOperation, fmt.Sprintf("unknown operation type: %d", m.Type))
	}
	return nil
}

// FilterOperations returns the operations whose path is not at or below path.
// Operations with unparsable paths are dropped.
func FilterOperations(ops []Operation, path db.Path) []Operation {
	kept := ops[:0:0]
	for _, op := range ops {
		p, err := db.ParsePath(op.Path)
		if err != nil || path.Contains(p) {
			continue
		}
		kept = append(kept, op)
	}
	return kept
}
