package db

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// nullJSON is the canonical encoding of an absent node.
var nullJSON = []byte("null")

// Normalize converts an arbitrary decoded JSON value into the canonical tree form:
// objects become map[string]any, arrays become index keyed objects, integers and
// floats become float64, empty objects and nil children are dropped.
// Values of other Go types are round-tripped through encoding/json first.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string, bool, float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return f, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if err := ValidateKey(k); err != nil {
				return nil, err
			}
			n, err := Normalize(child)
			if err != nil {
				return nil, err
			}
			if n != nil {
				out[k] = n
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	case []any:
		out := make(map[string]any, len(t))
		for i, child := range t {
			n, err := Normalize(child)
			if err != nil {
				return nil, err
			}
			if n != nil {
				out[strconv.Itoa(i)] = n
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("value of type %T is not JSON encodable: %w", v, err)
		}
		return Decode(b)
	}
}

// Decode parses JSON bytes into the canonical tree form. Empty input decodes to nil.
func Decode(b []byte) (any, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON value: %w", err)
	}
	return Normalize(v)
}

// Encode returns the canonical JSON encoding of a tree value. nil encodes to "null".
// Object keys are sorted by encoding/json, so equal values encode identically.
func Encode(v any) []byte {
	if v == nil {
		return nullJSON
	}
	b, err := json.Marshal(v)
	if err != nil {
		// canonical tree values only contain JSON types
		return nullJSON
	}
	return b
}

// Hash returns the xxhash of the canonical encoding of v.
func Hash(v any) uint64 {
	return xxhash.Sum64(Encode(v))
}

// HashBytes returns the hash of an already canonical encoding.
func HashBytes(b []byte) uint64 {
	if len(b) == 0 {
		b = nullJSON
	}
	return xxhash.Sum64(b)
}

// Clone returns a deep copy of a tree value.
func Clone(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, child := range m {
		out[k] = Clone(child)
	}
	return out
}

// countNodes returns the number of nodes in the subtree rooted at v.
func countNodes(v any) int {
	if v == nil {
		return 0
	}
	n := 1
	if m, ok := v.(map[string]any); ok {
		for _, child := range m {
			n += countNodes(child)
		}
	}
	return n
}
