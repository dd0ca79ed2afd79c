package db

import (
	"fmt"
	"strings"
)

// forbiddenKeyChars are characters that may not appear in a path segment.
const forbiddenKeyChars = ".#$[]"

// Path is a parsed, validated location in the tree. The empty path is the root.
type Path []string

// ParsePath splits a slash separated path into its segments.
// Leading, trailing and duplicate slashes are ignored, so "", "/" and "//" all
// address the root.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(s, "/")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if err := ValidateKey(part); err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", s, err)
		}
		p = append(p, part)
	}
	return p, nil
}

// MustParsePath is like ParsePath but panics on invalid input. Only meant for constants and tests.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ValidateKey checks a single path segment.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty key")
	}
	if strings.ContainsAny(key, forbiddenKeyChars) {
		return fmt.Errorf("key %q contains one of %q", key, forbiddenKeyChars)
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("key %q contains control characters", key)
		}
	}
	return nil
}

// String returns the canonical form of the path ("/" for the root).
func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}

// IsRoot reports whether p addresses the root node.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Key returns the last segment of the path, the empty string for the root.
func (p Path) Key() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Parent returns the parent path. The parent of the root is the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1:len(p)-1]
}

// Child returns a new path for the given relative child path.
func (p Path) Child(rel Path) Path {
	c := make(Path, 0, len(p)+len(rel))
	c = append(c, p...)
	return append(c, rel...)
}

// Contains reports whether other is p itself or a descendant of p.
func (p Path) Contains(other Path) bool {
	if len(other) < len(p) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Related reports whether a write at one path can change the value at the other,
// that is whether one path contains the other.
func (p Path) Related(other Path) bool {
	return p.Contains(other) || other.Contains(p)
}
