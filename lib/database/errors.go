package database

import "fmt"

// ErrorKind classifies a NoraError.
type ErrorKind uint8

const (
	// KindRequestMapping means a task reached a handler that cannot process it.
	KindRequestMapping ErrorKind = iota + 1
	// KindResultConversion means the backend reported a combination of values that is neither a success nor a failure.
	KindResultConversion
	// KindUnderlying means the backend reported an error, available via Unwrap.
	KindUnderlying
)

func (k ErrorKind) String() string {
	switch k {
	case KindRequestMapping:
		return "requestMapping"
	case KindResultConversion:
		return "resultConversion"
	case KindUnderlying:
		return "underlying"
	default:
		return "unknown"
	}
}

// NoraError is the error type of every failed Result.
type NoraError struct {
	Kind  ErrorKind
	Cause error // only for KindUnderlying
}

var (
	ErrRequestMapping   = &NoraError{Kind: KindRequestMapping}
	ErrResultConversion = &NoraError{Kind: KindResultConversion}
)

// Underlying wraps an error reported by the backend.
func Underlying(cause error) *NoraError {
	return &NoraError{Kind: KindUnderlying, Cause: cause}
}

func (e *NoraError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("nora: %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("nora: %s", e.Kind)
}

func (e *NoraError) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind, so that errors.Is(err, ErrRequestMapping) works.
func (e *NoraError) Is(target error) bool {
	t, ok := target.(*NoraError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Cause == nil || t.Cause == e.Cause)
}
