package database

// DatabaseResponse is the outcome of a successful request.
type DatabaseResponse struct {
	// Reference of the affected location.
	Reference Reference
	// Snapshot of the data, nil for plain writes.
	Snapshot Snapshot
	// IsCommitted is false only for transactions that were aborted.
	IsCommitted bool
}

// Result holds either a value or an error.
type Result[T any] struct {
	Value T
	Err   error
}

// SuccessResult wraps a value.
func SuccessResult[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// FailureResult wraps an error.
func FailureResult[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// IsSuccess reports whether the result holds a value.
func (r Result[T]) IsSuccess() bool {
	return r.Err == nil
}

// Get returns value and error of the result.
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Err
}
