package models

// Reading is the outcome of a single external read: either a value or the
// error that made it unavailable. It lets callers tell "zero" from "unknown".
type Reading[T any] struct {
	Value T
	Err   error
}

// Known wraps a successfully read value
func Known[T any](v T) Reading[T] {
	return Reading[T]{Value: v}
}

// Unknown marks a read as unavailable
func Unknown[T any](err error) Reading[T] {
	return Reading[T]{Err: err}
}

// OK reports whether the value was actually read
func (r Reading[T]) OK() bool {
	return r.Err == nil
}

// Or returns the value, or def when the read failed
func (r Reading[T]) Or(def T) T {
	if r.Err != nil {
		return def
	}
	return r.Value
}
