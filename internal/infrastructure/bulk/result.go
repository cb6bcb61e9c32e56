package bulk

// Result is the outcome of one remote call: a value or an error, never both.
type Result[R any] struct {
	Value R
	Err   error
}

// Ok wraps a successful response
func Ok[R any](value R) Result[R] {
	return Result[R]{Value: value}
}

// Err wraps a failed call
func Err[R any](err error) Result[R] {
	return Result[R]{Err: err}
}

// IsOk reports whether the call succeeded
func (r Result[R]) IsOk() bool {
	return r.Err == nil
}
