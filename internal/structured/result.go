package structured

// Result is the outcome of parsing generation output: either a value or an
// error, never both. It is produced once at the parsing boundary so callers
// only ever match on one shape.
type Result[T any] struct {
	value T
	err   error
	ok    bool
}

// Ok wraps a successfully parsed value
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Fail wraps a parse failure. err is normally a *ParseError or a
// *GenerationFailedError.
func Fail[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Ok reports whether parsing succeeded
func (r Result[T]) Ok() bool {
	return r.ok
}

// Value returns the parsed value, or the zero value on failure
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure, or nil on success
func (r Result[T]) Err() error {
	return r.err
}

// Unwrap returns the value and error as a conventional pair
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.err
}
