package observable

// Map returns a cell that tracks fn applied to src. Call stop to detach it.
func Map[T, U any](src *Cell[T], fn func(T) U, equal EqualFunc[U], opts ...Option) (derived *Cell[U], stop func()) {
	derived = New(fn(src.Get()), equal, opts...)
	stop = src.Subscribe(func(v, _ T) {
		derived.Set(fn(v))
	})
	return derived, stop
}

// Filter returns a cell holding src's value while pred accepts it and the
// zero value otherwise.
func Filter[T any](src *Cell[T], pred func(T) bool, equal EqualFunc[T], opts ...Option) (derived *Cell[T], stop func()) {
	pick := func(v T) T {
		if pred(v) {
			return v
		}
		var zero T
		return zero
	}
	return Map(src, pick, equal, opts...)
}
