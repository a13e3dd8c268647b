package bridge

import "context"

// Future is a single-assignment result handle. It is resolved exactly once
// by the worker executing the operation and may be awaited by any number of
// goroutines.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// complete resolves the future. Must be called exactly once.
func (f *Future[T]) complete(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Await blocks until the operation completes or ctx is done. Cancelling the
// await does not cancel the underlying store call; it merely stops waiting.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the result is available, for use in
// caller select loops.
func (f *Future[T]) Done() <-chan struct{} { return f.done }
