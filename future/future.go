// Package future provides a single-assignment result that many goroutines can
// wait on.
package future

import (
	"context"
	"errors"
	"sync"
)

// ErrPending is returned by Result while the future is unresolved.
var ErrPending = errors.New("future: pending")

// Future is completed exactly once, either with a value or with an error.
// The zero value is not usable; create futures with New or Failed.
type Future[T any] struct {
	done chan struct{}

	mu        sync.Mutex
	completed bool
	value     T
	err       error
	handlers  []func(T, error)
}

func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Failed returns a future that is already completed with err.
func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.Fail(err)
	return f
}

// Completed returns a future that already holds v.
func Completed[T any](v T) *Future[T] {
	f := New[T]()
	f.Complete(v)
	return f
}

// Complete resolves f with v. It reports false when f was already resolved,
// in which case nothing changes.
func (f *Future[T]) Complete(v T) bool {
	return f.resolve(v, nil)
}

// Fail resolves f with err.
func (f *Future[T]) Fail(err error) bool {
	var zero T
	return f.resolve(zero, err)
}

func (f *Future[T]) resolve(v T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.value, f.err = v, err
	handlers := f.handlers
	f.handlers = nil
	close(f.done)
	f.mu.Unlock()

	for _, h := range handlers {
		h(v, err)
	}
	return true
}

// OnComplete registers h to run once with the outcome. h runs on the
// goroutine that resolves f, or right away when f is already resolved.
func (f *Future[T]) OnComplete(h func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.handlers = append(f.handlers, h)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	h(v, err)
}

// Done is closed once f is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome without blocking, or ErrPending.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.completed {
		var zero T
		return zero, ErrPending
	}
	return f.value, f.err
}

// Wait blocks until f is resolved or ctx ends. A ctx error leaves f
// untouched.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
