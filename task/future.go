package task

import (
	"fmt"
	"sync"
)

// Future is a deferred result. It is resolved exactly once; later resolutions are ignored.
// Callbacks registered after the resolution are called inline.
type Future[T any] struct {
	mu       sync.Mutex
	resolved bool
	value    T
	err      error
	then     []func(T, error)
}

func NewFuture[T any]() *Future[T] {
	return new(Future[T])
}

// Resolved returns an already completed future.
func Resolved[T any](value T) *Future[T] {
	return &Future[T]{resolved: true, value: value}
}

// Failed returns an already failed future.
func Failed[T any](err error) *Future[T] {
	return &Future[T]{resolved: true, err: err}
}

// Resolve completes the future and fires the callbacks on the caller's goroutine. Returns
// false if the future was already resolved.
func (f *Future[T]) Resolve(value T, err error) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}

	f.resolved, f.value, f.err = true, value, err
	then := f.then
	f.then = nil
	f.mu.Unlock()

	for _, cb := range then {
		cb(value, err)
	}

	return true
}

// Then registers the callback. If the future is already resolved, it is called inline.
func (f *Future[T]) Then(cb func(T, error)) {
	f.mu.Lock()
	if !f.resolved {
		f.then = append(f.then, cb)
		f.mu.Unlock()
		return
	}

	value, err := f.value, f.err
	f.mu.Unlock()
	cb(value, err)
}

// Result returns the outcome, if already available.
func (f *Future[T]) Result() (value T, err error, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.value, f.err, f.resolved
}

// Await adapts the future into an Op, storing the value into dst on completion.
func (f *Future[T]) Await(dst *T) Op {
	return func(resume func(error)) (Status, error) {
		if value, err, ok := f.Result(); ok {
			*dst = value
			return Done, err
		}

		f.Then(func(value T, err error) {
			*dst = value
			resume(err)
		})

		return Pending, nil
	}
}

// Executor runs functions, usually on a goroutine pool. *ants.Pool satisfies it.
type Executor interface {
	Submit(fn func()) error
}

// Submit runs fn on the executor and resolves the returned future with its outcome.
// Panics are recovered into errors. Failure to submit fails the future immediately.
func Submit[T any](ex Executor, fn func() (T, error)) *Future[T] {
	future := NewFuture[T]()
	err := ex.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				future.Resolve(zero, fmt.Errorf("task: recovered from panic: %v", r))
			}
		}()

		future.Resolve(fn())
	})
	if err != nil {
		future.Resolve(*new(T), fmt.Errorf("task: submit: %w", err))
	}

	return future
}

// GoExecutor runs every function on a new goroutine.
type GoExecutor struct{}

func (GoExecutor) Submit(fn func()) error {
	go fn()
	return nil
}

// InlineExecutor runs functions on the caller's goroutine.
type InlineExecutor struct{}

func (InlineExecutor) Submit(fn func()) error {
	fn()
	return nil
}
