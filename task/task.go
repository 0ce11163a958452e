// Package task implements the completion contract used across the connection pipeline.
//
// Every potentially asynchronous step is an Op. An Op either completes inline, returning
// Done, or returns Pending and promises to call resume exactly once later, possibly from
// another goroutine. Run chains Ops without growing the stack on inline completions and
// without firing a continuation twice.
package task

import "sync/atomic"

type Status uint8

const (
	// Done means the operation has completed by the time it returned. The resume callback
	// is not going to be called.
	Done Status = iota
	// Pending means the operation will call resume exactly once, later.
	Pending
)

// Op is a single step in continuation-passing form.
type Op func(resume func(error)) (Status, error)

// Post schedules fn to be executed. Used to route asynchronous resumptions back into
// the owner's serialized flow (see Strand). Inline is used when no serialization needed.
type Post func(fn func())

// Inline executes the function immediately on the caller's stack.
func Inline(fn func()) {
	fn()
}

// Noop completes immediately.
func Noop(func(error)) (Status, error) {
	return Done, nil
}

// Func wraps a synchronous function into an Op.
func Func(fn func() error) Op {
	return func(func(error)) (Status, error) {
		return Done, fn()
	}
}

// step states
const (
	running uint32 = iota
	returnedPending
	resumedEarly
	finished
)

type sequence struct {
	ops  []Op
	post Post
	done func(error)
}

// Run executes the operations one after another and calls done exactly once with either
// the first error or nil. Inline completions are iterated instead of recursed into. A
// pending operation resumed from another goroutine continues via post; a resumption
// happening before the operation returned is picked up by the running loop itself.
func Run(post Post, done func(error), ops ...Op) {
	if post == nil {
		post = Inline
	}

	s := &sequence{ops: ops, post: post, done: done}
	s.loop(0)
}

func (s *sequence) loop(i int) {
	for ; i < len(s.ops); i++ {
		var (
			state   atomic.Uint32
			fired   atomic.Bool
			lateErr error
		)

		next := i + 1
		resume := func(err error) {
			if !fired.CompareAndSwap(false, true) {
				return
			}

			lateErr = err
			if state.CompareAndSwap(running, resumedEarly) {
				// the operation is still on the stack; the loop continues by itself
				return
			}

			if !state.CompareAndSwap(returnedPending, finished) {
				// the operation reported inline completion, so the late call is ignored
				return
			}

			s.post(func() {
				if err != nil {
					s.done(err)
					return
				}

				s.loop(next)
			})
		}

		status, err := s.ops[i](resume)
		if status == Pending && err == nil {
			if state.CompareAndSwap(running, returnedPending) {
				return
			}

			// resumed before returning, so carry on inline
			err = lateErr
		} else {
			state.CompareAndSwap(running, finished)
		}

		if err != nil {
			s.done(err)
			return
		}
	}

	s.done(nil)
}
