package task

import "sync"

// Strand serializes functions posted from any goroutine. The posting goroutine executes
// the queue itself when the strand is idle; posts made while the strand is busy (including
// nested posts from a running function) are queued and executed by the same loop, so
// chained completions never grow the stack.
type Strand struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

// Post implements the Post signature.
func (s *Strand) Post(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	if s.running {
		s.mu.Unlock()
		return
	}

	s.running = true
	s.mu.Unlock()
	s.drain()
}

func (s *Strand) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}

		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		fn()
	}
}
