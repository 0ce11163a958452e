package http1

import (
	"sync"

	"github.com/indigo-web/framer/internal/transport"
	"github.com/indigo-web/framer/task"
)

// recorder is a transport keeping everything written to it. In async mode writes and
// flushes are reported as pending, and flushes complete only when the test says so.
type recorder struct {
	mu       sync.Mutex
	async    bool
	data     []byte
	flushes  int
	ends     []transport.EndKind
	pending  []func(error)
	writeErr error
}

func newRecorder(async bool) *recorder {
	return &recorder{async: async}
}

func (r *recorder) Write(b []byte) (task.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writeErr != nil {
		return task.Done, r.writeErr
	}

	r.data = append(r.data, b...)
	if r.async {
		return task.Pending, nil
	}

	return task.Done, nil
}

func (r *recorder) Flush(resume func(error)) (task.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushes++
	if r.async {
		r.pending = append(r.pending, resume)
		return task.Pending, nil
	}

	return task.Done, nil
}

func (r *recorder) End(kind transport.EndKind) {
	r.mu.Lock()
	r.ends = append(r.ends, kind)
	r.mu.Unlock()
}

// complete fires pending flush completions, including those requested meanwhile.
func (r *recorder) complete() {
	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.mu.Unlock()
			return
		}

		resume := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		resume(nil)
	}
}

func (r *recorder) Data() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return string(r.data)
}

func (r *recorder) Ends() []transport.EndKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]transport.EndKind(nil), r.ends...)
}

func (r *recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}
