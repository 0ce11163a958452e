package server

import (
	"net"
	"sync"
	"time"

	"github.com/indigo-web/framer/internal/transport"
	"github.com/indigo-web/framer/task"
	"github.com/panjf2000/gnet/v2"
	"github.com/panjf2000/gnet/v2/pkg/pool/byteslice"
)

const (
	minSentPoll = time.Millisecond
	maxSentPoll = 50 * time.Millisecond
)

// socket is the part of gnet.Conn the transport relies on. AsyncWrite, Wake and Close are
// safe to be called from any goroutine, whereas Fd and OutboundBuffered are called only
// from within the event-loop (i.e. from the callbacks).
type socket interface {
	AsyncWrite(buf []byte, callback gnet.AsyncCallback) error
	Wake(callback gnet.AsyncCallback) error
	Close() error
	Fd() int
	OutboundBuffered() int
}

// connTransport implements transport.Transport over a gnet connection. Every write is copied
// into pooled storage and enqueued to the event-loop, therefore always completes asynchronously.
// A flush completes once every write enqueued before it was handed to the event-loop.
//
// A write is reported as completed even if a part of it stays in the outbound buffer of the
// event-loop. Therefore, both half-close and disconnect are deferred until that buffer is
// empty, or the linger timeout elapses.
type connTransport struct {
	sock     socket
	onEnd    func(transport.EndKind)
	shutdown func(fd int) error
	linger   time.Duration
	mu       sync.Mutex
	queued   int
	err      error
	// waiters are resumed once queued drops to zero
	waiters   []func(error)
	halfClose bool
	closed    bool
}

func newConnTransport(sock socket, linger time.Duration, onEnd func(transport.EndKind)) *connTransport {
	return &connTransport{
		sock:     sock,
		onEnd:    onEnd,
		shutdown: shutdownWrite,
		linger:   linger,
	}
}

func (t *connTransport) Write(b []byte) (task.Status, error) {
	if len(b) == 0 {
		return task.Done, nil
	}

	t.mu.Lock()
	if t.err != nil {
		t.mu.Unlock()
		return task.Done, t.err
	}

	t.queued++
	t.mu.Unlock()

	buf := byteslice.Get(len(b))
	copy(buf, b)

	err := t.sock.AsyncWrite(buf, func(_ gnet.Conn, err error) error {
		byteslice.Put(buf)
		t.written(err)
		return nil
	})
	if err != nil {
		byteslice.Put(buf)
		t.written(err)
		return task.Done, err
	}

	return task.Pending, nil
}

func (t *connTransport) Flush(resume func(error)) (task.Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.queued == 0 {
		return task.Done, t.err
	}

	t.waiters = append(t.waiters, resume)
	return task.Pending, nil
}

func (t *connTransport) End(kind transport.EndKind) {
	switch kind {
	case transport.HalfCloseSend:
		t.mu.Lock()
		drained, closed := t.queued == 0, t.closed
		// otherwise, the sending side is closed once the queue is drained
		t.halfClose = !drained && !closed
		t.mu.Unlock()

		if drained && !closed {
			t.whenSent(t.closeWrite)
		}
	case transport.Disconnect:
		t.whenSent(func() {
			t.close(net.ErrClosed)
		})
	}

	t.onEnd(kind)
}

// written is called once an enqueued write is either handed to the event-loop or failed.
func (t *connTransport) written(err error) {
	t.mu.Lock()
	if err != nil && t.err == nil {
		t.err = err
	}

	t.queued--
	if t.queued > 0 {
		t.mu.Unlock()
		return
	}

	waiters, result := t.waiters, t.err
	t.waiters = nil
	halfClose := t.halfClose && !t.closed
	t.halfClose = false
	t.mu.Unlock()

	if halfClose {
		t.whenSent(t.closeWrite)
	}

	for _, resume := range waiters {
		resume(result)
	}
}

// whenSent calls fn from within the event-loop as soon as its outbound buffer is empty. If
// the peer doesn't read for longer than the linger timeout, fn is called anyway. It's never
// called if the connection is closed meanwhile.
func (t *connTransport) whenSent(fn func()) {
	deadline := time.Now().Add(t.linger)
	var poll func(delay time.Duration)
	poll = func(delay time.Duration) {
		err := t.sock.Wake(func(gnet.Conn, error) error {
			if t.isClosed() {
				return nil
			}

			if t.sock.OutboundBuffered() > 0 && time.Now().Before(deadline) {
				time.AfterFunc(delay, func() {
					poll(min(2*delay, maxSentPoll))
				})

				return nil
			}

			fn()
			return nil
		})
		if err != nil {
			t.close(err)
		}
	}

	poll(minSentPoll)
}

func (t *connTransport) closeWrite() {
	if err := t.shutdown(t.sock.Fd()); err != nil {
		// not every socket supports it. The connection gets closed anyway later on
		t.close(err)
	}
}

func (t *connTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}

// gone marks the connection closed by the other side.
func (t *connTransport) gone() {
	t.mu.Lock()
	t.closed = true
	if t.err == nil {
		t.err = net.ErrClosed
	}
	t.mu.Unlock()
}

// close tears the connection down. Writes after that fail with the reason.
func (t *connTransport) close(reason error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	t.closed = true
	if t.err == nil {
		t.err = reason
	}
	t.mu.Unlock()

	_ = t.sock.Close()
}
