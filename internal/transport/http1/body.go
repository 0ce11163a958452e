package http1

import (
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/indigo-web/chunkedbody"
	"github.com/indigo-web/framer/config"
	"github.com/indigo-web/framer/http"
	"github.com/indigo-web/framer/http/proto"
	"github.com/indigo-web/framer/http/status"
	"github.com/indigo-web/framer/internal/baton"
	"github.com/indigo-web/framer/task"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	"github.com/panjf2000/gnet/v2/pkg/pool/byteslice"
)

type framing uint8

const (
	// emptyBody is assumed for persistent requests without framing headers
	emptyBody framing = iota
	fixedBody
	chunkedBody
	// untilClose is assumed for non-persistent requests without framing headers: everything
	// until the peer closes the connection is the body
	untilClose
)

var _ http.Body = new(Body)

// Body decides how the request body is delimited and consumes it. Its intake side (Consume,
// Drain) belongs to the connection's flow, whereas the reading side (http.Body) is used by
// the handler, usually on a different goroutine. Pieces are passed between them through
// a queue.
//
// The queue isn't flow-controlled: the intake never waits for the reader, as pausing the
// reception is up to the transport. Instead, the queue is bounded by the body size limit
// (config.Body.MaxSize), and is released as soon as the limit is exceeded.
type Body struct {
	framing   framing
	keepAlive bool
	left      uint64
	received  uint64
	maxSize   uint64
	parser    *chunkedbody.Parser
	finished  bool
	fault     error
	drained   func(error)

	mu      sync.Mutex
	arrived sync.Cond
	queue   [][]byte
	// current is the pooled storage behind the piece being read
	current   []byte
	piece     []byte
	eof       bool
	err       error
	discarded bool
	demand    func()
	whole     []byte
	wholeErr  error
	wholeDone bool
}

// NewBody chooses the framing of the request body, basing on its headers and protocol.
func NewBody(request *http.Request, cfg config.Body) (*Body, error) {
	b := &Body{
		keepAlive: requestKeepAlive(request),
		maxSize:   cfg.MaxSize,
	}
	b.arrived.L = &b.mu

	headers := request.Headers
	chunked, err := isChunked(headers.Values("Transfer-Encoding"))
	if err != nil {
		return nil, err
	}

	switch {
	case chunked:
		if headers.Has("Content-Length") {
			// the length is ambiguous, so the connection can't be trusted anymore
			b.keepAlive = false
		}

		settings := chunkedbody.DefaultSettings()
		settings.MaxChunkSize = cfg.MaxChunkSize
		b.framing, b.parser = chunkedBody, chunkedbody.NewParser(settings)
	case headers.Has("Content-Length"):
		length, err := contentLength(headers.Values("Content-Length"))
		if err != nil {
			return nil, err
		}

		if length > b.maxSize {
			return nil, status.ErrBodyTooLarge
		}

		b.framing, b.left = fixedBody, length
	case b.keepAlive:
		b.framing = emptyBody
	default:
		b.framing = untilClose
	}

	if b.framing == emptyBody || (b.framing == fixedBody && b.left == 0) {
		b.finish(nil)
	}

	return b, nil
}

// KeepAlive reports whether the request permits the connection to be reused.
func (b *Body) KeepAlive() bool {
	return b.keepAlive
}

// Finished reports whether the whole body was received (or faulted).
func (b *Body) Finished() bool {
	return b.finished
}

// OnDemand registers a callback, called the first time a reader would wait for the body.
func (b *Body) OnDemand(fn func()) {
	b.mu.Lock()
	b.demand = fn
	b.mu.Unlock()
}

// Consume takes as much body as the framing permits out of the baton. Whatever follows
// the body stays in the baton.
func (b *Body) Consume(src *baton.Baton) (finished bool) {
	if b.finished {
		return true
	}

	switch b.framing {
	case fixedBody:
		n := min(uint64(src.Len()), b.left)
		b.push(src.Bytes()[:n])
		src.Skip(int(n))
		if b.left -= n; b.left == 0 {
			b.finish(nil)
		}
	case chunkedBody:
	chunks:
		for src.Len() > 0 && !b.finished {
			data := src.Bytes()
			chunk, extra, err := b.parser.Parse(data, false)
			if !b.push(chunk) {
				break
			}

			src.Skip(len(data) - len(extra))

			switch err {
			case nil:
				if len(chunk) == 0 && len(extra) == len(data) {
					break chunks
				}
			case io.EOF:
				b.finish(nil)
			default:
				b.finish(status.ErrBadChunk)
			}
		}
	case untilClose:
		b.push(src.Bytes())
		src.Skip(src.Len())
		if src.EOF() {
			b.finish(nil)
		}
	}

	if !b.finished && src.EOF() {
		b.finish(status.ErrUnexpectedEOF)
	}

	return b.finished
}

// push hands a copy of the piece to the reader. Returns false if the body limit is exceeded,
// in which case the body is faulted.
func (b *Body) push(piece []byte) (ok bool) {
	if len(piece) == 0 {
		return true
	}

	received, overflows := addUint(b.received, uint64(len(piece)))
	if overflows || received > b.maxSize {
		b.mu.Lock()
		b.releaseQueue()
		b.mu.Unlock()
		b.finish(status.ErrBodyTooLarge)
		return false
	}

	b.received = received
	b.mu.Lock()
	if !b.discarded {
		buf := byteslice.Get(len(piece))
		copy(buf, piece)
		b.queue = append(b.queue, buf)
		b.arrived.Signal()
	}
	b.mu.Unlock()

	return true
}

func (b *Body) finish(err error) {
	if b.finished {
		return
	}

	b.finished, b.fault = true, err
	b.mu.Lock()
	b.eof, b.err = true, err
	b.arrived.Broadcast()
	b.mu.Unlock()

	if drained := b.drained; drained != nil {
		b.drained = nil
		drained(err)
	}
}

// Drain discards everything the handler didn't read and completes once the whole body
// was received. A faulted body fails the drain.
func (b *Body) Drain(resume func(error)) (task.Status, error) {
	b.mu.Lock()
	b.discarded = true
	b.releaseQueue()
	b.mu.Unlock()

	if b.finished {
		return task.Done, b.fault
	}

	b.drained = resume
	return task.Pending, nil
}

// releaseQueue returns the pieces nobody has read yet to the pool. Must be called with
// the mutex held.
func (b *Body) releaseQueue() {
	for i, piece := range b.queue {
		byteslice.Put(piece)
		b.queue[i] = nil
	}
	b.queue = b.queue[:0]
}

// Read implements io.Reader. Blocks until a piece of body arrives.
func (b *Body) Read(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.piece) == 0 {
		if b.current != nil {
			byteslice.Put(b.current)
			b.current = nil
		}

		switch {
		case b.discarded:
			return 0, io.EOF
		case len(b.queue) > 0:
			b.current, b.piece = b.queue[0], b.queue[0]
			b.queue[0] = nil
			b.queue = b.queue[1:]
		case b.eof:
			if b.err != nil {
				return 0, b.err
			}

			return 0, io.EOF
		case b.demand != nil:
			demand := b.demand
			b.demand = nil
			b.mu.Unlock()
			demand()
			b.mu.Lock()
		default:
			b.arrived.Wait()
		}
	}

	n = copy(p, b.piece)
	b.piece = b.piece[n:]

	return n, nil
}

// Bytes reads the whole body. Repeated calls return the same result.
func (b *Body) Bytes() ([]byte, error) {
	if b.wholeDone {
		return b.whole, b.wholeErr
	}

	b.whole, b.wholeErr = io.ReadAll(b)
	b.wholeDone = true

	return b.whole, b.wholeErr
}

func (b *Body) String() (string, error) {
	data, err := b.Bytes()
	return uf.B2S(data), err
}

func (b *Body) Discard() error {
	_, err := io.Copy(io.Discard, b)
	return err
}

func requestKeepAlive(request *http.Request) bool {
	if request.Protocol == proto.HTTP11 {
		return !hasToken(request.Headers.Values("Connection"), "close")
	}

	return hasToken(request.Headers.Values("Connection"), "keep-alive")
}

// isChunked reports whether the transfer codings end with chunked. Other codings aren't
// supported.
func isChunked(values []string) (bool, error) {
	chunked := false
	for _, value := range values {
		for token := range strings.SplitSeq(value, ",") {
			token = strings.TrimSpace(token)
			switch {
			case len(token) == 0:
			case chunked:
				// chunked must be the last one and applied only once
				return false, status.ErrBadRequest
			case strcomp.EqualFold(token, "chunked"):
				chunked = true
			default:
				return false, status.ErrUnsupportedEncoding
			}
		}
	}

	return chunked, nil
}

// contentLength parses the value. Repeated values are allowed as long as they are equal.
func contentLength(values []string) (length uint64, err error) {
	seen := false
	for _, value := range values {
		for token := range strings.SplitSeq(value, ",") {
			n, err := strconv.ParseUint(strings.TrimSpace(token), 10, 64)
			if err != nil || (seen && n != length) {
				return 0, status.ErrBadContentLength
			}

			length, seen = n, true
		}
	}

	return length, nil
}

func hasToken(values []string, token string) bool {
	for _, value := range values {
		for t := range strings.SplitSeq(value, ",") {
			if strcomp.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}

	return false
}

func addUint(x, y uint64) (uint64, bool) {
	return x + y, math.MaxUint64-x < y
}
