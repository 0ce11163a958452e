package http1

import (
	"net"

	"github.com/indigo-web/framer/config"
	"github.com/indigo-web/framer/http"
	"github.com/indigo-web/framer/http/proto"
	"github.com/indigo-web/framer/internal/baton"
	"github.com/indigo-web/framer/internal/metrics"
	"github.com/indigo-web/framer/internal/transport"
	"github.com/indigo-web/framer/kv"
	"github.com/indigo-web/framer/task"
	"go.uber.org/zap"
)

type Mode uint8

const (
	StartLine Mode = iota
	MessageHeader
	MessageBody
	// Terminated is final: the frame won't do anything anymore.
	Terminated
)

func (m Mode) String() string {
	switch m {
	case StartLine:
		return "start-line"
	case MessageHeader:
		return "message-header"
	case MessageBody:
		return "message-body"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Frame drives a single request cycle of a connection: parses the request line and headers,
// dispatches the request to the handler, writes the response and decides, what happens to
// the connection afterward. The connection then either resets the frame for the next request
// or drops it.
//
// All the methods and continuations must be executed serially, which is ensured by routing
// them via the post function.
type Frame struct {
	cfg        *config.Config
	transport  transport.Transport
	handler    http.Handler
	post       task.Post
	logger     *zap.Logger
	metrics    *metrics.Metrics
	request    *http.Request
	parser     *Parser
	serializer *Serializer
	output     *output
	body       *Body
	mode       Mode
	// cycle distinguishes requests, so that late callbacks of a previous one are ignored
	cycle          uint64
	keepAlive      bool
	resultStarted  bool
	expectContinue bool
	continueSent   bool
}

func NewFrame(
	cfg *config.Config, t transport.Transport, post task.Post, handler http.Handler, remote net.Addr,
) *Frame {
	request := http.NewRequest(kv.NewPrealloc(cfg.Headers.Number.Default), remote)

	return &Frame{
		cfg:        cfg,
		transport:  t,
		handler:    handler,
		post:       post,
		logger:     zap.NewNop(),
		request:    request,
		parser:     NewParser(cfg, request),
		serializer: NewSerializer(make([]byte, 0, 1024)),
		output:     newOutput(t),
	}
}

// Logger sets the logger faults are reported to.
func (f *Frame) Logger(logger *zap.Logger) *Frame {
	f.logger = logger
	return f
}

// Metrics sets the collector. Nil disables collecting.
func (f *Frame) Metrics(m *metrics.Metrics) *Frame {
	f.metrics = m
	return f
}

func (f *Frame) Mode() Mode {
	return f.mode
}

// Request returns the request being processed. Its values are valid until Reset.
func (f *Frame) Request() *http.Request {
	return f.request
}

// KeepAlive reports the current keep-alive decision.
func (f *Frame) KeepAlive() bool {
	return f.keepAlive
}

// Consume advances the frame as far as the bytes in the baton permit. False is returned if
// more bytes are needed, true once the request was dispatched to the handler; from that
// point on, the bytes are routed to the body. Errors are fatal: the connection must be
// aborted.
//
// Premature end of input while parsing isn't an error, the frame is just terminated.
func (f *Frame) Consume(b *baton.Baton) (dispatched bool, err error) {
	switch f.mode {
	case StartLine:
		goto startLine
	case MessageHeader:
		goto headers
	case MessageBody:
		f.body.Consume(b)
		return true, nil
	default:
		return false, nil
	}

startLine:
	{
		n, progress, err := f.parser.RequestLine(b.Bytes())
		if err != nil {
			return false, f.fail(err)
		}

		if progress == Insufficient {
			return false, f.insufficient(b)
		}

		b.Skip(n)
		f.mode = MessageHeader
	}

headers:
	for {
		n, progress, err := f.parser.HeaderField(b.Bytes())
		if err != nil {
			return false, f.fail(err)
		}

		if progress == Insufficient {
			return false, f.insufficient(b)
		}

		b.Skip(n)
		if progress == HeadersEnd {
			break
		}
	}

	if err = f.dispatch(b); err != nil {
		return false, f.fail(err)
	}

	return true, nil
}

func (f *Frame) fail(err error) error {
	f.mode = Terminated
	f.metrics.ParseError()

	return err
}

func (f *Frame) insufficient(b *baton.Baton) error {
	if b.EOF() {
		// the peer has gone before completing the request
		f.mode = Terminated
	}

	return nil
}

// dispatch is called once the header section is complete.
func (f *Frame) dispatch(b *baton.Baton) error {
	body, err := NewBody(f.request, f.cfg.Body)
	if err != nil {
		return err
	}

	f.body, f.request.Body = body, body
	f.keepAlive = body.KeepAlive()
	f.mode = MessageBody
	f.metrics.RequestParsed()

	if f.request.Protocol == proto.HTTP11 && !body.Finished() &&
		hasToken(f.request.Headers.Values("Expect"), "100-continue") {
		f.expectContinue = true
		body.OnDemand(f.onBodyDemand(f.cycle))
	}

	b.Release()
	// the body may have already arrived along with the headers
	body.Consume(b)
	f.execute()

	return nil
}

// Reset prepares the frame for the next request on the same connection.
func (f *Frame) Reset() {
	f.mode = StartLine
	f.parser.Reset()
	f.request.Reset()
	f.body = nil
	f.output = newOutput(f.transport)
	f.cycle++
	f.keepAlive = false
	f.resultStarted = false
	f.expectContinue = false
	f.continueSent = false
}
