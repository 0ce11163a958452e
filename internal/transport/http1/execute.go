package http1

import (
	"errors"
	"fmt"

	"github.com/indigo-web/framer/http"
	"github.com/indigo-web/framer/http/status"
	"github.com/indigo-web/framer/internal/transport"
	"github.com/indigo-web/framer/task"
	"go.uber.org/zap"
)

var errNilResponse = errors.New("handler returned no response")

// execute passes the request to the handler and writes the response, once it's ready.
func (f *Frame) execute() {
	var (
		response *http.Response
		written  struct{}
	)

	task.Run(f.post, f.finalize,
		f.callHandler().Await(&response),
		func(resume func(error)) (task.Status, error) {
			return task.Done, f.writeHeader(response)
		},
		// header bytes must reach the transport before any byte of the body does
		f.transport.Flush,
		func(resume func(error)) (task.Status, error) {
			return f.callBodyWriter(response).Await(&written)(resume)
		},
		f.flushOutput,
		task.Func(f.output.Err),
	)
}

func (f *Frame) callHandler() (future *task.Future[*http.Response]) {
	defer func() {
		if r := recover(); r != nil {
			future = task.Failed[*http.Response](fmt.Errorf("handler panicked: %v", r))
		}
	}()

	if future = f.handler(f.request); future == nil {
		future = task.Failed[*http.Response](errNilResponse)
	}

	return future
}

// writeHeader starts the result: renders the response header section and writes it.
func (f *Frame) writeHeader(response *http.Response) error {
	if response == nil {
		return errNilResponse
	}

	f.resultStarted = true
	keepAlive := f.keepAlive
	if f.awaitingContinue() {
		// the peer holds the body back, waiting for us. It won't be read, neither can it
		// be told apart from the next request
		keepAlive = false
	}

	fields := response.Reveal()
	header, keepAlive := f.serializer.Header(f.request.Protocol, fields, keepAlive)
	f.keepAlive = keepAlive
	f.metrics.Response(status.StringCode(fields.Code))

	_, err := f.transport.Write(header)
	return err
}

func (f *Frame) callBodyWriter(response *http.Response) (future *task.Future[struct{}]) {
	fields := response.Reveal()
	if fields.Body == nil || f.request.Method == "HEAD" {
		return task.Resolved(struct{}{})
	}

	defer func() {
		if r := recover(); r != nil {
			future = task.Failed[struct{}](fmt.Errorf("body writer panicked: %v", r))
		}
	}()

	if future = fields.Body(f.output); future == nil {
		future = task.Resolved(struct{}{})
	}

	return future
}

func (f *Frame) flushOutput(resume func(error)) (task.Status, error) {
	if err := f.output.Err(); err != nil {
		return task.Done, err
	}

	return f.transport.Flush(func(err error) {
		f.output.fail(err)
		resume(err)
	})
}

// finalize decides the fate of the connection once the response is complete or failed.
func (f *Frame) finalize(err error) {
	if err != nil {
		f.keepAlive = false
		f.metrics.HandlerFault()
		f.logger.Warn("request failed",
			zap.String("method", f.request.Method),
			zap.String("uri", f.request.RequestURI),
			zap.Error(err))
	}

	if !f.keepAlive {
		f.transport.End(transport.HalfCloseSend)
	}

	task.Run(f.post, f.end, f.drain)
}

// drain makes sure no unread body bytes are left, so they won't be confused with the
// next request.
func (f *Frame) drain(resume func(error)) (task.Status, error) {
	if f.awaitingContinue() {
		// the peer wasn't invited to send the body, so there's nothing to wait for
		return task.Done, nil
	}

	return f.body.Drain(resume)
}

func (f *Frame) end(err error) {
	if err != nil {
		f.keepAlive = false
		f.logger.Debug("request body wasn't drained", zap.Error(err))
	}

	kind := transport.Disconnect
	if f.keepAlive {
		kind = transport.KeepAlive
	}

	f.metrics.CycleEnded(kind.String())
	f.transport.End(kind)
}
