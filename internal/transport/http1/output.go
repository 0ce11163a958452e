package http1

import (
	"sync"

	"github.com/indigo-web/framer/http"
	"github.com/indigo-web/framer/internal/transport"
)

var _ http.Output = new(output)

// output binds the response body writer to the transport. The first failure, including
// those of asynchronous flushes, sticks and is returned by every following call.
type output struct {
	transport transport.Transport
	mu        sync.Mutex
	err       error
}

func newOutput(t transport.Transport) *output {
	return &output{transport: t}
}

func (o *output) Write(b []byte) error {
	if err := o.Err(); err != nil {
		return err
	}

	if _, err := o.transport.Write(b); err != nil {
		o.fail(err)
		return err
	}

	return nil
}

func (o *output) Flush() error {
	if err := o.Err(); err != nil {
		return err
	}

	if _, err := o.transport.Flush(o.fail); err != nil {
		o.fail(err)
	}

	return o.Err()
}

func (o *output) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.err
}

func (o *output) fail(err error) {
	if err == nil {
		return
	}

	o.mu.Lock()
	if o.err == nil {
		o.err = err
	}
	o.mu.Unlock()
}
