package server

import (
	"net"

	"github.com/indigo-web/framer/config"
	"github.com/indigo-web/framer/http"
	"github.com/indigo-web/framer/internal/baton"
	"github.com/indigo-web/framer/internal/metrics"
	"github.com/indigo-web/framer/internal/transport"
	"github.com/indigo-web/framer/internal/transport/http1"
	"github.com/indigo-web/framer/task"
	"github.com/panjf2000/gnet/v2/pkg/pool/byteslice"
	"go.uber.org/zap"
)

// conn is the per-connection driver. It feeds the frame with the received bytes and restarts
// it after every kept-alive request. Everything it does is serialized by the strand.
type conn struct {
	strand    task.Strand
	baton     *baton.Baton
	frame     *http1.Frame
	transport *connTransport
	logger    *zap.Logger
	// done is set once the connection won't process requests anymore
	done bool
}

func newConn(
	cfg *config.Config,
	sock socket,
	remote net.Addr,
	handler http.Handler,
	logger *zap.Logger,
	m *metrics.Metrics,
) *conn {
	c := &conn{
		baton:  baton.New(cfg.NET.ReadBufferSize),
		logger: logger,
	}
	c.transport = newConnTransport(sock, cfg.NET.Linger, c.onEnd)
	c.frame = http1.NewFrame(cfg, c.transport, c.strand.Post, handler, remote).
		Logger(logger).
		Metrics(m)

	return c
}

// Feed passes the received bytes. They're copied, so the slice may be reused after the call.
func (c *conn) Feed(data []byte) {
	chunk := byteslice.Get(len(data))
	copy(chunk, data)

	c.strand.Post(func() {
		defer byteslice.Put(chunk)
		if c.done {
			return
		}

		c.baton.Append(chunk)
		c.consume()
	})
}

// Close is called once the connection is closed, by either side.
func (c *conn) Close() {
	c.transport.gone()
	c.strand.Post(func() {
		if !c.done {
			c.baton.SetEOF()
			c.consume()
		}

		// the frame may still be busy with the response, but it never touches the baton
		// until consume is called again
		c.done = true
		c.baton.Free()
	})
}

func (c *conn) consume() {
	if _, err := c.frame.Consume(c.baton); err != nil {
		c.logger.Warn("malformed request", zap.Error(err))
		c.transport.End(transport.Disconnect)
		return
	}

	if c.frame.Mode() == http1.Terminated && !c.done {
		c.transport.End(transport.Disconnect)
	}
}

func (c *conn) onEnd(kind transport.EndKind) {
	switch kind {
	case transport.KeepAlive:
		c.strand.Post(func() {
			if c.done {
				return
			}

			c.frame.Reset()
			c.consume()
		})
	case transport.Disconnect:
		c.done = true
	}
}
