package server

import (
	"context"
	"errors"
	"sync"

	"github.com/indigo-web/framer/config"
	"github.com/indigo-web/framer/http"
	"github.com/indigo-web/framer/internal/metrics"
	"github.com/panjf2000/gnet/v2"
	"go.uber.org/zap"
)

var ErrNotRunning = errors.New("server is not running")

// Server implements gnet.EventHandler, serving HTTP/1.x on top of the gnet event-loops.
type Server struct {
	gnet.BuiltinEventEngine
	cfg     *config.Config
	handler http.Handler
	logger  *zap.Logger
	metrics *metrics.Metrics
	onStart func()

	mu      sync.Mutex
	engine  gnet.Engine
	running bool
}

func New(cfg *config.Config, handler http.Handler, logger *zap.Logger, m *metrics.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		metrics: m,
	}
}

// OnStart sets the callback, called once the server is ready to accept connections.
func (s *Server) OnStart(cb func()) *Server {
	s.onStart = cb
	return s
}

// Run listens on the address and blocks until the server is stopped.
func (s *Server) Run(addr string) error {
	return gnet.Run(s, "tcp://"+addr, s.options()...)
}

// Stop shuts the event-loops down, closing all the connections.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	engine, running := s.engine, s.running
	s.mu.Unlock()

	if !running {
		return ErrNotRunning
	}

	return engine.Stop(ctx)
}

func (s *Server) options() []gnet.Option {
	options := []gnet.Option{
		gnet.WithMulticore(s.cfg.NET.Multicore),
		gnet.WithReusePort(s.cfg.NET.ReusePort),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithLogger(s.logger.Sugar()),
	}

	if s.cfg.NET.TCPKeepAlive > 0 {
		options = append(options, gnet.WithTCPKeepAlive(s.cfg.NET.TCPKeepAlive))
	}

	if s.cfg.NET.NumEventLoop > 0 {
		options = append(options, gnet.WithNumEventLoop(s.cfg.NET.NumEventLoop))
	}

	return options
}

func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.mu.Lock()
	s.engine, s.running = eng, true
	s.mu.Unlock()

	s.logger.Info("listening", zap.Bool("multicore", s.cfg.NET.Multicore))
	if s.onStart != nil {
		s.onStart()
	}

	return gnet.None
}

func (s *Server) OnShutdown(gnet.Engine) {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stopped")
}

func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	c.SetContext(newConn(s.cfg, c, c.RemoteAddr(), s.handler, s.logger, s.metrics))
	s.metrics.ConnOpened()
	s.logger.Debug("connection opened", zap.Stringer("remote", c.RemoteAddr()))

	return nil, gnet.None
}

func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	cn, ok := c.Context().(*conn)
	if !ok {
		return gnet.Close
	}

	data, err := c.Next(-1)
	if err != nil {
		s.logger.Warn("failed to read", zap.Error(err))
		return gnet.Close
	}

	if len(data) > 0 {
		cn.Feed(data)
	}

	return gnet.None
}

func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	if cn, ok := c.Context().(*conn); ok {
		cn.Close()
		s.metrics.ConnClosed()
	}

	if err != nil {
		s.logger.Debug("connection closed", zap.Stringer("remote", c.RemoteAddr()), zap.Error(err))
	} else {
		s.logger.Debug("connection closed", zap.Stringer("remote", c.RemoteAddr()))
	}

	return gnet.None
}
