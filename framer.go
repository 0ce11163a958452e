package framer

import (
	"context"
	"fmt"
	"sync"

	"github.com/indigo-web/framer/config"
	"github.com/indigo-web/framer/http"
	"github.com/indigo-web/framer/internal/address"
	"github.com/indigo-web/framer/internal/metrics"
	"github.com/indigo-web/framer/internal/server"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// App wires together the configuration, the worker pool and the server.
type App struct {
	addr    address.Address
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	onStart func()

	mu     sync.Mutex
	pool   *ants.Pool
	server *server.Server
}

// New returns a new App instance. Panics if the address is malformed.
func New(addr string) *App {
	appAddr, err := address.Parse(addr)
	if err != nil {
		panic(fmt.Errorf("framer: bad addr: %w", err))
	}

	return &App{
		addr:    appAddr,
		cfg:     config.Default(),
		logger:  zap.NewNop(),
		metrics: metrics.New(),
	}
}

// Tune replaces the default config.
func (a *App) Tune(cfg *config.Config) *App {
	a.cfg = cfg
	return a
}

// Logger sets the logger. By default, nothing is logged.
func (a *App) Logger(logger *zap.Logger) *App {
	a.logger = logger
	return a
}

// Metrics returns the registry the server's collectors are registered in.
func (a *App) Metrics() *prometheus.Registry {
	return a.metrics.Registry()
}

// NotifyOnStart calls the callback once the server is ready to accept connections.
func (a *App) NotifyOnStart(cb func()) *App {
	a.onStart = cb
	return a
}

// Serve starts the application and blocks until it's stopped.
func (a *App) Serve(handler http.Handler) error {
	pool, err := ants.NewPool(
		a.cfg.Workers.PoolSize,
		ants.WithNonblocking(a.cfg.Workers.Nonblocking),
		ants.WithLogger(zap.NewStdLog(a.logger)),
	)
	if err != nil {
		return fmt.Errorf("framer: worker pool: %w", err)
	}

	defer pool.Release()

	srv := server.New(a.cfg, handler, a.logger, a.metrics).OnStart(a.onStart)
	a.mu.Lock()
	a.pool, a.server = pool, srv
	a.mu.Unlock()

	a.logger.Info("starting", zap.Stringer("addr", a.addr))
	return srv.Run(a.addr.String())
}

// Stop closes all the connections and makes Serve return.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.server
	a.mu.Unlock()

	if srv == nil {
		return server.ErrNotRunning
	}

	return srv.Stop(ctx)
}

// executor returns the worker pool, if the App is running.
func (a *App) executor() *ants.Pool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.pool
}
