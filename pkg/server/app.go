package server

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"Stooorage/pkg/config"
	xhttp "Stooorage/pkg/http"
	pkgkafka "Stooorage/pkg/kafka"
	applogger "Stooorage/pkg/logger"
	"Stooorage/pkg/postgres"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	pg         *postgres.Client
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	collector  *applogger.CollectionConfig
	closers    []closer
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, pg *postgres.Client) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, httpServer: httpServer, pg: pg}
}

// SetConsumer attaches the sale mirror consumer and its handler.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = h
}

// SetLogCollector ships aggregated error logs once Run starts.
func (a *App) SetLogCollector(c *applogger.CollectionConfig) { a.collector = c }

// AddCloser registers a resource released on shutdown, in reverse order of registration.
func (a *App) AddCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if a.collector != nil {
		a.l.AddCollector(a.collector)
		a.l.Info("log collector enabled", applogger.String("topic", a.collector.Topic))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return a.shutdown(err)
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return a.shutdown(err)
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown(nil)
}

// shutdown stops components in reverse start order and returns cause.
func (a *App) shutdown(cause error) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// flush aggregated logs before the producer goes away
	if a.collector != nil {
		a.l.RemoveCollector()
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}

	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			a.l.Warn("postgres close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return cause
}
