package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FlashScan/pkg/config"
	xhttp "FlashScan/pkg/http"
	pkgkafka "FlashScan/pkg/kafka"
	applogger "FlashScan/pkg/logger"
)

// Resource is an infrastructure dependency closed on shutdown, in registration order.
type Resource struct {
	Name   string
	Closer io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	handler    xhttp.Handler
	health     func(ctx context.Context) error
	consumer   *pkgkafka.Consumer
	jobs       pkgkafka.MessageHandler
	resources  []Resource
	httpServer *xhttp.Server
}

// New creates a new App instance. consumer and jobs may be nil when job consumption is disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	health func(ctx context.Context) error,
	consumer *pkgkafka.Consumer,
	jobs pkgkafka.MessageHandler,
	resources ...Resource,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:       cfg,
		l:         l,
		handler:   handler,
		health:    health,
		consumer:  consumer,
		jobs:      jobs,
		resources: resources,
	}
}

// Run serves until SIGINT or SIGTERM and then shuts down.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext serves HTTP and, when configured, consumes analysis jobs until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(a.cfg.Server.CORS),
		xhttp.WithBodyLimit(a.cfg.Server.BodyLimit),
		xhttp.WithLogger(a.l),
		xhttp.WithMetricsPath(a.metricsPath()),
		xhttp.WithHealthCheck(a.health),
	)
	if err := a.httpServer.Start(); err != nil {
		a.closeResources()
		return err
	}

	if a.consumer != nil && a.jobs != nil {
		a.consumer.RegisterHandler(a.jobs)
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start", applogger.Error(err))
			_ = a.shutdown()
			return err
		}
		a.l.Info("consuming analysis jobs", applogger.String("topic", a.jobs.Topic()))
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) metricsPath() string {
	if !a.cfg.Metrics.Enabled {
		return ""
	}
	return a.cfg.Metrics.Path
}

// shutdown stops intake first (HTTP, consumer) and then closes infrastructure clients.
func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
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

	// Flush aggregated logs while the producer is still open.
	a.l.Info("shutdown complete")
	a.l.RemoveCollector()
	a.closeResources()
	return nil
}

func (a *App) closeResources() {
	for _, r := range a.resources {
		if r.Closer == nil {
			continue
		}
		if err := r.Closer.Close(); err != nil {
			a.l.Warn("close error", applogger.String("resource", r.Name), applogger.Error(err))
		}
	}
}
