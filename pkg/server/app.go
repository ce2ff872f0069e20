package server

import (
	"context"
	"time"

	"WeatherCast/pkg/config"
	xhttp "WeatherCast/pkg/http"
	pkgkafka "WeatherCast/pkg/kafka"
	applogger "WeatherCast/pkg/logger"
)

// App runs the HTTP API and, when configured, the Kafka observation consumer.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	handler  xhttp.Handler
	consumer *pkgkafka.Consumer
	handlers []pkgkafka.MessageHandler

	httpServer *xhttp.Server
}

// New creates a new App. consumer may be nil; handlers are registered on it
// before it starts.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	handlers ...pkgkafka.MessageHandler,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:      cfg,
		log:      log,
		handler:  handler,
		consumer: consumer,
		handlers: handlers,
	}
}

// Run starts the application and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	opts := []xhttp.ServerOption{
		xhttp.WithLogger(a.log),
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(a.cfg.Server.CORS),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(a.cfg.Metrics.Path, a.cfg.Server.SlowThreshold))
	} else {
		opts = append(opts, xhttp.WithMetrics("", 0))
	}
	a.httpServer = xhttp.NewServer(a.handler, opts...)

	// Start consumer if configured
	if a.consumer != nil && len(a.handlers) > 0 {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
			a.log.Info("kafka handler registered", applogger.String("topic", h.Topic()))
		}
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.log.Info("kafka consumer started")
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
