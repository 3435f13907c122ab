// Package app provides the application implementation for the lock
// contention profiler's demo server: it wires config, logging,
// metrics, and a profiling Session together and exposes them over
// HTTP for inspection.
//
// The App struct is the entry point that:
//   - Initializes the session (tracer + aggregator + dump pipeline)
//   - Manages the application lifecycle (start, stop, graceful shutdown)
//   - Provides HTTP endpoints for the current snapshot, aggregated
//     report, rendered timeline, and Prometheus metrics
//
// Example usage:
//
//	app, err := app.New("/path/to/config.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := app.Run(); err != nil {
//		log.Fatal(err)
//	}
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"lockprof/internal/config"
	"lockprof/internal/metrics"
	"lockprof/internal/session"
)

// App coordinates one profiling Session and the HTTP server that
// exposes it.
type App struct {
	config  *config.Config
	logger  *logrus.Logger
	metrics *metrics.Metrics
	session *session.Session

	httpServer *http.Server

	ctx        context.Context
	cancel     context.CancelFunc
	configFile string
	wg         sync.WaitGroup
}

// New loads configFile, builds the logger and metrics registry, and
// constructs the profiling Session and HTTP server. No goroutines run
// until Start.
func New(configFile string) (*App, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config:     cfg,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		configFile: configFile,
	}

	app.metrics = metrics.New()
	app.session = session.New(cfg, logger, app.metrics)

	logger.WithFields(logrus.Fields{
		"server_enabled": cfg.Server.Enabled,
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
		"dump_path":      cfg.Dump.Path,
	}).Info("lockprof configuration loaded")

	if cfg.Server.Enabled {
		app.initHTTPServer()
	}

	return app, nil
}

// initHTTPServer builds the mux router and binds it to the
// configured host/port, but does not start listening — that happens
// in Start so callers can still adjust routes beforehand in tests.
func (app *App) initHTTPServer() {
	router := mux.NewRouter()
	app.registerHandlers(router)

	addr := fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port)
	app.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}
}

// Start launches the HTTP server (if enabled) in a background
// goroutine. It does not block.
func (app *App) Start() error {
	app.logger.Info("starting lockprof")

	if app.httpServer != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.logger.WithField("addr", app.httpServer.Addr).Info("serving lockprof HTTP endpoints")
			if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				app.logger.WithError(err).Error("HTTP server exited unexpectedly")
			}
		}()
	}

	return nil
}

// Stop shuts the HTTP server down gracefully and writes the final
// stats dump exactly once, regardless of whether Stop or an earlier
// signal-driven exit path already triggered it.
func (app *App) Stop() error {
	app.logger.Info("stopping lockprof")
	app.cancel()

	if app.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.httpServer.Shutdown(ctx); err != nil {
			app.logger.WithError(err).Error("failed to shut down HTTP server cleanly")
		}
	}

	app.wg.Wait()

	dumpCtx, dumpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dumpCancel()
	app.session.DumpOnce(dumpCtx)

	app.logger.Info("lockprof stopped")
	return nil
}

// Run starts the application and blocks until a shutdown signal is
// received, then stops it gracefully.
func (app *App) Run() error {
	if err := app.Start(); err != nil {
		return err
	}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	app.logger.Info("shutdown signal received")
	return app.Stop()
}

// Session returns the underlying profiling session, for callers (such
// as the demo workload in cmd/lockprofdemo) that need to register
// traced locks directly.
func (app *App) Session() *session.Session { return app.session }
