// Command statproxy runs the statistics proxy: a thin HTTP surface over the
// aggregation and event-resolution core.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/robostats/statproxy/infrastructure/middleware"
	"github.com/robostats/statproxy/infrastructure/upstream"
	"github.com/robostats/statproxy/internal/aggregate"
	"github.com/robostats/statproxy/internal/api"
	"github.com/robostats/statproxy/internal/application"
	"github.com/robostats/statproxy/internal/resolve"
	"github.com/robostats/statproxy/pkg/logger"
)

const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("statproxy: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := application.LoadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	collector := middleware.NewPrometheusMetrics()

	client, err := upstream.New(cfg.Upstream, upstream.WithMetrics(collector))
	if err != nil {
		return err
	}

	aggregator, err := aggregate.New(client, cfg.Aggregate,
		aggregate.WithMetrics(collector),
		aggregate.WithLogger(log.Named("aggregate")),
	)
	if err != nil {
		return err
	}

	aliases, err := cfg.Aliases()
	if err != nil {
		return err
	}
	resolver, err := resolve.NewResolver(aliases, cfg.Resolver,
		resolve.WithResolverLogger(log.Named("resolve")),
	)
	if err != nil {
		return err
	}

	service, err := application.NewService(client, aggregator, resolver,
		application.WithServiceLogger(log.Named("service")),
		application.WithServiceMetrics(collector),
	)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(service, log.Named("http")).Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", cfg.Addr),
			zap.String("upstream", cfg.Upstream.BaseURL),
			zap.Int("aliases", aliases.Len()),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
