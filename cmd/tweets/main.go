// Command tweets serves the engagement store over HTTP, backed by the store
// selected with TWEETS_BACKEND.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgeee/tweets/api"
	"github.com/edgeee/tweets/api/validator"
	"github.com/edgeee/tweets/config"
	"github.com/edgeee/tweets/metrics"
	"github.com/edgeee/tweets/mongo"
	"github.com/edgeee/tweets/postgres"
	"github.com/edgeee/tweets/redis"
	"github.com/edgeee/tweets/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, err := redis.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect user directory: %w", err)
	}
	defer users.Close()

	s, closeStore, err := openStore(ctx, cfg, users)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	defer closeStore()
	logger.Info("Store ready", "backend", cfg.Backend)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", &api.API{
		Logger: logger,
		Store:  metrics.NewStore(s, cfg.Backend, reg),
		Users:  users,
		Val:    validator.New(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", cfg.HTTPAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore connects to the configured backend and prepares its schema. The
// redis backend shares the client of the user directory.
func openStore(ctx context.Context, cfg *config.Config, users *redis.Redis) (store.EngagementStore, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pg, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	case config.BackendMongo:
		m, err := mongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		if err := m.EnsureIndexes(ctx); err != nil {
			_ = m.Close(context.Background())
			return nil, nil, err
		}
		return m, func() { _ = m.Close(context.Background()) }, nil
	case config.BackendRedis:
		return users, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
