// Package app is the composition root: it turns a Config into a running
// check list with its backend, metrics, services and optional HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/idilsaglam/checklist/internal/checklist"
	"github.com/idilsaglam/checklist/internal/config"
	"github.com/idilsaglam/checklist/internal/httpapi"
	"github.com/idilsaglam/checklist/internal/metrics"
	"github.com/idilsaglam/checklist/internal/notify"
	"github.com/idilsaglam/checklist/internal/services"
	"github.com/idilsaglam/checklist/internal/store/jsonstore"
	"github.com/idilsaglam/checklist/internal/store/memstore"
	"github.com/idilsaglam/checklist/internal/store/sqlstore"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    *checklist.Store
	Services *services.Service
	Metrics  *metrics.Recorder
	Registry *prometheus.Registry

	closeBackend func() error
}

// Open builds the backend named by cfg and loads the list from it.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend, closeBackend, err := OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.New(reg)
	if err != nil {
		_ = closeBackend()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	store, err := checklist.Open(ctx, backend,
		checklist.WithLogger(logger.Named("store")),
		checklist.WithMetrics(rec),
		checklist.WithHub(notify.NewHub()),
		checklist.WithPersistTimeout(cfg.Storage.Timeout.Std()),
	)
	if err != nil {
		_ = closeBackend()
		return nil, fmt.Errorf("load check list: %w", err)
	}
	logger.Debug("check list loaded",
		zap.String("backend", cfg.Storage.Backend),
		zap.Int("items", len(store.Items())))

	return &App{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		Services:     services.New(store, logger.Named("services")),
		Metrics:      rec,
		Registry:     reg,
		closeBackend: closeBackend,
	}, nil
}

// OpenBackend returns the persistence backend for cfg and a func releasing it.
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (checklist.Backend, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.BackendJSON, "":
		s, err := jsonstore.New(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case config.BackendSQL:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.Path
		}
		s, err := sqlstore.Open(ctx, cfg.Driver, dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendMemory:
		return memstore.New(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Close ends subscriptions and releases the backend.
func (a *App) Close() error {
	a.Store.Close()
	return a.closeBackend()
}

// Serve listens on the configured address until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener runs the HTTP API on ln and shuts it down gracefully when
// ctx is done. It takes ownership of ln.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	api := httpapi.New(a.Store, a.Services, httpapi.Options{
		Logger:      a.Logger.Named("http"),
		Metrics:     a.Metrics,
		Gatherer:    a.Registry,
		RateLimit:   a.Config.HTTP.RateLimit,
		Burst:       a.Config.HTTP.Burst,
		EventBuffer: a.Config.Notify.Buffer,
	})
	srv := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(api.CloseConnections)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("serving check list", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.HTTP.ShutdownTimeout.Std())
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		a.Logger.Info("http server stopped")
		return nil
	})
	return g.Wait()
}
