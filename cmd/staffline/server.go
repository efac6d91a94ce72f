package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/staffline/api/handlers"
	"github.com/BaSui01/staffline/bot/allocator"
	"github.com/BaSui01/staffline/bot/engine"
	"github.com/BaSui01/staffline/bot/session"
	"github.com/BaSui01/staffline/config"
	"github.com/BaSui01/staffline/internal/metrics"
	"github.com/BaSui01/staffline/internal/server"
	"github.com/BaSui01/staffline/internal/telemetry"
	"github.com/BaSui01/staffline/store/rowstore"
)

// =============================================================================
// Server wiring
// =============================================================================

// Server assembles the full service: row store, session store, allocator,
// engine, API handlers and the two HTTP listeners (API and metrics).
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	otel      *telemetry.Providers
	store     rowstore.Store
	sessions  session.Store
	collector *metrics.Collector

	api        *server.Manager
	metricsSrv *server.Manager

	// cancel stops middleware background loops (rate limiter cleanup).
	cancel context.CancelFunc
}

// NewServer builds the full dependency graph from config.
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) (*Server, error) {
	store, err := rowstore.New(rowstore.Config{
		Type: rowstore.Type(cfg.Store.Type),
		File: rowstore.FileConfig{Dir: cfg.Store.File.Dir},
		Database: rowstore.DatabaseConfig{
			Driver:          cfg.Store.Database.Driver,
			DSN:             cfg.Store.Database.DSN,
			MaxOpenConns:    cfg.Store.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Store.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.Database.ConnMaxLifetime,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create row store: %w", err)
	}

	sessions, err := session.New(session.Config{
		Type: session.Type(cfg.Session.Type),
		TTL:  cfg.Session.TTL,
		Redis: session.RedisConfig{
			Addr:         cfg.Session.Redis.Addr,
			Password:     cfg.Session.Redis.Password,
			DB:           cfg.Session.Redis.DB,
			PoolSize:     cfg.Session.Redis.PoolSize,
			MinIdleConns: cfg.Session.Redis.MinIdleConns,
		},
	}, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector("staffline", registry, logger)

	// Every row store operation from here on is measured.
	store = rowstore.NewInstrumentedStore(store, collector)

	eng, err := engine.New(engine.Config{
		Active:      cfg.Bot.Active,
		CancelWord:  cfg.Bot.CancelWord,
		Timezone:    cfg.Bot.Timezone,
		TurnTimeout: cfg.Bot.TurnTimeout,
	}, sessions, store, allocator.New(store, logger), collector, logger)
	if err != nil {
		sessions.Close()
		store.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	eventHandler := handlers.NewEventHandler(eng, collector, logger)

	healthHandler := handlers.NewHealthHandler(logger)
	healthHandler.RegisterCheck(handlers.NewPingHealthCheck("rowstore", store.Ping))
	healthHandler.RegisterCheck(handlers.NewPingHealthCheck("sessions", sessions.Ping))

	ctx, cancel := context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/events", eventHandler.HandleEvent)
	mux.HandleFunc("/healthz", healthHandler.HandleHealthz)
	mux.HandleFunc("/readyz", healthHandler.HandleReady)
	mux.HandleFunc("/version", healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	handler := Chain(mux,
		Recovery(logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(logger),
		MetricsMiddleware(collector),
		OTelTracing(),
		RateLimiter(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger),
	)

	apiCfg := server.DefaultConfig()
	apiCfg.Addr = fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	apiCfg.ReadTimeout = cfg.Server.ReadTimeout
	apiCfg.WriteTimeout = cfg.Server.WriteTimeout
	apiCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	metricsCfg := server.DefaultConfig()
	metricsCfg.Addr = fmt.Sprintf(":%d", cfg.Server.MetricsPort)
	metricsCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout

	return &Server{
		cfg:        cfg,
		logger:     logger,
		otel:       otelProviders,
		store:      store,
		sessions:   sessions,
		collector:  collector,
		api:        server.NewManager(handler, apiCfg, logger),
		metricsSrv: server.NewManager(metricsMux, metricsCfg, logger),
		cancel:     cancel,
	}, nil
}

// Start brings up both listeners without blocking.
func (s *Server) Start() error {
	if err := s.api.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	if err := s.metricsSrv.Start(); err != nil {
		_ = s.api.Shutdown(context.Background())
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("staffline started",
		zap.String("api_addr", s.api.Addr()),
		zap.String("metrics_addr", s.metricsSrv.Addr()),
	)
	return nil
}

// WaitForShutdown blocks until a termination signal or a listener failure,
// then shuts everything down.
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-s.api.Errors():
		s.logger.Error("API server exited unexpectedly", zap.Error(err))
	case err := <-s.metricsSrv.Errors():
		s.logger.Error("metrics server exited unexpectedly", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown finished with errors", zap.Error(err))
	}
}

// Shutdown stops the listeners, background loops and backends.
func (s *Server) Shutdown(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.api.Shutdown(ctx) })
	g.Go(func() error { return s.metricsSrv.Shutdown(ctx) })
	err := g.Wait()

	s.cancel()

	if cerr := s.sessions.Close(); cerr != nil {
		s.logger.Error("failed to close session store", zap.Error(cerr))
	}
	if cerr := s.store.Close(); cerr != nil {
		s.logger.Error("failed to close row store", zap.Error(cerr))
	}
	if s.otel != nil {
		if terr := s.otel.Shutdown(ctx); terr != nil {
			s.logger.Warn("telemetry shutdown failed", zap.Error(terr))
		}
	}

	return err
}
