// Package runtime assembles data sources, pipelines and the GraphQL endpoint
// into a Service and manages its lifecycle.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/pipegraph/internal/config"
	"github.com/tjfontaine/pipegraph/internal/core/ports"
	"github.com/tjfontaine/pipegraph/internal/datasource"
	"github.com/tjfontaine/pipegraph/internal/frontdoor/graphql"
	"github.com/tjfontaine/pipegraph/internal/idgen"
	"github.com/tjfontaine/pipegraph/internal/pipeline"
	"github.com/tjfontaine/pipegraph/internal/server"
)

// Service is the main entry point for serving pipelines.
// It can be embedded in larger applications or run standalone.
type Service struct {
	// Dependencies (injected via options)
	cfg            *config.Config
	logger         *slog.Logger
	ids            ports.IDGenerator
	injected       []datasource.Source
	registry       *prometheus.Registry
	tracerProvider trace.TracerProvider

	// Internal state
	sources    *datasource.Set
	dispatcher *pipeline.Dispatcher
	graphql    *graphql.Executor
	server     *server.Server

	mu     sync.Mutex
	closed bool
}

// New creates a Service with the given options. Data sources are opened and
// every pipeline is built before New returns.
func New(ctx context.Context, opts ...Option) (*Service, error) {
	s := &Service{
		logger: slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	// Set defaults for optional dependencies
	if s.cfg == nil {
		s.cfg = config.Default()
	}
	if s.ids == nil {
		ids, err := idgen.New(idgen.Format(s.cfg.IDs.Format))
		if err != nil {
			return nil, err
		}
		s.ids = ids
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}

	if err := s.openSources(ctx); err != nil {
		return nil, err
	}

	metrics, err := pipeline.NewMetrics(s.registry)
	if err != nil {
		s.sources.Close()
		return nil, err
	}
	executor := pipeline.NewExecutor(
		pipeline.WithLogger(s.logger),
		pipeline.WithTracerProvider(s.tracerProvider),
		pipeline.WithMetrics(metrics),
	)
	dispatcher, err := pipeline.NewDispatcherFromConfig(s.cfg, s.sources.DataSources(), s.ids, executor)
	if err != nil {
		s.sources.Close()
		return nil, fmt.Errorf("build pipelines: %w", err)
	}
	s.dispatcher = dispatcher
	s.graphql = graphql.NewExecutor(dispatcher, graphql.WithLogger(s.logger))

	if err := s.initServer(); err != nil {
		s.sources.Close()
		return nil, err
	}

	fields := make([]string, 0, len(dispatcher.Fields()))
	for _, f := range dispatcher.Fields() {
		fields = append(fields, f.String())
	}
	s.logger.Info("pipelines ready",
		slog.Any("fields", fields),
		slog.Any("data_sources", s.sources.Names()))

	return s, nil
}

// openSources opens configured data sources. Injected sources take the place
// of configured ones with the same name.
func (s *Service) openSources(ctx context.Context) error {
	injected := make(map[string]bool, len(s.injected))
	for _, src := range s.injected {
		injected[src.Name()] = true
	}

	var cfgs []config.DataSourceConfig
	for _, ds := range s.cfg.DataSources {
		if !injected[ds.Name] {
			cfgs = append(cfgs, ds)
		}
	}

	set, err := datasource.OpenAll(ctx, cfgs, s.logger)
	if err != nil {
		for _, src := range s.injected {
			src.Close()
		}
		return fmt.Errorf("open data sources: %w", err)
	}
	for _, src := range s.injected {
		set.Add(src)
	}
	s.sources = set
	return nil
}

func (s *Service) initServer() error {
	timeout, err := s.cfg.Server.TimeoutDuration()
	if err != nil {
		return err
	}

	s.server = server.New(server.Config{
		Port:           s.cfg.Server.Port,
		Timeout:        timeout,
		ServiceName:    s.cfg.Telemetry.ServiceName,
		TracerProvider: s.tracerProvider,
	}, s.logger)

	gqlHandler := graphql.NewHandler(s.graphql, s.logger)
	r := s.server.Router
	r.Method(http.MethodGet, "/graphql", gqlHandler)
	r.Method(http.MethodPost, "/graphql", gqlHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", s.handleHealth)
	if s.cfg.Server.Playground {
		r.Get("/", graphql.PlaygroundHandler("pipegraph", "/graphql"))
	}
	return nil
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	fields := make([]string, 0)
	for _, f := range s.dispatcher.Fields() {
		fields = append(fields, f.String())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":       "ok",
		"fields":       fields,
		"data_sources": s.sources.Names(),
	})
}

// Dispatcher returns the field dispatcher.
func (s *Service) Dispatcher() *pipeline.Dispatcher {
	return s.dispatcher
}

// Handler returns the HTTP handler serving GraphQL, metrics and health.
func (s *Service) Handler() http.Handler {
	return s.server.Router
}

// Config returns the effective configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Start serves HTTP until Shutdown is called.
func (s *Service) Start() error {
	return s.server.Start()
}

// Shutdown gracefully stops the HTTP server and closes data sources.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := s.Close(); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// Close releases data sources without touching the HTTP server. It is safe
// to call more than once.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.sources.Close(); err != nil {
		s.logger.Error("failed to close data sources", slog.String("error", err.Error()))
		return err
	}
	return nil
}
