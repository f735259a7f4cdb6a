package runtime

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/pipegraph/internal/config"
	"github.com/tjfontaine/pipegraph/internal/core/ports"
	"github.com/tjfontaine/pipegraph/internal/datasource"
)

// Option is a functional option for configuring a Service.
type Option func(*Service) error

// WithConfig uses a configuration built in code or loaded elsewhere. Missing
// defaults (table names, key attributes) are filled in before validation.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		s.cfg = cfg
		return nil
	}
}

// WithConfigFile loads configuration from a YAML file and PIPEGRAPH_
// environment variables.
func WithConfigFile(path string) Option {
	return func(s *Service) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		s.cfg = cfg
		return nil
	}
}

// WithLogger sets the logger used by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithIDGenerator replaces the key generator used by put_item functions.
func WithIDGenerator(ids ports.IDGenerator) Option {
	return func(s *Service) error {
		s.ids = ids
		return nil
	}
}

// WithDataSource supplies an open data source. It replaces the configured
// data source with the same name and is closed with the Service.
func WithDataSource(src datasource.Source) Option {
	return func(s *Service) error {
		if src == nil {
			return errors.New("data source is nil")
		}
		s.injected = append(s.injected, src)
		return nil
	}
}

// WithRegistry registers metrics with reg and serves it at /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Service) error {
		s.registry = reg
		return nil
	}
}

// WithTracerProvider sets the provider for pipeline and HTTP spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) error {
		s.tracerProvider = tp
		return nil
	}
}
