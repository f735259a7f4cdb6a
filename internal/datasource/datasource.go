// Package datasource opens configured data sources.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/tjfontaine/pipegraph/internal/config"
	"github.com/tjfontaine/pipegraph/internal/core/ports"
	"github.com/tjfontaine/pipegraph/internal/storage"
	"github.com/tjfontaine/pipegraph/internal/storage/badgerdb"
	"github.com/tjfontaine/pipegraph/internal/storage/memory"
	"github.com/tjfontaine/pipegraph/internal/storage/sqldb"
)

// Source is a data source that holds resources until closed.
type Source interface {
	ports.DataSource
	Close() error
}

// Open creates the data source described by cfg.
func Open(ctx context.Context, cfg config.DataSourceConfig, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("data source %s: %w", cfg.Name, err)
	}

	var src Source = storage.NewTable(cfg.Name, cfg.Key, backend)
	if cfg.Retries > 0 {
		backoff, err := cfg.RetryBackoffDuration()
		if err != nil {
			backend.Close()
			return nil, err
		}
		src = NewRetrying(src, cfg.Retries, backoff, logger)
	}

	logger.Info("data source opened",
		slog.String("name", cfg.Name),
		slog.String("type", cfg.Type),
		slog.String("table", cfg.Table),
		slog.String("key", cfg.Key))
	return src, nil
}

func openBackend(ctx context.Context, cfg config.DataSourceConfig, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case config.DataSourceMemory:
		return memory.New(), nil
	case config.DataSourceSQLite, config.DataSourceMySQL:
		return sqldb.New(ctx, sqldb.Config{Driver: cfg.Type, DSN: cfg.DSN, Table: cfg.Table})
	case config.DataSourceBadger:
		return badgerdb.New(badgerdb.Config{
			Path:     cfg.Path,
			InMemory: cfg.InMemory,
			Table:    cfg.Table,
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("unsupported type %q", cfg.Type)
	}
}

// Set is a collection of open data sources keyed by name.
type Set struct {
	sources map[string]Source
}

// OpenAll opens every configured data source. On failure the ones already
// opened are closed.
func OpenAll(ctx context.Context, cfgs []config.DataSourceConfig, logger *slog.Logger) (*Set, error) {
	s := &Set{sources: make(map[string]Source, len(cfgs))}
	for _, cfg := range cfgs {
		if _, exists := s.sources[cfg.Name]; exists {
			s.Close()
			return nil, fmt.Errorf("duplicate data source %q", cfg.Name)
		}
		src, err := Open(ctx, cfg, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.sources[cfg.Name] = src
	}
	return s, nil
}

// Add registers an already open source, replacing any source with the same name.
func (s *Set) Add(src Source) {
	if s.sources == nil {
		s.sources = make(map[string]Source)
	}
	if old, ok := s.sources[src.Name()]; ok && old != src {
		old.Close()
	}
	s.sources[src.Name()] = src
}

// Get returns the named source.
func (s *Set) Get(name string) (Source, bool) {
	src, ok := s.sources[name]
	return src, ok
}

// Names returns the source names in sorted order.
func (s *Set) Names() []string {
	return slices.Sorted(maps.Keys(s.sources))
}

// DataSources returns the sources as pipeline data sources.
func (s *Set) DataSources() map[string]ports.DataSource {
	out := make(map[string]ports.DataSource, len(s.sources))
	for name, src := range s.sources {
		out[name] = src
	}
	return out
}

// Close closes every source and returns the combined error.
func (s *Set) Close() error {
	var errs []error
	for _, name := range s.Names() {
		if err := s.sources[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
