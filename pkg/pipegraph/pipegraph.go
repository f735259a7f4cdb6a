// Package pipegraph provides the public API for embedding the pipeline
// engine. This is the stable API for external consumers.
package pipegraph

import (
	"github.com/tjfontaine/pipegraph/internal/config"
	"github.com/tjfontaine/pipegraph/internal/core/domain"
	"github.com/tjfontaine/pipegraph/internal/datasource"
	"github.com/tjfontaine/pipegraph/internal/runtime"
)

// Service serves configured pipelines over GraphQL.
// See internal/runtime.Service for full documentation.
type Service = runtime.Service

// Option is a functional option for configuring a Service.
type Option = runtime.Option

// Config is the service configuration.
type Config = config.Config

// DataSource is a data source that can be supplied with WithDataSource.
type DataSource = datasource.Source

// Values flowing through pipelines.
type (
	Record    = domain.Record
	Operation = domain.Operation
	Result    = domain.Result
	Error     = domain.Error
)

// New creates a new Service with the given options.
// Example:
//
//	svc, err := pipegraph.New(ctx,
//	    pipegraph.WithConfigFile("pipegraph.yaml"),
//	)
var New = runtime.New

// LoadConfig reads a YAML file and PIPEGRAPH_ environment overrides.
var LoadConfig = config.Load

// Configuration options
var (
	WithConfig         = runtime.WithConfig
	WithConfigFile     = runtime.WithConfigFile
	WithLogger         = runtime.WithLogger
	WithIDGenerator    = runtime.WithIDGenerator
	WithDataSource     = runtime.WithDataSource
	WithRegistry       = runtime.WithRegistry
	WithTracerProvider = runtime.WithTracerProvider
)
