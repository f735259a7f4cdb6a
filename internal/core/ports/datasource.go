// Package ports defines the capabilities the pipeline engine depends on.
package ports

import (
	"context"

	"github.com/tjfontaine/pipegraph/internal/core/domain"
)

// DataSource executes storage operations against one table.
//
// Implementations must be safe for concurrent use and hold no per-invocation
// state. Errors should be *domain.Error values of type backend_unavailable or
// backend_rejected.
type DataSource interface {
	// Name returns the data source identifier used in configuration.
	Name() string
	// Execute runs a single operation and returns its raw result.
	Execute(ctx context.Context, op domain.Operation) (*domain.Result, error)
}

// IDGenerator produces a fresh, collision-resistant identifier on every call.
type IDGenerator interface {
	NewID() (string, error)
}
