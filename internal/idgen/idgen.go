// Package idgen provides the identifier generators used for generated keys.
package idgen

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tjfontaine/pipegraph/internal/core/ports"
)

// Format selects the identifier scheme.
type Format string

const (
	// FormatUUID produces random (version 4) UUIDs.
	FormatUUID Format = "uuid"
	// FormatUUIDv7 produces time-ordered (version 7) UUIDs.
	FormatUUIDv7 Format = "uuidv7"
)

// UUID generates UUID strings.
type UUID struct {
	version int
}

// New returns the generator for format. An empty format selects FormatUUID.
func New(format Format) (*UUID, error) {
	switch format {
	case "", FormatUUID:
		return &UUID{version: 4}, nil
	case FormatUUIDv7:
		return &UUID{version: 7}, nil
	default:
		return nil, fmt.Errorf("unsupported id format %q (must be 'uuid' or 'uuidv7')", format)
	}
}

// NewID returns a fresh identifier.
func (g *UUID) NewID() (string, error) {
	if g.version == 7 {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generate uuid v7: %w", err)
		}
		return id.String(), nil
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return id.String(), nil
}

var _ ports.IDGenerator = (*UUID)(nil)
