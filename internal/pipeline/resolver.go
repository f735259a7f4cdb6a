package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"github.com/tjfontaine/pipegraph/internal/core/domain"
)

// OuterRequestMapping runs before the first function. It may validate or
// transform the context.
type OuterRequestMapping func(c domain.Context) (domain.Context, error)

// OuterResponseMapping runs after the last function and produces the field value.
type OuterResponseMapping func(c domain.Context) (any, error)

// FieldKey identifies a field by its parent type and name.
type FieldKey struct {
	TypeName  string
	FieldName string
}

// String returns "Type.field".
func (k FieldKey) String() string {
	return k.TypeName + "." + k.FieldName
}

// Resolver is the complete ordered handling of one field.
type Resolver struct {
	key       FieldKey
	functions []*Function
	request   OuterRequestMapping
	response  OuterResponseMapping
}

// ResolverConfig configures a resolver.
type ResolverConfig struct {
	TypeName  string
	FieldName string
	Functions []*Function
	// Request defaults to PassThrough.
	Request OuterRequestMapping
	// Response defaults to PrevResult.
	Response OuterResponseMapping
}

// NewResolver creates an immutable resolver. The function list is copied, so
// later changes to cfg.Functions do not affect the resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.TypeName == "" || cfg.FieldName == "" {
		return nil, errors.New("resolver type and field names are required")
	}
	key := FieldKey{TypeName: cfg.TypeName, FieldName: cfg.FieldName}
	if len(cfg.Functions) == 0 {
		return nil, fmt.Errorf("resolver %s: at least one function is required", key)
	}
	for i, fn := range cfg.Functions {
		if fn == nil {
			return nil, fmt.Errorf("resolver %s: function %d is nil", key, i)
		}
	}

	r := &Resolver{
		key:       key,
		functions: slices.Clone(cfg.Functions),
		request:   cfg.Request,
		response:  cfg.Response,
	}
	if r.request == nil {
		r.request = PassThrough
	}
	if r.response == nil {
		r.response = PrevResult
	}
	return r, nil
}

// Key returns the field the resolver is bound to.
func (r *Resolver) Key() FieldKey {
	return r.key
}

// Functions returns a copy of the ordered function list.
func (r *Resolver) Functions() []*Function {
	return slices.Clone(r.functions)
}
