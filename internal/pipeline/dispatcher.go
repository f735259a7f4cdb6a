package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
)

// Dispatcher routes field invocations to their resolvers.
type Dispatcher struct {
	executor  *Executor
	resolvers map[FieldKey]*Resolver
}

// NewDispatcher creates a dispatcher. Two resolvers bound to the same field
// are rejected.
func NewDispatcher(executor *Executor, resolvers ...*Resolver) (*Dispatcher, error) {
	if executor == nil {
		executor = NewExecutor()
	}
	d := &Dispatcher{
		executor:  executor,
		resolvers: make(map[FieldKey]*Resolver, len(resolvers)),
	}
	for i, r := range resolvers {
		if r == nil {
			return nil, fmt.Errorf("resolver %d is nil", i)
		}
		if _, exists := d.resolvers[r.Key()]; exists {
			return nil, fmt.Errorf("duplicate resolver for %s", r.Key())
		}
		d.resolvers[r.Key()] = r
	}
	return d, nil
}

// Dispatch resolves typeName.fieldName with args.
func (d *Dispatcher) Dispatch(ctx context.Context, typeName, fieldName string, args map[string]any) (any, error) {
	r, ok := d.Lookup(typeName, fieldName)
	if !ok {
		return nil, &UnresolvedFieldError{Key: FieldKey{TypeName: typeName, FieldName: fieldName}}
	}
	return d.executor.Run(ctx, r, args)
}

// Lookup returns the resolver bound to typeName.fieldName.
func (d *Dispatcher) Lookup(typeName, fieldName string) (*Resolver, bool) {
	r, ok := d.resolvers[FieldKey{TypeName: typeName, FieldName: fieldName}]
	return r, ok
}

// Fields lists every configured field, sorted by type then field name.
func (d *Dispatcher) Fields() []FieldKey {
	return slices.SortedFunc(maps.Keys(d.resolvers), func(a, b FieldKey) int {
		return cmp.Or(cmp.Compare(a.TypeName, b.TypeName), cmp.Compare(a.FieldName, b.FieldName))
	})
}
