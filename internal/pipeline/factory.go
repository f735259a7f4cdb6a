package pipeline

import (
	"errors"
	"fmt"

	"github.com/tjfontaine/pipegraph/internal/config"
	"github.com/tjfontaine/pipegraph/internal/core/ports"
)

// Function templates available from configuration.
const (
	TemplateScan    = "scan"
	TemplatePutItem = "put_item"
)

// NewFunctionFromConfig builds a function from one configured template.
func NewFunctionFromConfig(cfg config.FunctionConfig, source ports.DataSource, ids ports.IDGenerator) (*Function, error) {
	fc := FunctionConfig{
		Name:       cfg.Name,
		DataSource: source,
	}

	switch cfg.Template {
	case TemplateScan:
		fc.Request = ScanRequest
		fc.Response = ItemsResponse
	case TemplatePutItem:
		if ids == nil {
			return nil, errors.New("put_item requires an id generator")
		}
		if cfg.KeyAttribute == "" {
			return nil, errors.New("put_item requires a key_attribute")
		}
		fc.Request = PutItemRequest(ids, cfg.KeyAttribute, cfg.Input())
		fc.Response = ItemResponse
	default:
		return nil, fmt.Errorf("invalid template %q (must be '%s' or '%s')", cfg.Template, TemplateScan, TemplatePutItem)
	}

	// Parse onError action
	switch cfg.OnError {
	case "", "fail":
	case "null":
		fc.OnError = NullOnError
	default:
		return nil, fmt.Errorf("invalid on_error %q (must be 'fail' or 'null')", cfg.OnError)
	}

	return NewFunction(fc)
}

// NewDispatcherFromConfig builds every configured function and resolver.
// Each function must name a data source present in sources, and each resolver
// must reference configured functions.
func NewDispatcherFromConfig(cfg *config.Config, sources map[string]ports.DataSource, ids ports.IDGenerator, executor *Executor) (*Dispatcher, error) {
	functions := make(map[string]*Function, len(cfg.Functions))
	for _, fnCfg := range cfg.Functions {
		if fnCfg.Name == "" {
			return nil, errors.New("function name is required")
		}
		if _, exists := functions[fnCfg.Name]; exists {
			return nil, fmt.Errorf("duplicate function %q", fnCfg.Name)
		}
		source, ok := sources[fnCfg.DataSource]
		if !ok {
			return nil, fmt.Errorf("function %s: unknown data source %q", fnCfg.Name, fnCfg.DataSource)
		}
		fn, err := NewFunctionFromConfig(fnCfg, source, ids)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", fnCfg.Name, err)
		}
		functions[fnCfg.Name] = fn
	}

	resolvers := make([]*Resolver, 0, len(cfg.Resolvers))
	for _, rCfg := range cfg.Resolvers {
		fns := make([]*Function, 0, len(rCfg.Functions))
		for _, name := range rCfg.Functions {
			fn, ok := functions[name]
			if !ok {
				return nil, fmt.Errorf("resolver %s.%s: unknown function %q", rCfg.Type, rCfg.Field, name)
			}
			fns = append(fns, fn)
		}
		r, err := NewResolver(ResolverConfig{
			TypeName:  rCfg.Type,
			FieldName: rCfg.Field,
			Functions: fns,
		})
		if err != nil {
			return nil, err
		}
		resolvers = append(resolvers, r)
	}

	return NewDispatcher(executor, resolvers...)
}
