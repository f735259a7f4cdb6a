package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/tjfontaine/pipegraph/internal/core/domain"
	"github.com/tjfontaine/pipegraph/internal/core/ports"
)

// RequestMapping turns the current context into a storage operation.
// It must be pure: no I/O, no mutation of the context.
type RequestMapping func(c domain.Context) (domain.Operation, error)

// ResponseMapping turns a raw data source result into the function's outcome.
type ResponseMapping func(c domain.Context, raw *domain.Result) (any, error)

// ErrorMapping may turn a data source error into a recovered outcome.
// Returning an error keeps the pipeline aborted.
type ErrorMapping func(c domain.Context, err error) (any, error)

// Function is one request/response mapping pair bound to a data source.
type Function struct {
	name       string
	dataSource ports.DataSource
	request    RequestMapping
	response   ResponseMapping
	onError    ErrorMapping
}

// FunctionConfig configures a function.
type FunctionConfig struct {
	Name       string
	DataSource ports.DataSource
	Request    RequestMapping
	Response   ResponseMapping
	OnError    ErrorMapping // optional
}

// NewFunction creates a function definition.
func NewFunction(cfg FunctionConfig) (*Function, error) {
	if cfg.Name == "" {
		return nil, errors.New("function name is required")
	}
	if cfg.DataSource == nil {
		return nil, fmt.Errorf("function %s: data source is required", cfg.Name)
	}
	if cfg.Request == nil || cfg.Response == nil {
		return nil, fmt.Errorf("function %s: request and response mappings are required", cfg.Name)
	}
	return &Function{
		name:       cfg.Name,
		dataSource: cfg.DataSource,
		request:    cfg.Request,
		response:   cfg.Response,
		onError:    cfg.OnError,
	}, nil
}

// Name returns the function identifier.
func (f *Function) Name() string {
	return f.name
}

// DataSource returns the data source the function is bound to.
func (f *Function) DataSource() ports.DataSource {
	return f.dataSource
}

// RunRequest evaluates the request mapping.
func (f *Function) RunRequest(c domain.Context) (domain.Operation, error) {
	op, err := f.request(c)
	if err != nil {
		return domain.Operation{}, mappingError(err, f.name)
	}
	return op, nil
}

// RunResponse evaluates the response mapping.
func (f *Function) RunResponse(c domain.Context, raw *domain.Result) (any, error) {
	out, err := f.response(c, raw)
	if err != nil {
		return nil, mappingError(err, f.name)
	}
	return out, nil
}

// invoke runs request, data source call and response for one context.
func (f *Function) invoke(ctx context.Context, c domain.Context) (any, error) {
	op, err := f.RunRequest(c)
	if err != nil {
		return nil, err
	}

	raw, err := f.dataSource.Execute(ctx, op)
	if err != nil {
		return f.recover(c, f.backendError(err))
	}

	return f.RunResponse(c, raw)
}

func (f *Function) recover(c domain.Context, err error) (any, error) {
	if f.onError == nil {
		return nil, err
	}
	out, rerr := f.onError(c, err)
	if rerr != nil {
		if _, ok := domain.AsError(rerr); ok {
			return nil, rerr
		}
		return nil, mappingError(rerr, f.name)
	}
	return out, nil
}

// backendError annotates a data source error with the function and data
// source names. Untyped errors are treated as the backend being unavailable.
func (f *Function) backendError(err error) error {
	e, ok := domain.AsError(err)
	if !ok {
		return domain.ErrBackendUnavailable(err.Error()).
			WithStage(f.name).
			WithDataSource(f.dataSource.Name()).
			WithCause(err)
	}
	annotated := *e
	if annotated.Stage == "" {
		annotated.Stage = f.name
	}
	if annotated.DataSource == "" {
		annotated.DataSource = f.dataSource.Name()
	}
	return &annotated
}

// mappingError normalises an error raised by a mapping into a typed
// mapping error. Typed errors pass through with the stage recorded.
func mappingError(err error, stage string) error {
	if e, ok := domain.AsError(err); ok {
		if e.Stage != "" {
			return err
		}
		annotated := *e
		annotated.Stage = stage
		return &annotated
	}
	return domain.ErrMapping(err.Error()).WithStage(stage).WithCause(err)
}
