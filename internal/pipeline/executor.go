package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/pipegraph/internal/core/domain"
)

const tracerName = "github.com/tjfontaine/pipegraph/internal/pipeline"

// Executor drives resolver pipelines. It holds no per-invocation state and
// may be shared by any number of concurrent invocations.
type Executor struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracerProvider sets the provider spans are created from.
func WithTracerProvider(tp trace.TracerProvider) ExecutorOption {
	return func(e *Executor) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor creates an executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run resolves one field invocation with r. The caller receives either the
// resolved value or a single error, never both.
func (e *Executor) Run(ctx context.Context, r *Resolver, args map[string]any) (any, error) {
	key := r.Key()
	ctx, span := e.tracer.Start(ctx, "pipeline.resolve", trace.WithAttributes(
		attribute.String("graphql.type", key.TypeName),
		attribute.String("graphql.field", key.FieldName),
		attribute.Int("pipeline.functions", len(r.functions)),
	))
	defer span.End()

	value, err := e.run(ctx, r, args)
	e.metrics.resolverDone(key, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline aborted")
		e.logger.WarnContext(ctx, "pipeline aborted",
			slog.String("resolver", key.String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return value, nil
}

func (e *Executor) run(ctx context.Context, r *Resolver, args map[string]any) (any, error) {
	key := r.Key()
	c := domain.NewContext(domain.Info{ParentTypeName: key.TypeName, FieldName: key.FieldName}, args)

	c, err := r.request(c)
	if err != nil {
		return nil, &StageError{Resolver: key, Stage: StageOuterRequest, Err: mappingError(err, StageOuterRequest)}
	}

	for _, fn := range r.functions {
		out, err := e.runFunction(ctx, key, fn, c)
		if err != nil {
			return nil, &StageError{Resolver: key, Stage: fn.Name(), Err: err}
		}
		c = c.WithResult(out).Next()
	}

	value, err := r.response(c)
	if err != nil {
		return nil, &StageError{Resolver: key, Stage: StageOuterResponse, Err: mappingError(err, StageOuterResponse)}
	}
	return value, nil
}

func (e *Executor) runFunction(ctx context.Context, key FieldKey, fn *Function, c domain.Context) (any, error) {
	ctx, span := e.tracer.Start(ctx, "pipeline.function", trace.WithAttributes(
		attribute.String("pipeline.function", fn.Name()),
		attribute.String("pipeline.data_source", fn.DataSource().Name()),
	))
	defer span.End()

	start := time.Now()
	out, err := fn.invoke(ctx, c)
	elapsed := time.Since(start)
	e.metrics.functionDone(key, fn.Name(), err, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "function failed")
		return nil, err
	}

	e.logger.DebugContext(ctx, "function completed",
		slog.String("resolver", key.String()),
		slog.String("function", fn.Name()),
		slog.Duration("duration", elapsed))
	return out, nil
}
