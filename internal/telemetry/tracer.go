package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/pipegraph/internal/config"
)

// Tracing holds the tracer provider used by pipelines and the HTTP layer.
type Tracing struct {
	Provider trace.TracerProvider
	Shutdown func(context.Context) error
}

// InitTracer initializes OpenTelemetry tracing. When tracing is disabled the
// global provider is returned unchanged. Spans are written to w, or stdout
// when w is nil.
func InitTracer(cfg config.TelemetryConfig, w io.Writer, logger *slog.Logger) (*Tracing, error) {
	if !cfg.Tracing {
		return &Tracing{
			Provider: otel.GetTracerProvider(),
			Shutdown: func(context.Context) error { return nil },
		}, nil
	}
	if w == nil {
		w = os.Stdout
	}

	// Create stdout exporter for development
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	// Create resource with service name
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	// Create trace provider
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry initialized", slog.String("service", cfg.ServiceName))

	return &Tracing{Provider: tp, Shutdown: tp.Shutdown}, nil
}
