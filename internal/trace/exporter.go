package trace

import (
	"context"
	"fmt"
	"io"

	"github.com/openstore/openstore/internal/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "openstore"

type ExporterType string

const (
	ExporterTypeConsole ExporterType = "console"
	ExporterTypeJSON    ExporterType = "json"
)

func NewConsoleExporter(w io.Writer) (sdktrace.SpanExporter, error) {
	return stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
}

// NewJSONExporter writes one compact JSON document per span.
func NewJSONExporter(w io.Writer) (sdktrace.SpanExporter, error) {
	return stdouttrace.New(
		stdouttrace.WithWriter(w),
	)
}

func NewExporter(t ExporterType, w io.Writer) (sdktrace.SpanExporter, error) {
	switch t {
	case ExporterTypeConsole:
		return NewConsoleExporter(w)
	case ExporterTypeJSON:
		return NewJSONExporter(w)
	default:
		return nil, fmt.Errorf("unknown trace exporter: %s", t)
	}
}

// Setup installs a global tracer provider exporting to exp. The returned
// function flushes and stops it.
func Setup(exp sdktrace.SpanExporter) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version.Version),
		)),
	)

	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
