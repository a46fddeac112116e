// Package trace wires the OpenTelemetry SDK behind a small facade so the
// rest of the pipeline never touches provider plumbing. Spans go to a
// pretty-printed stdout exporter; the logger picks trace and span ids out
// of the context to correlate log lines with spans.
package trace

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName = "llm-crypto-trader"
	enabledEnv  = "LOG_TRACING_ENABLED"
)

var (
	enabled  bool
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
)

// Init reads LOG_TRACING_ENABLED (default "true") and, when tracing is on,
// installs a global provider backed by the stdout exporter. With tracing
// off every other function in this package is a no-op.
func Init() error {
	if v := os.Getenv(enabledEnv); v != "" && v != "true" {
		return nil
	}
	enabled = true

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return err
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion("1.0.0"),
	))
	if err != nil {
		return err
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	tracer = otel.Tracer(serviceName)
	return nil
}

// Shutdown flushes buffered spans. Call it once on the way out.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

// Enabled reports whether Init turned tracing on.
func Enabled() bool { return enabled }

// StartSpan opens a child span, or hands back the context untouched when
// tracing is off, so call sites never need to branch on Enabled.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !enabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// GetTraceFields extracts the current trace and span ids for log
// correlation. ok is false outside any recording span.
func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !enabled {
		return "", "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}
