package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/kbukum/flowtest"

// Span attribute keys used by the harness.
const (
	AttrBlock    = "flowtest.block"
	AttrBlockID  = "flowtest.block_id"
	AttrInput    = "flowtest.input"
	AttrSignals  = "flowtest.signals"
	AttrTopic    = "flowtest.topic"
	AttrTerminal = "flowtest.terminal"
)

// InitTestTracer installs an always-sampling in-process tracer provider
// and returns it so tests can inspect recorded spans via their own span
// processor. The caller owns shutdown.
func InitTestTracer(processor sdktrace.SpanProcessor) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(processor),
	)
	otel.SetTracerProvider(tp)
	return tp
}

// StartSpan starts a span using the globally configured tracer provider.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

// SetSpanAttribute sets a string attribute on the current span.
func SetSpanAttribute(ctx context.Context, key, value string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(key, value))
}

// SetSpanInt sets an integer attribute on the current span.
func SetSpanInt(ctx context.Context, key string, value int) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int(key, value))
}

// SetSpanError records err on the current span and marks it failed.
func SetSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
