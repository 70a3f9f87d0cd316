package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanRecords(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := InitTestTracer(recorder)
	defer tp.Shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), "block.process.passthrough")
	SetSpanAttribute(ctx, AttrBlock, "passthrough")
	SetSpanInt(ctx, AttrSignals, 3)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "block.process.passthrough" {
		t.Fatalf("unexpected span name: %s", spans[0].Name())
	}

	found := map[string]bool{}
	for _, attr := range spans[0].Attributes() {
		found[string(attr.Key)] = true
	}
	if !found[AttrBlock] || !found[AttrSignals] {
		t.Fatalf("missing span attributes: %v", spans[0].Attributes())
	}
}

func TestSetSpanError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := InitTestTracer(recorder)
	defer tp.Shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), "block.process.failing")
	SetSpanError(ctx, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if len(spans[0].Events()) == 0 {
		t.Fatal("expected an error event on the span")
	}
}
