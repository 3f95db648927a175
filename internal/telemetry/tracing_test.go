package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestNewTracerNoOpWithoutEndpoint(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "goblin-runtime-test"})
	defer func() { _ = shutdown(context.Background()) }()

	if tracer == nil {
		t.Fatal("NewTracer() returned nil")
	}

	ctx, span := tracer.TraceTaskExecution(context.Background(), "scout")
	if span == nil {
		t.Fatal("expected a non-nil span even in no-op mode")
	}
	span.End()

	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
}

func TestTracerSpanHelpers(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{})
	defer func() { _ = shutdown(context.Background()) }()

	helpers := []func() (context.Context, trace.Span){
		func() (context.Context, trace.Span) { return tracer.TraceProviderCall(context.Background(), "anthropic", "claude") },
		func() (context.Context, trace.Span) { return tracer.TraceTaskExecution(context.Background(), "scout") },
		func() (context.Context, trace.Span) {
			return tracer.TraceOrchestrationStep(context.Background(), "plan-1", "step-1")
		},
		func() (context.Context, trace.Span) { return tracer.TraceHTTPRequest(context.Background(), "GET", "/api/health") },
	}

	for _, helper := range helpers {
		_, span := helper()
		if span == nil {
			t.Fatal("expected a non-nil span")
		}
		span.End()
	}
}

func TestTracerRecordErrorNilIsNoop(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{})
	defer func() { _ = shutdown(context.Background()) }()

	_, span := tracer.Start(context.Background(), "op", trace.SpanKindInternal)
	defer span.End()

	tracer.RecordError(span, nil)
	tracer.RecordError(span, errors.New("boom"))
}
