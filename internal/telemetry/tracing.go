package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TraceConfig configures the OTLP exporter. If Endpoint is empty, NewTracer
// returns a no-op Tracer and tracing is disabled.
type TraceConfig struct {
	ServiceName  string
	Endpoint     string
	Insecure     bool
	SamplingRate float64
}

// Tracer wraps an OpenTelemetry tracer with the handful of span shapes
// this runtime needs: provider calls, task execution, and orchestration
// steps.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer builds a Tracer and a shutdown func that must be called on
// exit. With no endpoint configured, the returned Tracer records nothing
// and shutdown is a no-op.
func NewTracer(cfg TraceConfig) (*Tracer, func(context.Context) error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "goblin-runtime"
	}
	if cfg.Endpoint == "" {
		return &Tracer{tracer: otel.Tracer(cfg.ServiceName)}, func(context.Context) error { return nil }
	}
	if cfg.SamplingRate == 0 {
		cfg.SamplingRate = 1.0
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	if err != nil {
		return &Tracer{tracer: otel.Tracer(cfg.ServiceName)}, func(context.Context) error { return nil }
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		res = resource.Default()
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SamplingRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return &Tracer{tracer: provider.Tracer(cfg.ServiceName)}, provider.Shutdown
}

// Start opens a generic span.
func (t *Tracer) Start(ctx context.Context, name string, kind trace.SpanKind) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithSpanKind(kind))
}

// RecordError marks the span failed and attaches err.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceProviderCall spans a call into an LLM provider.
func (t *Tracer) TraceProviderCall(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	ctx, span := t.Start(ctx, "llm."+provider, trace.SpanKindClient)
	span.SetAttributes(attribute.String("llm.provider", provider), attribute.String("llm.model", model))
	return ctx, span
}

// TraceTaskExecution spans one agent task run.
func (t *Tracer) TraceTaskExecution(ctx context.Context, agentID string) (context.Context, trace.Span) {
	ctx, span := t.Start(ctx, "task.execute", trace.SpanKindInternal)
	span.SetAttributes(attribute.String("goblin.id", agentID))
	return ctx, span
}

// TraceOrchestrationStep spans one DAG step of an orchestration plan.
func (t *Tracer) TraceOrchestrationStep(ctx context.Context, planID, stepID string) (context.Context, trace.Span) {
	ctx, span := t.Start(ctx, "orchestration.step", trace.SpanKindInternal)
	span.SetAttributes(attribute.String("plan.id", planID), attribute.String("step.id", stepID))
	return ctx, span
}

// TraceHTTPRequest spans one inbound HTTP request.
func (t *Tracer) TraceHTTPRequest(ctx context.Context, method, path string) (context.Context, trace.Span) {
	ctx, span := t.Start(ctx, "http."+method+" "+path, trace.SpanKindServer)
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.path", path))
	return ctx, span
}
