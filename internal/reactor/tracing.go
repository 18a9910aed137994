package reactor

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig configures the loop's span export. An empty Endpoint leaves
// the tracer a no-op: Start still returns usable spans, they simply never
// leave the process.
type TracingConfig struct {
	ServiceName    string
	Endpoint       string
	SamplingRate   float64
	EnableInsecure bool
}

// Tracer wraps a trace.Tracer with the two span shapes the loop needs: one
// per LLM call, one per tool call (§1's carried ambient stack).
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer builds a Tracer and returns a shutdown func that flushes and
// stops the underlying provider. If cfg.Endpoint is empty, shutdown is a
// no-op and every span recorded is discarded rather than exported.
func NewTracer(cfg TracingConfig) (*Tracer, func(context.Context) error, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "reactor"
	}
	if cfg.Endpoint == "" {
		return &Tracer{tracer: otel.Tracer(name)}, func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.EnableInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		res = resource.Default()
	}

	rate := cfg.SamplingRate
	var sampler sdktrace.Sampler
	switch {
	case rate <= 0:
		sampler = sdktrace.NeverSample()
	case rate >= 1:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(rate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{tracer: provider.Tracer(name)}, provider.Shutdown, nil
}

// noopTracer is what ReactLoop/ToolInvoker fall back to when constructed
// without an explicit Tracer (tests, or callers that haven't wired tracing).
// otel.Tracer resolves against the global TracerProvider, which is a no-op
// until something calls otel.SetTracerProvider (NewTracer does, when given a
// non-empty Endpoint), so spans from this tracer are simply discarded.
func noopTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer("reactor")}
}

// startLLMSpan opens a span around one provider.Chat call.
func (t *Tracer) startLLMSpan(ctx context.Context, turn int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "reactor.llm_call", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("reactor.turn", turn)))
}

// startToolSpan opens a span around one dispatched tool call.
func (t *Tracer) startToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "reactor.tool_call", trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("reactor.tool_name", toolName)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
