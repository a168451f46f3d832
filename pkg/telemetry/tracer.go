package telemetry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/xequation/xequation/pkg/equation"
)

// Tracer wraps the OpenTelemetry tracer with xeq span helpers.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracingConfig
}

// NewTracer creates a new tracer with the given configuration.
func NewTracer(cfg TracingConfig, serviceName, serviceVersion, environment string) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{
			tracer: noop.NewTracerProvider().Tracer(serviceName),
			config: cfg,
		}, nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			attribute.String("environment", environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp":
		exporter, err = createOTLPExporter(cfg)
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
		// spans are sampled and dropped
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(
			exporter,
			sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
			sdktrace.WithExportTimeout(cfg.ExportTimeout),
		))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
		config:   cfg,
	}, nil
}

// NewTracerWithProvider wraps an existing provider, typically one with an
// in-memory exporter.
func NewTracerWithProvider(provider *sdktrace.TracerProvider, name string) *Tracer {
	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(name),
		config:   TracingConfig{Enabled: true},
	}
}

func createOTLPExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(context.Background(), opts...)
}

// Start begins a new span with the given name.
func (t *Tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName, opts...)
}

// StartSpan starts a span with the given attributes.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
}

// StartWorkbookSpan starts a span covering one workbook run.
func (t *Tracer) StartWorkbookSpan(ctx context.Context, workbook string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "workbook.run",
		AttrWorkbook.String(workbook),
		attribute.String("span.kind", "workbook"),
	)
}

// StartGroupSpan starts a span for a manager operation on one group.
func (t *Tracer) StartGroupSpan(ctx context.Context, operation string, id uuid.UUID) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "group."+operation,
		AttrGroupID.String(id.String()),
		AttrOperation.String(operation),
		attribute.String("span.kind", "group"),
	)
}

// RecordError records an error on the span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSuccess marks the span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEquationEvent adds an equation status event to the span.
func AddEquationEvent(span trace.Span, name, status, message string) {
	span.AddEvent("equation.evaluated", trace.WithAttributes(
		AttrEquation.String(name),
		AttrStatus.String(status),
		attribute.String("event.message", message),
	))
}

// Bridge traces manager activity under the span in ctx: every group
// notification becomes a short group span, and every status change an
// equation event on the enclosing span. The returned function detaches it.
func (t *Tracer) Bridge(ctx context.Context, m *equation.Manager) func() {
	return m.Subscribe(func(ev equation.Event) {
		switch ev.Kind {
		case equation.EquationGroupAdded:
			t.markGroup(ctx, "added", ev.GroupID)
		case equation.EquationGroupUpdated:
			t.markGroup(ctx, "updated", ev.GroupID)
		case equation.EquationGroupRemoving:
			t.markGroup(ctx, "removed", ev.GroupID)
		case equation.EquationUpdated:
			if ev.Fields&equation.FieldStatus == 0 || ev.Equation == nil {
				return
			}
			AddEquationEvent(trace.SpanFromContext(ctx), ev.Name,
				ev.Equation.Status().String(), ev.Equation.Message())
		}
	})
}

func (t *Tracer) markGroup(ctx context.Context, operation string, id uuid.UUID) {
	_, span := t.StartGroupSpan(ctx, operation, id)
	span.End()
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// ForceFlush exports all pending spans immediately.
func (t *Tracer) ForceFlush(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.ForceFlush(ctx)
}

// TraceID returns the trace ID of the current span in the context.
func TraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// Attribute keys for xeq spans.
var (
	AttrWorkbook  = attribute.Key("xeq.workbook")
	AttrGroupID   = attribute.Key("xeq.group.id")
	AttrEquation  = attribute.Key("xeq.equation")
	AttrStatus    = attribute.Key("xeq.status")
	AttrOperation = attribute.Key("xeq.operation")
	AttrErrorCode = attribute.Key("error.code")
)
