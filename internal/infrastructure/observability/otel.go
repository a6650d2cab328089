package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/machikuchikomi/kuchikomi-cho/backend"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount       metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	FacilitiesDeleted  metric.Int64Counter
	FacilitiesInserted metric.Int64Counter
	ImportRows         metric.Int64Counter
}

// Setup initializes the OTLP trace exporter and global providers
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tracerProvider.Shutdown, nil
}

// InitMetrics initializes application metrics on the global meter provider
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	deleted, err := meter.Int64Counter(
		"facility.dedup.deleted",
		metric.WithDescription("Facilities hard-deleted by deduplication"),
	)
	if err != nil {
		return nil, err
	}

	inserted, err := meter.Int64Counter(
		"facility.ingest.inserted",
		metric.WithDescription("Facilities inserted by bulk ingestion"),
	)
	if err != nil {
		return nil, err
	}

	importRows, err := meter.Int64Counter(
		"facility.csv.import.rows",
		metric.WithDescription("CSV import rows by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCount:       requestCount,
		RequestDuration:    requestDuration,
		FacilitiesDeleted:  deleted,
		FacilitiesInserted: inserted,
		ImportRows:         importRows,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordRequestMetric records one served HTTP request
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	)

	metrics.RequestCount.Add(ctx, 1, attrs)
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordImportRows records CSV import outcomes
func RecordImportRows(ctx context.Context, metrics *Metrics, outcome string, n int) {
	if metrics == nil || n == 0 {
		return
	}
	metrics.ImportRows.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordFacilitiesDeleted counts facilities removed by a maintenance tool
func RecordFacilitiesDeleted(ctx context.Context, metrics *Metrics, n int) {
	if metrics == nil || n == 0 {
		return
	}
	metrics.FacilitiesDeleted.Add(ctx, int64(n))
}

// RecordFacilitiesInserted counts facilities created by bulk ingestion
func RecordFacilitiesInserted(ctx context.Context, metrics *Metrics, n int) {
	if metrics == nil || n == 0 {
		return
	}
	metrics.FacilitiesInserted.Add(ctx, int64(n))
}
