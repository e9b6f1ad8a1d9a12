// Package telemetry implements the Telemetry Hooks (spec §4.9): one OTel
// span per upstream call tagged with low/high-cardinality attributes, plus
// Prometheus distribution summaries for token counts and call duration.
// Telemetry failure never fails the request — every method here is best
// effort and safe to call with a nil *Telemetry.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the tracer and the Prometheus collectors registered for
// this process, per spec §4.9's "span per upstream call" and "distribution
// summaries/timers" requirements.
type Telemetry struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error

	callDuration  *prometheus.HistogramVec
	tokensCounted *prometheus.HistogramVec
	toolCalls     *prometheus.CounterVec

	metricsHandler http.Handler
}

// New builds a Telemetry instance. When otlpEndpoint is empty, spans are
// recorded by a TracerProvider with no exporter wired (a no-op sink) so
// every span() call still succeeds, satisfying "telemetry failure never
// fails the request" by construction rather than by catching errors.
func New(otlpEndpoint, serviceName string) (*Telemetry, error) {
	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		res = resource.Default()
	}

	var opts []sdktrace.TracerProviderOption
	opts = append(opts, sdktrace.WithResource(res))

	shutdown := func(context.Context) error { return nil }

	if otlpEndpoint != "" {
		exporter, err := otlptracehttp.New(context.Background(), otlptracehttp.WithEndpoint(otlpEndpoint))
		if err == nil {
			opts = append(opts, sdktrace.WithBatcher(exporter))
			shutdown = exporter.Shutdown
		}
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	shutdown = tp.Shutdown

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	callDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_upstream_call_duration_seconds",
		Help:    "Duration of a single upstream chat completion call.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "streaming"})
	reg.MustRegister(callDuration)

	tokensCounted := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_upstream_tokens",
		Help:    "Token counts per upstream call, by kind.",
		Buckets: prometheus.ExponentialBuckets(16, 2, 12),
	}, []string{"provider", "kind"})
	reg.MustRegister(tokensCounted)

	toolCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_tool_calls_total",
		Help: "Count of internally executed tool calls, by tool name and outcome.",
	}, []string{"tool", "outcome"})
	reg.MustRegister(toolCalls)

	return &Telemetry{
		tracer:         tp.Tracer("open-responses-gateway"),
		shutdown:       shutdown,
		callDuration:   callDuration,
		tokensCounted:  tokensCounted,
		toolCalls:      toolCalls,
		metricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

// MetricsHandler returns the HTTP handler backing the ambient GET /metrics
// endpoint (teacher's main.go served promhttp.Handler() the same way).
func (t *Telemetry) MetricsHandler() http.Handler {
	if t == nil {
		return promhttp.Handler()
	}
	return t.metricsHandler
}

// CallSpan starts a span for one upstream call, per spec §4.9: low-cardinality
// tags (provider, streaming) plus high-cardinality tags (model, response id)
// as span attributes rather than metric labels, so Prometheus cardinality
// stays bounded while traces retain full detail.
func (t *Telemetry) CallSpan(ctx context.Context, provider, model, responseID string, streaming bool) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "chat_completion",
		trace.WithAttributes(
			attribute.String("provider", provider),
			attribute.Bool("streaming", streaming),
			attribute.String("model", model),
			attribute.String("response_id", responseID),
		),
	)
}

// RecordCall records a completed upstream call's duration and token usage.
// Safe to call on a nil Telemetry (no-op).
func (t *Telemetry) RecordCall(provider string, streaming bool, duration time.Duration, promptTokens, completionTokens int) {
	if t == nil {
		return
	}
	streamLabel := "false"
	if streaming {
		streamLabel = "true"
	}
	t.callDuration.WithLabelValues(provider, streamLabel).Observe(duration.Seconds())
	t.tokensCounted.WithLabelValues(provider, "prompt").Observe(float64(promptTokens))
	t.tokensCounted.WithLabelValues(provider, "completion").Observe(float64(completionTokens))
}

// RecordToolCall records one internally executed tool call's outcome.
func (t *Telemetry) RecordToolCall(toolName string, succeeded bool) {
	if t == nil {
		return
	}
	outcome := "success"
	if !succeeded {
		outcome = "error"
	}
	t.toolCalls.WithLabelValues(toolName, outcome).Inc()
}

// Shutdown flushes any pending span exports.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}
