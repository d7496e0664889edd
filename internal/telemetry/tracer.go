package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerOption adjusts NewTracerProvider.
type TracerOption func(*tracerSetup)

type tracerSetup struct {
	exporter sdktrace.SpanExporter
	global   bool
}

// WithSpanExporter sends spans synchronously to exp instead of the OTLP collector.
func WithSpanExporter(exp sdktrace.SpanExporter) TracerOption {
	return func(s *tracerSetup) {
		s.exporter = exp
	}
}

// WithoutGlobalTracer leaves the otel global provider and propagator untouched.
func WithoutGlobalTracer() TracerOption {
	return func(s *tracerSetup) {
		s.global = false
	}
}

// NewTracerProvider builds the provider for fetch chain and HTTP spans from
// cfg. A nil cfg, disabled telemetry or disabled tracing yield a no-op provider.
// The caller shuts down the returned provider.
func NewTracerProvider(ctx context.Context, cfg *Config, opts ...TracerOption) (trace.TracerProvider, error) {
	setup := &tracerSetup{global: true}
	for _, opt := range opts {
		opt(setup)
	}
	if !tracingEnabled(cfg) {
		slog.Debug("Tracing disabled")
		return noop.NewTracerProvider(), nil
	}

	res, err := serviceResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	processor := sdktrace.WithSyncer(setup.exporter)
	if setup.exporter == nil {
		exp, err := otlptracehttp.New(ctx, otlpTraceOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		processor = sdktrace.WithBatcher(exp)
	}

	ratio := cfg.Tracing.GetSampling()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		processor,
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	if setup.global {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	slog.Info("Tracing initialized", "endpoint", cfg.GetEndpoint(), "sampling_ratio", ratio, "insecure", cfg.Insecure)
	return tp, nil
}

func tracingEnabled(cfg *Config) bool {
	return cfg != nil && cfg.Enabled && cfg.Tracing != nil && cfg.Tracing.Enabled
}

// serviceResource identifies this recordsync process on exported spans.
func serviceResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.GetServiceName()),
			semconv.ServiceVersion(cfg.GetServiceVersion()),
		),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func otlpTraceOptions(cfg *Config) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.GetEndpoint())}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}
