package otelx

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/huddle/libs/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

type Config struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string // host:port, e.g. jaeger:4317
	Insecure     bool
	SampleRatio  float64
}

// ConfigFromEnv reads OTEL_ENABLED, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
// and OTEL_SAMPLING_RATIO through libs/config. A ratio outside [0, 1] means sample everything.
func ConfigFromEnv(serviceName string) Config {
	ratio, err := strconv.ParseFloat(strings.TrimSpace(config.String("OTEL_SAMPLING_RATIO", "1")), 64)
	if err != nil || ratio < 0 || ratio > 1 {
		ratio = 1
	}
	return Config{
		Enabled:      config.Bool("OTEL_ENABLED", true),
		ServiceName:  serviceName,
		OTLPEndpoint: strings.TrimSpace(config.String("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
		Insecure:     config.Bool("OTEL_EXPORTER_OTLP_INSECURE", true),
		SampleRatio:  ratio,
	}
}

// Setup installs the W3C propagators and, when enabled, a batching OTLP tracer provider.
// The returned func flushes and stops the provider.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithTimeout(3 * time.Second),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
