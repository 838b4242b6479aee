package otelx

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/huddle/libs/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_SAMPLING_RATIO", "7")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", " collector:4317 ")

	cfg := ConfigFromEnv("scheduling-service")
	if cfg.Enabled || cfg.SampleRatio != 1 || cfg.OTLPEndpoint != "collector:4317" || !cfg.Insecure {
		t.Fatalf("unexpected config %+v", cfg)
	}
	config.Set("OTEL_SAMPLING_RATIO", "0.25")
	defer config.Set("OTEL_SAMPLING_RATIO", nil)
	if got := ConfigFromEnv("x").SampleRatio; got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
}

func TestDisabledSetupInstallsPropagators(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false, ServiceName: "test"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if len(otel.GetTextMapPropagator().Fields()) == 0 {
		t.Fatal("expected propagators to be installed")
	}
}

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	if tc := CurrentTraceContext(context.Background()); tc.Parent != "" {
		t.Fatalf("expected no trace context, got %+v", tc)
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	tc := CurrentTraceContext(ctx)
	if tc.Parent == "" {
		t.Fatal("expected traceparent")
	}
	out := tc.Into(context.Background())
	if got := trace.SpanContextFromContext(out).TraceID(); got != traceID {
		t.Fatalf("expected trace id %s, got %s", traceID, got)
	}
	if (TraceContext{}).Into(ctx) != ctx {
		t.Fatal("empty trace context should leave ctx alone")
	}
}
