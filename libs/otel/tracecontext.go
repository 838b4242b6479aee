package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is the W3C trace context in the form it is stored next to an outbox row,
// so the publisher can continue the trace of the request that wrote the event.
type TraceContext struct {
	Parent string
	State  string
}

// CurrentTraceContext captures the span context active in ctx. Both fields are empty
// when ctx carries no span.
func CurrentTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Parent: carrier["traceparent"], State: carrier["tracestate"]}
}

// Into returns ctx continuing tc, or ctx unchanged when tc is empty.
func (tc TraceContext) Into(ctx context.Context) context.Context {
	if tc.Parent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": tc.Parent}
	if tc.State != "" {
		carrier["tracestate"] = tc.State
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
