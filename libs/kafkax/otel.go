package kafkax

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// headerCarrier lets the W3C propagator read and write Kafka headers in place.
type headerCarrier []kafka.Header

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

func (c *headerCarrier) Get(key string) string { return HeaderValue(*c, key) }

func (c *headerCarrier) Keys() []string {
	keys := make([]string, len(*c))
	for i, h := range *c {
		keys[i] = h.Key
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range *c {
		if (*c)[i].Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

// InjectTraceHeaders adds the trace context of ctx to headers.
func InjectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	c := headerCarrier(headers)
	otel.GetTextMapPropagator().Inject(ctx, &c)
	return c
}

// ExtractTraceContext continues the producer's trace from msg's headers.
func ExtractTraceContext(ctx context.Context, msg kafka.Message) context.Context {
	c := headerCarrier(msg.Headers)
	return otel.GetTextMapPropagator().Extract(ctx, &c)
}

// StartConsumerSpan opens a consumer span for msg as a child of the producer's trace.
func StartConsumerSpan(ctx context.Context, tracerName string, msg kafka.Message) (context.Context, trace.Span) {
	meta := ExtractEventMeta(msg)
	return otel.Tracer(tracerName).Start(ExtractTraceContext(ctx, msg), "kafka.consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("messaging.message.id", meta.EventID),
			attribute.Int("messaging.kafka.destination.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
		),
	)
}
