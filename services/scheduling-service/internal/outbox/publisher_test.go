package outbox

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/huddle/libs/kafkax"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestToMessageCarriesMetadataAndTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	r := Record{
		ID:          7,
		EventID:     "0b6d8f1e-2c59-4a5c-9f0e-3e3f7c1d9a10",
		AggregateID: "meeting-1",
		EventType:   "scheduling.notification.requested.v1",
		Payload:     []byte(`{"kind":"invitation.created"}`),
		Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}

	msg := toMessage(context.Background(), r)
	if msg.Topic != r.EventType || string(msg.Key) != "meeting-1" || string(msg.Value) != string(r.Payload) {
		t.Fatalf("unexpected message %+v", msg)
	}
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID != r.EventID || meta.EventType != r.EventType {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if got := kafkax.HeaderValue(msg.Headers, "traceparent"); got != r.Traceparent {
		t.Fatalf("expected traceparent %q, got %q", r.Traceparent, got)
	}
}

func TestPublisherDefaultsAndDisabledPaths(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPublisher(nil, nil, logger, PublisherConfig{Brokers: " , "})
	if p.pollEvery != 2*time.Second || p.batchSize != 50 {
		t.Fatalf("unexpected defaults poll=%s batch=%d", p.pollEvery, p.batchSize)
	}
	if len(p.brokers) != 0 {
		t.Fatalf("expected no brokers, got %v", p.brokers)
	}

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return without brokers")
	}

	// zero retention never reaches the repository
	p.prune(context.Background())
}
