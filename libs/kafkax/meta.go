package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)

// EventMeta identifies an event independently of its payload. Consumers de-duplicate on
// EventID.
type EventMeta struct {
	EventID   string
	EventType string
}

// Headers renders m as Kafka headers, skipping empty fields.
func (m EventMeta) Headers() []kafka.Header {
	var hs []kafka.Header
	if m.EventID != "" {
		hs = append(hs, kafka.Header{Key: HeaderEventID, Value: []byte(m.EventID)})
	}
	if m.EventType != "" {
		hs = append(hs, kafka.Header{Key: HeaderEventType, Value: []byte(m.EventType)})
	}
	return hs
}

// ExtractEventMeta reads the event headers. Producers that do not set them are still
// handled: the message key stands in for the id and the topic for the type.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:   HeaderValue(msg.Headers, HeaderEventID),
		EventType: HeaderValue(msg.Headers, HeaderEventType),
	}
	if meta.EventID == "" {
		meta.EventID = string(msg.Key)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

// HeaderValue returns the first header named key.
func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// SplitBrokers parses a comma-separated KAFKA_BROKERS value.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
