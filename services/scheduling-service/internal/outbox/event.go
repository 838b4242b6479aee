package outbox

// Event is the envelope written to the outbox table. The Kafka topic is EventType and
// the message key is AggregateID, so events for one aggregate stay ordered.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
