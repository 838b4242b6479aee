package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/huddle/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox de-duplicates deliveries by event id.
type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	inbox   Inbox
	handler Handler
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   inbox,
		handler: handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}
		c.process(ctx, msg)
	}
}

// process runs the handler once per event id. A failed handler releases the id so a
// redelivery gets another attempt.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	ctxSpan, span := kafkax.StartConsumerSpan(ctx, "notification-service/consumer", msg)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err)
		span.RecordError(err)
		return
	}
	if !ok {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		if err := c.inbox.Release(ctxSpan, meta.EventID); err != nil {
			c.logger.Error("inbox release failed", "err", err, "event_id", meta.EventID)
		}
	}
}
