package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/huddle/libs/db"
	"github.com/md-rashed-zaman/huddle/libs/kafkax"
	otelx "github.com/md-rashed-zaman/huddle/libs/otel"
	"github.com/segmentio/kafka-go"
)

type Publisher struct {
	pool      *db.Pool
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
	retention time.Duration
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
	// Retention is how long published events are kept; zero keeps them forever.
	Retention time.Duration
}

const pruneEvery = time.Hour

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		pool:      pool,
		repo:      repo,
		logger:    logger,
		brokers:   kafkax.SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		retention: cfg.Retention,
	}
}

// Run polls until ctx is done. Events stay in the table when no brokers are configured.
func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()
	pruner := time.NewTicker(pruneEvery)
	defer pruner.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.publishBatch(ctx, writer); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		case <-pruner.C:
			p.prune(ctx)
		}
	}
}

func (p *Publisher) prune(ctx context.Context) {
	if p.retention <= 0 {
		return
	}
	n, err := p.repo.Prune(ctx, p.pool, time.Now().Add(-p.retention))
	if err != nil {
		p.logger.Error("outbox prune failed", "err", err)
		return
	}
	if n > 0 {
		p.logger.Info("outbox pruned", "deleted", n)
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer *kafka.Writer) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return tx.Commit(ctx)
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, toMessage(ctx, r))
		ids = append(ids, r.ID)
	}
	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	p.logger.Debug("outbox batch published", "count", len(records))
	return nil
}

func toMessage(ctx context.Context, r Record) kafka.Message {
	msgCtx := otelx.TraceContext{Parent: r.Traceparent, State: r.Tracestate}.Into(ctx)
	return kafka.Message{
		Topic:   r.EventType,
		Key:     []byte(r.AggregateID),
		Value:   r.Payload,
		Headers: kafkax.InjectTraceHeaders(msgCtx, kafkax.EventMeta{EventID: r.EventID, EventType: r.EventType}.Headers()),
	}
}
