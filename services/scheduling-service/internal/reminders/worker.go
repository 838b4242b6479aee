// Package reminders nudges invitees who have not answered a meeting that starts soon.
package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage"
)

type Worker struct {
	store     storage.Store
	notifier  notify.Notifier
	logger    *slog.Logger
	interval  time.Duration
	lead      time.Duration
	batchSize int
	now       func() time.Time
}

type WorkerConfig struct {
	Interval  time.Duration
	Lead      time.Duration
	BatchSize int
}

func NewWorker(store storage.Store, notifier notify.Notifier, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Lead <= 0 {
		cfg.Lead = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Worker{
		store:     store,
		notifier:  notifier,
		logger:    logger,
		interval:  cfg.Interval,
		lead:      cfg.Lead,
		batchSize: cfg.BatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.RunOnce(ctx)
			if err != nil {
				w.logger.Error("reminder batch failed", "err", err)
				continue
			}
			if n > 0 {
				w.logger.Info("reminders queued", "count", n)
			}
		}
	}
}

// RunOnce claims due invitations, stamps them and queues a reminder for each, all in
// one transaction. A notifier implementing notify.TxBinder writes through that
// transaction, so a failed stamp, queue or commit leaves nothing behind and the batch
// is retried on the next tick.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.now()
	var sent int
	err := w.store.InTx(ctx, func(q storage.Queries) error {
		due, err := q.DueReminders(ctx, now, now.Add(w.lead), w.batchSize)
		if err != nil {
			return fmt.Errorf("fetch due reminders: %w", err)
		}
		if len(due) == 0 {
			return nil
		}

		notices := make([]notify.Notice, 0, len(due))
		ids := make([]string, 0, len(due))
		for _, d := range due {
			notices = append(notices, notify.Reminder(d.Meeting, d.Invitation))
			ids = append(ids, d.Invitation.ID)
		}
		if err := q.MarkReminded(ctx, ids, now); err != nil {
			return fmt.Errorf("mark reminded: %w", err)
		}
		notifier := w.notifier
		if b, ok := notifier.(notify.TxBinder); ok {
			notifier = b.ForTx(q)
		}
		if err := notifier.Notify(ctx, notices...); err != nil {
			return fmt.Errorf("queue reminders: %w", err)
		}
		sent = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}
