// Package delivery turns notification requests into emails and logs the outcome.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/huddle/libs/kafkax"
	"github.com/md-rashed-zaman/huddle/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/huddle/services/notification-service/internal/notice"
	"github.com/md-rashed-zaman/huddle/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

var errSimulated = errors.New("simulated failure")

type Log interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Deliverer struct {
	sender     email.Sender
	log        Log
	logger     *slog.Logger
	failSuffix string
	now        func() time.Time
}

// NewDeliverer sends through sender. Recipients ending in failSuffix are marked
// failed without sending, for exercising the failure path locally.
func NewDeliverer(sender email.Sender, log Log, logger *slog.Logger, failSuffix string) *Deliverer {
	return &Deliverer{
		sender:     sender,
		log:        log,
		logger:     logger,
		failSuffix: failSuffix,
		now:        time.Now,
	}
}

// Handle is a consumer.Handler. Malformed payloads are dropped; only a failure to
// write the delivery log is returned.
func (d *Deliverer) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	var n notice.Notice
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		d.logger.Error("invalid notice payload", "err", err, "event_id", meta.EventID)
		return nil
	}
	if err := n.Validate(); err != nil {
		d.logger.Error("invalid notice", "err", err, "event_id", meta.EventID, "kind", n.Kind)
		return nil
	}

	entry := storage.Notification{
		EventID:      meta.EventID,
		Kind:         n.Kind,
		MeetingID:    n.MeetingID,
		InvitationID: n.InvitationID,
		Recipient:    n.Recipient,
		Subject:      n.Subject,
		Status:       storage.StatusSent,
	}
	if err := d.send(ctx, n); err != nil {
		entry.Status = storage.StatusFailed
		entry.Error = err.Error()
		d.logger.Error("email send failed", "err", err, "recipient", n.Recipient, "kind", n.Kind)
	}

	if err := d.log.Insert(ctx, entry); err != nil {
		d.logger.Error("failed to persist notification", "err", err)
		return err
	}
	d.logger.Info("notice processed", "meeting_id", n.MeetingID, "kind", n.Kind, "status", entry.Status)
	return nil
}

func (d *Deliverer) send(ctx context.Context, n notice.Notice) error {
	if d.failSuffix != "" && strings.HasSuffix(n.Recipient, d.failSuffix) {
		return errSimulated
	}
	m := email.Message{To: n.Recipient, Subject: n.Subject, Text: n.Body}
	if n.Calendar != nil {
		ics, err := email.Calendar(*n.Calendar, d.now())
		if err != nil {
			return err
		}
		m.Calendar = ics
		m.Method = n.Calendar.Method
	}
	return d.sender.Send(ctx, m)
}
