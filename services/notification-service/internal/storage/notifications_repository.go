package storage

import (
	"context"

	"github.com/md-rashed-zaman/huddle/libs/db"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one delivery attempt in the log.
type Notification struct {
	EventID      string
	Kind         string
	MeetingID    string
	InvitationID string
	Recipient    string
	Subject      string
	Status       string
	Error        string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, kind, meeting_id, invitation_id, recipient, subject, status, error)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''))
	`, n.EventID, n.Kind, n.MeetingID, n.InvitationID, n.Recipient, n.Subject, n.Status, n.Error)
	return err
}
