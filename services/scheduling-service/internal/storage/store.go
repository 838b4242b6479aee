// Package storage persists people, meetings and invitations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// DueReminder is a PENDING invitation whose meeting starts soon.
type DueReminder struct {
	Invitation model.Invitation
	Meeting    model.Meeting
}

// Queries is every read and write the services need. Implementations return ErrNotFound
// for missing rows and ErrConflict for uniqueness violations.
type Queries interface {
	PersonByEmail(ctx context.Context, email string) (model.Person, error)
	PersonByID(ctx context.Context, id string) (model.Person, error)
	// EnsurePerson inserts p unless a person with the same email exists, and returns
	// the stored row either way.
	EnsurePerson(ctx context.Context, p model.Person) (model.Person, error)
	UpdatePerson(ctx context.Context, p model.Person) (model.Person, error)
	FrequentCollaborators(ctx context.Context, organizerID string, limit int) ([]model.Collaborator, error)

	InsertMeeting(ctx context.Context, m model.Meeting) error
	GetMeeting(ctx context.Context, id string) (model.Meeting, error)
	// GetMeetingForUpdate locks the row until the surrounding transaction ends.
	GetMeetingForUpdate(ctx context.Context, id string) (model.Meeting, error)
	UpdateMeeting(ctx context.Context, m model.Meeting) error
	DeleteMeeting(ctx context.Context, id string, at time.Time) error
	// MeetingsOrganizedBetween returns meetings owned by organizerID that overlap [start, end).
	MeetingsOrganizedBetween(ctx context.Context, organizerID string, start, end time.Time) ([]model.Meeting, error)
	// MeetingsAcceptedBetween returns meetings email has ACCEPTED that overlap [start, end).
	MeetingsAcceptedBetween(ctx context.Context, email string, start, end time.Time) ([]model.Meeting, error)

	InsertInvitation(ctx context.Context, inv model.Invitation) error
	GetInvitation(ctx context.Context, id string) (model.Invitation, error)
	GetInvitationForUpdate(ctx context.Context, id string) (model.Invitation, error)
	UpdateInvitation(ctx context.Context, inv model.Invitation) error
	InvitationsByMeeting(ctx context.Context, meetingID string) ([]model.Invitation, error)
	// InvitationsByRecipient filters by status unless status is empty.
	InvitationsByRecipient(ctx context.Context, email string, status model.Status) ([]model.Invitation, error)

	// DueReminders claims up to limit un-reminded PENDING invitations to meetings starting
	// in [from, to). Inside a transaction the rows stay locked and concurrent workers skip them.
	DueReminders(ctx context.Context, from, to time.Time, limit int) ([]DueReminder, error)
	MarkReminded(ctx context.Context, invitationIDs []string, at time.Time) error
}

// Store adds a transaction boundary. Everything fn does through q commits or rolls back
// together; returning an error rolls back.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
}

// IsNotFound also accepts an identifier Postgres cannot parse as a uuid, since no row
// can carry it.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) || isMalformedID(err)
}

func isMalformedID(err error) bool {
	var pgErr *pgconn.PgError
	// invalid_text_representation
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func IsConflict(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// unique_violation, exclusion_violation
		return pgErr.Code == "23505" || pgErr.Code == "23P01"
	}
	return false
}
