package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
)

const meetingColumns = `m.id, m.organizer_id, p.email, m.title, m.description, m.location, m.conference_link,
	m.start_time, m.end_time, m.timezone, m.recurrence_rule, m.created_at, m.updated_at`

const meetingFrom = `FROM meetings m JOIN people p ON p.id = m.organizer_id`

func scanMeeting(row pgx.Row) (model.Meeting, error) {
	var m model.Meeting
	err := row.Scan(&m.ID, &m.OrganizerID, &m.OrganizerEmail, &m.Title, &m.Description, &m.Location, &m.ConferenceLink,
		&m.Start, &m.End, &m.Timezone, &m.Recurrence, &m.CreatedAt, &m.UpdatedAt)
	return m, translate(err)
}

func collectMeetings(rows pgx.Rows, err error) ([]model.Meeting, error) {
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, translate(rows.Err())
}

func (r queries) InsertMeeting(ctx context.Context, m model.Meeting) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO meetings
			(id, organizer_id, title, description, location, conference_link, start_time, end_time, timezone, recurrence_rule)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.ID, m.OrganizerID, m.Title, m.Description, m.Location, m.ConferenceLink, m.Start, m.End, m.Timezone, m.Recurrence)
	return translate(err)
}

func (r queries) GetMeeting(ctx context.Context, id string) (model.Meeting, error) {
	return scanMeeting(r.q.QueryRow(ctx, `
		SELECT `+meetingColumns+`
		`+meetingFrom+`
		WHERE m.id = $1 AND m.deleted_at IS NULL
	`, id))
}

func (r queries) GetMeetingForUpdate(ctx context.Context, id string) (model.Meeting, error) {
	return scanMeeting(r.q.QueryRow(ctx, `
		SELECT `+meetingColumns+`
		`+meetingFrom+`
		WHERE m.id = $1 AND m.deleted_at IS NULL
		FOR UPDATE OF m
	`, id))
}

func (r queries) UpdateMeeting(ctx context.Context, m model.Meeting) error {
	return expectOne(r.q.Exec(ctx, `
		UPDATE meetings
		SET title = $2,
			description = $3,
			location = $4,
			conference_link = $5,
			start_time = $6,
			end_time = $7,
			timezone = $8,
			recurrence_rule = $9,
			updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, m.ID, m.Title, m.Description, m.Location, m.ConferenceLink, m.Start, m.End, m.Timezone, m.Recurrence))
}

func (r queries) DeleteMeeting(ctx context.Context, id string, at time.Time) error {
	return expectOne(r.q.Exec(ctx, `
		UPDATE meetings
		SET deleted_at = $2,
			updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, at))
}

func (r queries) MeetingsOrganizedBetween(ctx context.Context, organizerID string, start, end time.Time) ([]model.Meeting, error) {
	return collectMeetings(r.q.Query(ctx, `
		SELECT `+meetingColumns+`
		`+meetingFrom+`
		WHERE m.organizer_id = $1
			AND m.deleted_at IS NULL
			AND m.start_time < $3
			AND m.end_time > $2
		ORDER BY m.start_time ASC
	`, organizerID, start, end))
}

func (r queries) MeetingsAcceptedBetween(ctx context.Context, email string, start, end time.Time) ([]model.Meeting, error) {
	return collectMeetings(r.q.Query(ctx, `
		SELECT `+meetingColumns+`
		`+meetingFrom+`
		JOIN invitations i ON i.meeting_id = m.id
		WHERE i.recipient_email = $1
			AND i.status = 'ACCEPTED'
			AND m.deleted_at IS NULL
			AND m.start_time < $3
			AND m.end_time > $2
		ORDER BY m.start_time ASC
	`, model.NormalizeEmail(email), start, end))
}
