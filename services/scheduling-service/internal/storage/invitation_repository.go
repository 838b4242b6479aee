package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
)

const invitationColumns = `i.id, i.meeting_id, i.recipient_email, i.status, i.proposed_start, i.proposed_end,
	i.response_note, i.responded_at, i.reminded_at, i.created_at, i.updated_at`

func scanInvitation(row pgx.Row) (model.Invitation, error) {
	var inv model.Invitation
	var status string
	var proposedStart, proposedEnd *time.Time
	err := row.Scan(&inv.ID, &inv.MeetingID, &inv.Recipient, &status, &proposedStart, &proposedEnd,
		&inv.Note, &inv.RespondedAt, &inv.RemindedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return model.Invitation{}, translate(err)
	}
	inv.Status = model.Status(status)
	if proposedStart != nil && proposedEnd != nil {
		inv.Proposal = &model.TimeRange{Start: *proposedStart, End: *proposedEnd}
	}
	return inv, nil
}

func collectInvitations(rows pgx.Rows, err error) ([]model.Invitation, error) {
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, translate(rows.Err())
}

func proposalArgs(inv model.Invitation) (*time.Time, *time.Time) {
	if inv.Proposal == nil {
		return nil, nil
	}
	return &inv.Proposal.Start, &inv.Proposal.End
}

func (r queries) InsertInvitation(ctx context.Context, inv model.Invitation) error {
	ps, pe := proposalArgs(inv)
	_, err := r.q.Exec(ctx, `
		INSERT INTO invitations (id, meeting_id, recipient_email, status, proposed_start, proposed_end, response_note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, inv.ID, inv.MeetingID, model.NormalizeEmail(inv.Recipient), string(inv.Status), ps, pe, inv.Note)
	return translate(err)
}

func (r queries) GetInvitation(ctx context.Context, id string) (model.Invitation, error) {
	return scanInvitation(r.q.QueryRow(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations i
		WHERE i.id = $1
	`, id))
}

func (r queries) GetInvitationForUpdate(ctx context.Context, id string) (model.Invitation, error) {
	return scanInvitation(r.q.QueryRow(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations i
		WHERE i.id = $1
		FOR UPDATE
	`, id))
}

func (r queries) UpdateInvitation(ctx context.Context, inv model.Invitation) error {
	ps, pe := proposalArgs(inv)
	return expectOne(r.q.Exec(ctx, `
		UPDATE invitations
		SET status = $2,
			proposed_start = $3,
			proposed_end = $4,
			response_note = $5,
			responded_at = $6,
			updated_at = now()
		WHERE id = $1
	`, inv.ID, string(inv.Status), ps, pe, inv.Note, inv.RespondedAt))
}

func (r queries) InvitationsByMeeting(ctx context.Context, meetingID string) ([]model.Invitation, error) {
	return collectInvitations(r.q.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations i
		WHERE i.meeting_id = $1
		ORDER BY i.created_at ASC, i.recipient_email ASC
	`, meetingID))
}

func (r queries) InvitationsByRecipient(ctx context.Context, email string, status model.Status) ([]model.Invitation, error) {
	return collectInvitations(r.q.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations i
		WHERE i.recipient_email = $1
			AND ($2::text = '' OR i.status = $2::text)
		ORDER BY i.created_at DESC
	`, model.NormalizeEmail(email), string(status)))
}

func (r queries) DueReminders(ctx context.Context, from, to time.Time, limit int) ([]DueReminder, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+invitationColumns+`, `+meetingColumns+`
		FROM invitations i
		JOIN meetings m ON m.id = i.meeting_id
		JOIN people p ON p.id = m.organizer_id
		WHERE i.status = 'PENDING'
			AND i.reminded_at IS NULL
			AND m.deleted_at IS NULL
			AND m.start_time >= $1
			AND m.start_time < $2
		ORDER BY m.start_time ASC
		LIMIT $3
		FOR UPDATE OF i SKIP LOCKED
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DueReminder
	for rows.Next() {
		var d DueReminder
		var status string
		var ps, pe *time.Time
		inv := &d.Invitation
		m := &d.Meeting
		if err := rows.Scan(&inv.ID, &inv.MeetingID, &inv.Recipient, &status, &ps, &pe,
			&inv.Note, &inv.RespondedAt, &inv.RemindedAt, &inv.CreatedAt, &inv.UpdatedAt,
			&m.ID, &m.OrganizerID, &m.OrganizerEmail, &m.Title, &m.Description, &m.Location, &m.ConferenceLink,
			&m.Start, &m.End, &m.Timezone, &m.Recurrence, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		inv.Status = model.Status(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r queries) MarkReminded(ctx context.Context, invitationIDs []string, at time.Time) error {
	if len(invitationIDs) == 0 {
		return nil
	}
	_, err := r.q.Exec(ctx, `
		UPDATE invitations
		SET reminded_at = $2
		WHERE id = ANY($1)
	`, invitationIDs, at)
	return err
}
