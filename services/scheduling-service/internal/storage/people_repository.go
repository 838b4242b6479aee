package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
)

const personColumns = `id, email, display_name, timezone, created_at, updated_at`

func scanPerson(row pgx.Row) (model.Person, error) {
	var p model.Person
	err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
	return p, translate(err)
}

func (r queries) PersonByEmail(ctx context.Context, email string) (model.Person, error) {
	return scanPerson(r.q.QueryRow(ctx, `
		SELECT `+personColumns+`
		FROM people
		WHERE email = $1
	`, model.NormalizeEmail(email)))
}

func (r queries) PersonByID(ctx context.Context, id string) (model.Person, error) {
	return scanPerson(r.q.QueryRow(ctx, `
		SELECT `+personColumns+`
		FROM people
		WHERE id = $1
	`, id))
}

func (r queries) EnsurePerson(ctx context.Context, p model.Person) (model.Person, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	return scanPerson(r.q.QueryRow(ctx, `
		INSERT INTO people (id, email, display_name, timezone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING `+personColumns,
		p.ID, model.NormalizeEmail(p.Email), p.DisplayName, p.Timezone))
}

func (r queries) UpdatePerson(ctx context.Context, p model.Person) (model.Person, error) {
	return scanPerson(r.q.QueryRow(ctx, `
		UPDATE people
		SET display_name = $2,
			timezone = $3,
			updated_at = now()
		WHERE id = $1
		RETURNING `+personColumns,
		p.ID, p.DisplayName, p.Timezone))
}

func (r queries) FrequentCollaborators(ctx context.Context, organizerID string, limit int) ([]model.Collaborator, error) {
	rows, err := r.q.Query(ctx, `
		SELECT i.recipient_email, COALESCE(p.display_name, ''), COALESCE(p.timezone, ''), COUNT(*) AS invites
		FROM invitations i
		JOIN meetings m ON m.id = i.meeting_id
		LEFT JOIN people p ON p.email = i.recipient_email
		WHERE m.organizer_id = $1
		GROUP BY i.recipient_email, p.display_name, p.timezone
		ORDER BY invites DESC, i.recipient_email ASC
		LIMIT $2
	`, organizerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Collaborator
	for rows.Next() {
		var c model.Collaborator
		if err := rows.Scan(&c.Email, &c.DisplayName, &c.Timezone, &c.Invites); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
