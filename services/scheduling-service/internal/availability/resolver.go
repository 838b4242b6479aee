package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
)

// Directory is the read side of the store the engine needs.
type Directory interface {
	PersonByEmail(ctx context.Context, email string) (model.Person, error)
	MeetingsOrganizedBetween(ctx context.Context, organizerID string, start, end time.Time) ([]model.Meeting, error)
	MeetingsAcceptedBetween(ctx context.Context, email string, start, end time.Time) ([]model.Meeting, error)
}

// Commitment is a busy interval with the meeting behind it.
type Commitment struct {
	MeetingID string    `json:"meeting_id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Location  string    `json:"location,omitempty"`
}

func (c Commitment) Interval() Interval { return Interval{Start: c.Start, End: c.End} }

// Resolver lists a person's commitments: meetings they organize plus meetings they have
// accepted. A meeting can appear twice.
type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

func (r *Resolver) Busy(ctx context.Context, p model.Person, start, end time.Time) ([]Commitment, error) {
	organized, err := r.dir.MeetingsOrganizedBetween(ctx, p.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("organized meetings for %s: %w", p.Email, err)
	}
	accepted, err := r.dir.MeetingsAcceptedBetween(ctx, p.Email, start, end)
	if err != nil {
		return nil, fmt.Errorf("accepted meetings for %s: %w", p.Email, err)
	}

	out := make([]Commitment, 0, len(organized)+len(accepted))
	for _, m := range append(organized, accepted...) {
		out = append(out, Commitment{MeetingID: m.ID, Title: m.Title, Start: m.Start, End: m.End, Location: m.Location})
	}
	return out, nil
}

func intervals(cs []Commitment) []Interval {
	out := make([]Interval, len(cs))
	for i, c := range cs {
		out[i] = c.Interval()
	}
	return out
}
