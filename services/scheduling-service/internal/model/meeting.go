package model

import (
	"errors"
	"time"
)

var ErrInvalidTimeRange = errors.New("end time must be after start time")

type Meeting struct {
	ID             string
	OrganizerID    string
	OrganizerEmail string
	Title          string
	Description    string
	Location       string
	ConferenceLink string
	Start          time.Time
	End            time.Time
	Timezone       string
	Recurrence     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Reschedule moves the meeting, keeping end > start.
func (m *Meeting) Reschedule(start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidTimeRange
	}
	m.Start = start
	m.End = end
	return nil
}

func (m Meeting) Duration() time.Duration {
	return m.End.Sub(m.Start)
}
