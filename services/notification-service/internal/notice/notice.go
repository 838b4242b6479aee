// Package notice is the notification request published by scheduling-service.
package notice

import (
	"errors"
	"strings"
	"time"
)

const EventType = "scheduling.notification.requested.v1"

const (
	MethodRequest = "REQUEST"
	MethodCancel  = "CANCEL"
)

type Calendar struct {
	UID         string    `json:"uid"`
	Method      string    `json:"method"`
	Sequence    int       `json:"sequence"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	URL         string    `json:"url,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Organizer   string    `json:"organizer"`
	Attendee    string    `json:"attendee"`
}

type Notice struct {
	Kind         string    `json:"kind"`
	MeetingID    string    `json:"meeting_id"`
	InvitationID string    `json:"invitation_id,omitempty"`
	Recipient    string    `json:"recipient"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	Calendar     *Calendar `json:"calendar,omitempty"`
}

var (
	ErrMissingFields = errors.New("notice is missing kind, meeting_id, recipient or subject")
	ErrBadCalendar   = errors.New("calendar needs uid, a known method and end after start")
)

func (n Notice) Validate() error {
	if strings.TrimSpace(n.Kind) == "" || strings.TrimSpace(n.MeetingID) == "" ||
		!strings.Contains(n.Recipient, "@") || strings.TrimSpace(n.Subject) == "" {
		return ErrMissingFields
	}
	if c := n.Calendar; c != nil {
		if c.UID == "" || (c.Method != MethodRequest && c.Method != MethodCancel) || !c.End.After(c.Start) {
			return ErrBadCalendar
		}
	}
	return nil
}
