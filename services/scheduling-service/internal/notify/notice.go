// Package notify turns scheduling changes into notification requests for
// notification-service.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/md-rashed-zaman/huddle/libs/db"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage"
)

// EventType is the outbox event (and Kafka topic) for every notice.
const EventType = "scheduling.notification.requested.v1"

type Kind string

const (
	KindInvitationCreated   Kind = "invitation.created"
	KindInvitationResponded Kind = "invitation.responded"
	KindMeetingUpdated      Kind = "meeting.updated"
	KindMeetingRescheduled  Kind = "meeting.rescheduled"
	KindProposalSuperseded  Kind = "proposal.superseded"
	KindProposalRejected    Kind = "proposal.rejected"
	KindMeetingCancelled    Kind = "meeting.cancelled"
	KindInvitationReminder  Kind = "invitation.reminder"
)

const (
	MethodRequest = "REQUEST"
	MethodCancel  = "CANCEL"
)

// Calendar is rendered as a text/calendar part by the sender.
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
	Kind         Kind      `json:"kind"`
	MeetingID    string    `json:"meeting_id"`
	InvitationID string    `json:"invitation_id,omitempty"`
	Recipient    string    `json:"recipient"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	Calendar     *Calendar `json:"calendar,omitempty"`
}

// Notifier queues notices. Callers log a returned error and carry on.
type Notifier interface {
	Notify(ctx context.Context, notices ...Notice) error
}

// TxBinder is a Notifier that can write through an open store transaction, so that
// notices commit or roll back with it.
type TxBinder interface {
	ForTx(q storage.Queries) Notifier
}

// Outbox writes notices to the outbox table through q. Unless bound with ForTx it
// writes outside any business transaction.
type Outbox struct {
	q    db.Querier
	repo *outbox.Repository
}

func NewOutbox(q db.Querier, repo *outbox.Repository) *Outbox {
	return &Outbox{q: q, repo: repo}
}

// ForTx returns an Outbox writing through the transaction behind q. Stores without a
// database handle get o back.
func (o *Outbox) ForTx(q storage.Queries) Notifier {
	tx, ok := storage.QuerierOf(q)
	if !ok {
		return o
	}
	return &Outbox{q: tx, repo: o.repo}
}

func (o *Outbox) Notify(ctx context.Context, notices ...Notice) error {
	if len(notices) == 0 {
		return nil
	}
	evts := make([]outbox.Event, 0, len(notices))
	for _, n := range notices {
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encode %s notice: %w", n.Kind, err)
		}
		evts = append(evts, outbox.Event{
			AggregateType: "meeting",
			AggregateID:   n.MeetingID,
			EventType:     EventType,
			Payload:       payload,
		})
	}
	return o.repo.Insert(ctx, o.q, evts...)
}

// Recorder keeps notices in memory. Err, when set, is returned from every call after
// recording.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
	Err     error
}

func (r *Recorder) Notify(_ context.Context, notices ...Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notices...)
	return r.Err
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Kinds counts recorded notices by kind.
func (r *Recorder) Kinds() map[Kind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[Kind]int{}
	for _, n := range r.notices {
		out[n.Kind]++
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = nil
}
