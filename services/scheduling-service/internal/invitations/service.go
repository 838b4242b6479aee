// Package invitations drives the invitation negotiation: invitee answers, organizer
// decisions on proposed times, and the read models around them.
package invitations

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/access"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("scheduling-service/invitations")

type Service struct {
	store    storage.Store
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store storage.Store, notifier notify.Notifier, logger *slog.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// notify runs after commit. A failure here never undoes the transition.
func (s *Service) notify(ctx context.Context, notices ...notify.Notice) {
	if len(notices) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, notices...); err != nil {
		s.logger.Error("notification enqueue failed", "err", err, "kind", notices[0].Kind, "count", len(notices))
	}
}

// Get returns an invitation to its recipient or to the meeting organizer.
func (s *Service) Get(ctx context.Context, actor access.Actor, id string) (model.Invitation, error) {
	if !actor.IsAuthenticated() {
		return model.Invitation{}, apperr.Unauthenticated()
	}
	inv, err := s.store.GetInvitation(ctx, id)
	if err != nil {
		return model.Invitation{}, apperr.FromStore("get invitation", "invitation", err)
	}
	if access.IsRecipient(actor, inv) {
		return inv, nil
	}
	m, err := s.store.GetMeeting(ctx, inv.MeetingID)
	if err != nil {
		return model.Invitation{}, apperr.FromStore("get invitation", "invitation", err)
	}
	if !access.CanOrganize(actor, m) {
		return model.Invitation{}, apperr.Forbidden()
	}
	return inv, nil
}

// Respond records the recipient's answer to a PENDING invitation and tells the organizer.
func (s *Service) Respond(ctx context.Context, actor access.Actor, id string, r model.Response) (model.Invitation, error) {
	if r == nil {
		return model.Invitation{}, apperr.Validation("status is required")
	}
	if !actor.IsAuthenticated() {
		return model.Invitation{}, apperr.Unauthenticated()
	}
	ctx, span := tracer.Start(ctx, "invitations.respond", trace.WithAttributes(
		attribute.String("invitation.id", id),
		attribute.String("invitation.response", string(model.ResponseStatus(r))),
	))
	defer span.End()

	var (
		inv model.Invitation
		m   model.Meeting
	)
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		var err error
		if inv, err = q.GetInvitationForUpdate(ctx, id); err != nil {
			return err
		}
		if !access.IsRecipient(actor, inv) {
			return apperr.Forbidden()
		}
		if err := inv.Respond(r, s.now()); err != nil {
			return err
		}
		if err := q.UpdateInvitation(ctx, inv); err != nil {
			return err
		}
		m, err = q.GetMeeting(ctx, inv.MeetingID)
		return err
	})
	if err != nil {
		return model.Invitation{}, apperr.FromStore("respond to invitation", "invitation", err)
	}

	s.logger.Info("invitation answered", "invitation_id", inv.ID, "meeting_id", inv.MeetingID, "status", inv.Status)
	s.notify(ctx, notify.InvitationResponded(m, inv))
	return inv, nil
}

// AcceptProposal moves the meeting to the invitee's proposed time, accepts that
// invitation and supersedes every other open proposal on the meeting, atomically.
// The meeting row is locked before the invitation is re-read, so of two concurrent
// accepts on one meeting the second sees a non-PROPOSED invitation and conflicts.
func (s *Service) AcceptProposal(ctx context.Context, actor access.Actor, id string) (model.Meeting, error) {
	if !actor.IsAuthenticated() {
		return model.Meeting{}, apperr.Unauthenticated()
	}
	ctx, span := tracer.Start(ctx, "invitations.accept_proposal", trace.WithAttributes(attribute.String("invitation.id", id)))
	defer span.End()

	peek, err := s.store.GetInvitation(ctx, id)
	if err != nil {
		return model.Meeting{}, apperr.FromStore("accept proposal", "invitation", err)
	}

	var (
		m          model.Meeting
		accepted   model.Invitation
		superseded []model.Invitation
		attending  []model.Invitation
	)
	now := s.now()
	err = s.store.InTx(ctx, func(q storage.Queries) error {
		var err error
		if m, err = q.GetMeetingForUpdate(ctx, peek.MeetingID); err != nil {
			return err
		}
		if !access.CanOrganize(actor, m) {
			return apperr.Forbidden()
		}
		if accepted, err = q.GetInvitationForUpdate(ctx, id); err != nil {
			return err
		}
		proposal, err := accepted.AcceptProposal(now)
		if err != nil {
			return err
		}
		if err := m.Reschedule(proposal.Start, proposal.End); err != nil {
			return apperr.ValidationErr(err)
		}
		if err := q.UpdateMeeting(ctx, m); err != nil {
			return err
		}
		if err := q.UpdateInvitation(ctx, accepted); err != nil {
			return err
		}

		siblings, err := q.InvitationsByMeeting(ctx, m.ID)
		if err != nil {
			return err
		}
		for _, sib := range siblings {
			if sib.ID == accepted.ID {
				continue
			}
			if sib.Supersede() {
				if err := q.UpdateInvitation(ctx, sib); err != nil {
					return err
				}
				superseded = append(superseded, sib)
				continue
			}
			if sib.Status == model.StatusPending || sib.Status == model.StatusAccepted {
				attending = append(attending, sib)
			}
		}
		return nil
	})
	if err != nil {
		return model.Meeting{}, apperr.FromStore("accept proposal", "invitation", err)
	}
	m.UpdatedAt = now
	span.SetAttributes(attribute.Int("invitations.superseded", len(superseded)))
	s.logger.Info("proposal accepted", "invitation_id", accepted.ID, "meeting_id", m.ID, "superseded", len(superseded))

	notices := []notify.Notice{notify.MeetingRescheduled(m, accepted, now)}
	for _, inv := range attending {
		notices = append(notices, notify.MeetingRescheduled(m, inv, now))
	}
	for _, inv := range superseded {
		notices = append(notices, notify.ProposalSuperseded(m, inv))
	}
	s.notify(ctx, notices...)
	return m, nil
}

// RejectProposal declines a PROPOSED invitation. The meeting is not touched.
func (s *Service) RejectProposal(ctx context.Context, actor access.Actor, id, note string) (model.Invitation, error) {
	if err := model.ValidateNote(note); err != nil {
		return model.Invitation{}, apperr.ValidationErr(err)
	}
	if !actor.IsAuthenticated() {
		return model.Invitation{}, apperr.Unauthenticated()
	}
	ctx, span := tracer.Start(ctx, "invitations.reject_proposal", trace.WithAttributes(attribute.String("invitation.id", id)))
	defer span.End()

	var (
		inv model.Invitation
		m   model.Meeting
	)
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		var err error
		if inv, err = q.GetInvitationForUpdate(ctx, id); err != nil {
			return err
		}
		if m, err = q.GetMeeting(ctx, inv.MeetingID); err != nil {
			return err
		}
		if !access.CanOrganize(actor, m) {
			return apperr.Forbidden()
		}
		if err := inv.RejectProposal(note, s.now()); err != nil {
			return err
		}
		return q.UpdateInvitation(ctx, inv)
	})
	if err != nil {
		return model.Invitation{}, apperr.FromStore("reject proposal", "invitation", err)
	}

	s.logger.Info("proposal rejected", "invitation_id", inv.ID, "meeting_id", m.ID)
	s.notify(ctx, notify.ProposalRejected(m, inv))
	return inv, nil
}

// ListMine lists the actor's invitations, newest first, optionally by status.
func (s *Service) ListMine(ctx context.Context, actor access.Actor, status string) ([]model.Invitation, error) {
	var st model.Status
	if status != "" {
		var err error
		if st, err = model.ParseStatus(status); err != nil {
			return nil, apperr.Validation("unknown status %q", status)
		}
	}
	p, ok := actor.Person()
	if !ok {
		return nil, apperr.Unauthenticated()
	}
	out, err := s.store.InvitationsByRecipient(ctx, p.Email, st)
	if err != nil {
		return nil, apperr.FromStore("list invitations", "invitation", err)
	}
	return out, nil
}

// ForMeeting lists every invitation of a meeting. Organizer only.
func (s *Service) ForMeeting(ctx context.Context, actor access.Actor, meetingID string) ([]model.Invitation, error) {
	if !actor.IsAuthenticated() {
		return nil, apperr.Unauthenticated()
	}
	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, apperr.FromStore("list meeting invitations", "meeting", err)
	}
	if !access.CanOrganize(actor, m) {
		return nil, apperr.Forbidden()
	}
	out, err := s.store.InvitationsByMeeting(ctx, meetingID)
	if err != nil {
		return nil, apperr.FromStore("list meeting invitations", "meeting", err)
	}
	return out, nil
}

// Proposals is ForMeeting narrowed to open proposals.
func (s *Service) Proposals(ctx context.Context, actor access.Actor, meetingID string) ([]model.Invitation, error) {
	all, err := s.ForMeeting(ctx, actor, meetingID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Invitation, 0, len(all))
	for _, inv := range all {
		if inv.Status == model.StatusProposed {
			out = append(out, inv)
		}
	}
	return out, nil
}

type Summary struct {
	Total          int     `json:"total"`
	Accepted       int     `json:"accepted"`
	Declined       int     `json:"declined"`
	Pending        int     `json:"pending"`
	Proposed       int     `json:"proposed"`
	Superseded     int     `json:"superseded"`
	Cancelled      int     `json:"cancelled"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

func Summarize(invs []model.Invitation) Summary {
	var sum Summary
	for _, inv := range invs {
		sum.Total++
		switch inv.Status {
		case model.StatusAccepted:
			sum.Accepted++
		case model.StatusDeclined:
			sum.Declined++
		case model.StatusPending:
			sum.Pending++
		case model.StatusProposed:
			sum.Proposed++
		case model.StatusSuperseded:
			sum.Superseded++
		case model.StatusCancelled:
			sum.Cancelled++
		}
	}
	if sum.Total > 0 {
		sum.AcceptanceRate = float64(sum.Accepted) / float64(sum.Total)
	}
	return sum
}

func (s *Service) Summary(ctx context.Context, actor access.Actor, meetingID string) (Summary, error) {
	all, err := s.ForMeeting(ctx, actor, meetingID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(all), nil
}
