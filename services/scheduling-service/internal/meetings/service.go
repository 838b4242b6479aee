// Package meetings owns the organizer side of a meeting: creating it with its
// invitations, editing, cancelling and listing.
package meetings

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/access"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/timeutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("scheduling-service/meetings")

const (
	DefaultConferenceBaseURL = "https://meet.jit.si/"
	DefaultCollaborators     = 10
	MaxCollaborators         = 50
	maxTitleLength           = 255
)

type Config struct {
	// ConferenceBaseURL prefixes generated room ids.
	ConferenceBaseURL string
}

type Service struct {
	store    storage.Store
	notifier notify.Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
	newID    func() string
}

func NewService(store storage.Store, notifier notify.Notifier, logger *slog.Logger, cfg Config) *Service {
	if strings.TrimSpace(cfg.ConferenceBaseURL) == "" {
		cfg.ConferenceBaseURL = DefaultConferenceBaseURL
	}
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (s *Service) notify(ctx context.Context, notices ...notify.Notice) {
	if len(notices) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, notices...); err != nil {
		s.logger.Error("notification enqueue failed", "err", err, "kind", notices[0].Kind, "count", len(notices))
	}
}

func (s *Service) conferenceLink() string {
	return s.cfg.ConferenceBaseURL + uuid.NewString()
}

// ViewerZone is the zone times are rendered in for a reader: the requested zone if
// valid, else the reader's profile zone, else UTC.
func ViewerZone(requested string, actor access.Actor) string {
	return timeutil.SanitizeZone(requested, actor.Timezone())
}

type CreateInput struct {
	Title          string
	Description    string
	Location       string
	ConferenceLink string
	Start          time.Time
	End            time.Time
	Timezone       string
	Recurrence     string
	Participants   []string
}

// normalizeParticipants lower-cases, trims and de-duplicates, dropping the organizer.
func normalizeParticipants(raw []string, organizer string) ([]string, error) {
	seen := map[string]bool{organizer: true}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		email := model.NormalizeEmail(r)
		if !model.LooksLikeEmail(email) {
			return nil, apperr.Validation("invalid participant email %q", strings.TrimSpace(r))
		}
		if seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	return out, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperr.Validation("title is required")
	}
	if len([]rune(title)) > maxTitleLength {
		return "", apperr.Validation("title must be at most %d characters", maxTitleLength)
	}
	return title, nil
}

// Create stores the meeting and one PENDING invitation per participant in one
// transaction, then queues the invitations.
func (s *Service) Create(ctx context.Context, actor access.Actor, in CreateInput) (model.Meeting, []model.Invitation, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return model.Meeting{}, nil, err
	}
	if !in.End.After(in.Start) {
		return model.Meeting{}, nil, apperr.ValidationErr(model.ErrInvalidTimeRange)
	}
	organizer, ok := actor.Person()
	if !ok {
		return model.Meeting{}, nil, apperr.Unauthenticated()
	}
	participants, err := normalizeParticipants(in.Participants, organizer.Email)
	if err != nil {
		return model.Meeting{}, nil, err
	}

	ctx, span := tracer.Start(ctx, "meetings.create", trace.WithAttributes(attribute.Int("participants", len(participants))))
	defer span.End()

	m := model.Meeting{
		ID:             s.newID(),
		OrganizerID:    organizer.ID,
		OrganizerEmail: organizer.Email,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Location:       strings.TrimSpace(in.Location),
		ConferenceLink: strings.TrimSpace(in.ConferenceLink),
		Start:          in.Start.UTC(),
		End:            in.End.UTC(),
		Timezone:       timeutil.SanitizeZone(in.Timezone, organizer.Timezone),
		Recurrence:     strings.TrimSpace(in.Recurrence),
	}
	if m.ConferenceLink == "" {
		m.ConferenceLink = s.conferenceLink()
	}

	invs := make([]model.Invitation, 0, len(participants))
	for _, email := range participants {
		invs = append(invs, model.Invitation{ID: s.newID(), MeetingID: m.ID, Recipient: email, Status: model.StatusPending})
	}

	err = s.store.InTx(ctx, func(q storage.Queries) error {
		if err := q.InsertMeeting(ctx, m); err != nil {
			return err
		}
		for _, inv := range invs {
			if err := q.InsertInvitation(ctx, inv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Meeting{}, nil, apperr.FromStore("create meeting", "meeting", err)
	}
	now := s.now()
	m.CreatedAt, m.UpdatedAt = now, now

	s.logger.Info("meeting created", "meeting_id", m.ID, "organizer_id", m.OrganizerID, "invitations", len(invs))
	notices := make([]notify.Notice, 0, len(invs))
	for _, inv := range invs {
		notices = append(notices, notify.InvitationCreated(m, inv))
	}
	s.notify(ctx, notices...)
	return m, invs, nil
}

// Get returns a meeting to its organizer (with every invitation) or to an invitee
// (with only their own).
func (s *Service) Get(ctx context.Context, actor access.Actor, id string) (model.Meeting, []model.Invitation, error) {
	if !actor.IsAuthenticated() {
		return model.Meeting{}, nil, apperr.Unauthenticated()
	}
	m, err := s.store.GetMeeting(ctx, id)
	if err != nil {
		return model.Meeting{}, nil, apperr.FromStore("get meeting", "meeting", err)
	}
	invs, err := s.store.InvitationsByMeeting(ctx, id)
	if err != nil {
		return model.Meeting{}, nil, apperr.FromStore("get meeting", "meeting", err)
	}
	if access.CanOrganize(actor, m) {
		return m, invs, nil
	}
	for _, inv := range invs {
		if access.IsRecipient(actor, inv) {
			return m, []model.Invitation{inv}, nil
		}
	}
	return model.Meeting{}, nil, apperr.Forbidden()
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Title          *string
	Description    *string
	Location       *string
	ConferenceLink *string
	Start          *time.Time
	End            *time.Time
	Timezone       *string
	Recurrence     *string
}

func (s *Service) Update(ctx context.Context, actor access.Actor, id string, in UpdateInput) (model.Meeting, error) {
	var title string
	if in.Title != nil {
		var err error
		if title, err = validateTitle(*in.Title); err != nil {
			return model.Meeting{}, err
		}
	}
	if in.Start != nil && in.End != nil && !in.End.After(*in.Start) {
		return model.Meeting{}, apperr.ValidationErr(model.ErrInvalidTimeRange)
	}
	if !actor.IsAuthenticated() {
		return model.Meeting{}, apperr.Unauthenticated()
	}
	ctx, span := tracer.Start(ctx, "meetings.update", trace.WithAttributes(attribute.String("meeting.id", id)))
	defer span.End()

	var (
		m    model.Meeting
		invs []model.Invitation
	)
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		var err error
		if m, err = q.GetMeetingForUpdate(ctx, id); err != nil {
			return err
		}
		if !access.CanOrganize(actor, m) {
			return apperr.Forbidden()
		}
		if in.Title != nil {
			m.Title = title
		}
		if in.Description != nil {
			m.Description = strings.TrimSpace(*in.Description)
		}
		if in.Location != nil {
			m.Location = strings.TrimSpace(*in.Location)
		}
		if in.ConferenceLink != nil {
			m.ConferenceLink = strings.TrimSpace(*in.ConferenceLink)
		}
		if m.ConferenceLink == "" {
			m.ConferenceLink = s.conferenceLink()
		}
		if in.Timezone != nil {
			m.Timezone = timeutil.SanitizeZone(*in.Timezone, m.Timezone)
		}
		if in.Recurrence != nil {
			m.Recurrence = strings.TrimSpace(*in.Recurrence)
		}
		start, end := m.Start, m.End
		if in.Start != nil {
			start = in.Start.UTC()
		}
		if in.End != nil {
			end = in.End.UTC()
		}
		if err := m.Reschedule(start, end); err != nil {
			return apperr.ValidationErr(err)
		}
		if err := q.UpdateMeeting(ctx, m); err != nil {
			return err
		}
		invs, err = q.InvitationsByMeeting(ctx, id)
		return err
	})
	if err != nil {
		return model.Meeting{}, apperr.FromStore("update meeting", "meeting", err)
	}
	now := s.now()
	m.UpdatedAt = now

	s.logger.Info("meeting updated", "meeting_id", m.ID)
	var notices []notify.Notice
	for _, inv := range invs {
		switch inv.Status {
		case model.StatusPending, model.StatusAccepted, model.StatusProposed:
			notices = append(notices, notify.MeetingUpdated(m, inv, now))
		}
	}
	s.notify(ctx, notices...)
	return m, nil
}

// Delete cancels every invitation and soft-deletes the meeting in one transaction,
// then tells every recipient.
func (s *Service) Delete(ctx context.Context, actor access.Actor, id string) error {
	if !actor.IsAuthenticated() {
		return apperr.Unauthenticated()
	}
	ctx, span := tracer.Start(ctx, "meetings.delete", trace.WithAttributes(attribute.String("meeting.id", id)))
	defer span.End()

	now := s.now()
	var (
		m         model.Meeting
		cancelled []model.Invitation
	)
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		var err error
		if m, err = q.GetMeetingForUpdate(ctx, id); err != nil {
			return err
		}
		if !access.CanOrganize(actor, m) {
			return apperr.Forbidden()
		}
		invs, err := q.InvitationsByMeeting(ctx, id)
		if err != nil {
			return err
		}
		for _, inv := range invs {
			if !inv.Cancel() {
				continue
			}
			if err := q.UpdateInvitation(ctx, inv); err != nil {
				return err
			}
			cancelled = append(cancelled, inv)
		}
		return q.DeleteMeeting(ctx, id, now)
	})
	if err != nil {
		return apperr.FromStore("delete meeting", "meeting", err)
	}

	s.logger.Info("meeting deleted", "meeting_id", id, "cancelled", len(cancelled))
	notices := make([]notify.Notice, 0, len(cancelled))
	for _, inv := range cancelled {
		notices = append(notices, notify.MeetingCancelled(m, inv, now))
	}
	s.notify(ctx, notices...)
	return nil
}

type View string

const (
	ViewRange View = ""
	ViewDay   View = "day"
	ViewWeek  View = "week"
)

// ListQuery selects meetings by explicit range, or by the day or week containing Date
// in Timezone.
type ListQuery struct {
	View            View
	Start           time.Time
	End             time.Time
	Date            time.Time
	Timezone        string
	IncludeAccepted bool
}

// Window resolves the query to a half-open interval.
func (q ListQuery) Window(fallbackZone string) (time.Time, time.Time, error) {
	loc := timeutil.ZoneOrUTC(timeutil.SanitizeZone(q.Timezone, fallbackZone))
	switch q.View {
	case ViewDay:
		if q.Date.IsZero() {
			return time.Time{}, time.Time{}, apperr.Validation("date is required for the day view")
		}
		return timeutil.StartOfDay(q.Date, loc), timeutil.EndOfDay(q.Date, loc).Add(time.Nanosecond), nil
	case ViewWeek:
		if q.Date.IsZero() {
			return time.Time{}, time.Time{}, apperr.Validation("date is required for the week view")
		}
		start, end := timeutil.WeekBounds(q.Date, loc)
		return start, end.Add(time.Nanosecond), nil
	case ViewRange:
		if !q.End.After(q.Start) {
			return time.Time{}, time.Time{}, apperr.Validation("end must be after start")
		}
		return q.Start, q.End, nil
	}
	return time.Time{}, time.Time{}, apperr.Validation("unknown view %q", q.View)
}

// List returns the actor's meetings overlapping the query window, sorted by start.
func (s *Service) List(ctx context.Context, actor access.Actor, q ListQuery) ([]model.Meeting, error) {
	p, ok := actor.Person()
	start, end, err := q.Window(actor.Timezone())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Unauthenticated()
	}

	out, err := s.store.MeetingsOrganizedBetween(ctx, p.ID, start, end)
	if err != nil {
		return nil, apperr.FromStore("list meetings", "meeting", err)
	}
	if q.IncludeAccepted {
		accepted, err := s.store.MeetingsAcceptedBetween(ctx, p.Email, start, end)
		if err != nil {
			return nil, apperr.FromStore("list meetings", "meeting", err)
		}
		seen := make(map[string]bool, len(out))
		for _, m := range out {
			seen[m.ID] = true
		}
		for _, m := range accepted {
			if !seen[m.ID] {
				seen[m.ID] = true
				out = append(out, m)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	if out == nil {
		out = []model.Meeting{}
	}
	return out, nil
}

// Collaborators lists the people the actor invites most often.
func (s *Service) Collaborators(ctx context.Context, actor access.Actor, limit int) ([]model.Collaborator, error) {
	if limit < 0 || limit > MaxCollaborators {
		return nil, apperr.Validation("limit must be between 1 and %d", MaxCollaborators)
	}
	if limit == 0 {
		limit = DefaultCollaborators
	}
	p, ok := actor.Person()
	if !ok {
		return nil, apperr.Unauthenticated()
	}
	out, err := s.store.FrequentCollaborators(ctx, p.ID, limit)
	if err != nil {
		return nil, apperr.FromStore("list collaborators", "person", err)
	}
	if out == nil {
		out = []model.Collaborator{}
	}
	return out, nil
}
