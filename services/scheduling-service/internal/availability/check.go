package availability

import (
	"context"
	"sort"
	"time"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/access"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/timeutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type ParticipantAvailability struct {
	Email                 string       `json:"email"`
	DisplayName           string       `json:"display_name,omitempty"`
	Available             bool         `json:"available"`
	UserFound             bool         `json:"user_found"`
	ResolutionFailed      bool         `json:"resolution_failed,omitempty"`
	Conflicts             []Commitment `json:"conflicts"`
	SuggestedAlternatives []Slot       `json:"suggested_alternatives"`
}

func normalizeEmail(e string) string { return model.NormalizeEmail(e) }

// ValidateCheck checks an availability question without touching the store.
func ValidateCheck(start, end time.Time, emails []string) error {
	if len(emails) == 0 {
		return apperr.Validation("participant_emails must not be empty")
	}
	if !end.After(start) {
		return apperr.Validation("end_time must be after start_time")
	}
	if _, ok := normalizeParticipants(emails); !ok {
		return apperr.Validation("participant_emails must not contain blank entries")
	}
	return nil
}

// CheckAvailability reports, per participant, whether [start, end) is free. Unknown
// people and lookups that fail are reported unavailable. Busy participants get up to
// MaxAlternatives suggestions in their own timezone.
func (e *Engine) CheckAvailability(ctx context.Context, actor access.Actor, start, end time.Time, emails []string) ([]ParticipantAvailability, error) {
	if err := ValidateCheck(start, end, emails); err != nil {
		return nil, err
	}
	participants, _ := normalizeParticipants(emails)
	if !actor.IsAuthenticated() {
		return nil, apperr.Unauthenticated()
	}

	ctx, span := tracer.Start(ctx, "availability.check", trace.WithAttributes(
		attribute.Int("participants", len(participants)),
	))
	defer span.End()

	out := make([]ParticipantAvailability, len(participants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, email := range participants {
		g.Go(func() error {
			out[i] = e.checkOne(gctx, email, start, end)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal("check availability", err)
	}
	return out, nil
}

func (e *Engine) checkOne(ctx context.Context, email string, start, end time.Time) ParticipantAvailability {
	res := ParticipantAvailability{Email: email, Conflicts: []Commitment{}, SuggestedAlternatives: []Slot{}}

	person, err := e.dir.PersonByEmail(ctx, email)
	if err != nil {
		if !storage.IsNotFound(err) {
			e.logger.Error("participant lookup failed", "err", err, "email", email)
			res.ResolutionFailed = true
		}
		return res
	}
	res.UserFound = true
	res.DisplayName = person.DisplayName

	busy, err := e.resolver.Busy(ctx, person, start, end)
	if err != nil {
		e.logger.Error("busy time lookup failed", "err", err, "email", email)
		res.ResolutionFailed = true
		return res
	}

	seen := map[string]bool{}
	for _, c := range busy {
		if seen[c.MeetingID] || !timeutil.Overlaps(c.Start, c.End, start, end) {
			continue
		}
		seen[c.MeetingID] = true
		res.Conflicts = append(res.Conflicts, c)
	}
	sort.Slice(res.Conflicts, func(i, j int) bool { return res.Conflicts[i].Start.Before(res.Conflicts[j].Start) })

	if len(res.Conflicts) == 0 {
		res.Available = true
		return res
	}

	alts, err := e.Alternatives(ctx, person, start, end)
	if err != nil {
		e.logger.Warn("alternative slots unavailable", "err", err, "email", email)
		return res
	}
	res.SuggestedAlternatives = alts
	return res
}

// Alternatives searches from proposedStart over AlternativeLookahead (at least through
// proposedEnd plus one more duration) for slots free for p alone, in p's timezone.
func (e *Engine) Alternatives(ctx context.Context, p model.Person, proposedStart, proposedEnd time.Time) ([]Slot, error) {
	duration := proposedEnd.Sub(proposedStart)
	searchEnd := proposedStart.Add(AlternativeLookahead)
	if minEnd := proposedEnd.Add(duration); minEnd.After(searchEnd) {
		searchEnd = minEnd
	}

	busy, err := e.resolver.Busy(ctx, p, proposedStart, searchEnd)
	if err != nil {
		return nil, err
	}
	slots := RankSlots(SearchParams{
		RangeStart: proposedStart,
		RangeEnd:   searchEnd,
		Duration:   duration,
		Location:   timeutil.ZoneOrUTC(p.Timezone),
		ScoreFrom:  proposedStart,
		NotBefore:  proposedStart,
		Limit:      MaxAlternatives,
	}, intervals(busy))
	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}
