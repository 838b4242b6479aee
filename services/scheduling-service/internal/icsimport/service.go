package icsimport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/access"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/timeutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("scheduling-service/icsimport")

// duplicateWindow is how close two starts must be for same-titled meetings to match.
const duplicateWindow = time.Second

type Result struct {
	Imported   int      `json:"imported"`
	Duplicates int      `json:"duplicates"`
	Errors     []string `json:"errors"`
}

type Service struct {
	store  storage.Queries
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(store storage.Queries, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Import stores every event in r as a meeting organized by actor, without
// invitations. An event matching an existing meeting by title and start is counted
// as a duplicate and skipped. A file that cannot be decoded at all is a validation
// error; individual bad events are reported in the result.
func (s *Service) Import(ctx context.Context, actor access.Actor, r io.Reader) (Result, error) {
	organizer, ok := actor.Person()
	if !ok {
		return Result{}, apperr.Unauthenticated()
	}
	ctx, span := tracer.Start(ctx, "icsimport.import")
	defer span.End()

	occs, problems, err := Parse(r, timeutil.ZoneOrUTC(organizer.Timezone), s.now())
	if err != nil {
		return Result{}, apperr.Validation("failed to parse ICS file: %v", err)
	}
	res := Result{Errors: append([]string{}, problems...)}
	for _, occ := range occs {
		dup, err := s.isDuplicate(ctx, organizer.ID, occ)
		if err != nil {
			return res, apperr.FromStore("icsimport.duplicate_check", "meeting", err)
		}
		if dup {
			res.Duplicates++
			continue
		}
		m := model.Meeting{
			ID:          s.newID(),
			OrganizerID: organizer.ID,
			Title:       occ.Title,
			Description: occ.Description,
			Location:    occ.Location,
			Start:       occ.Start,
			End:         occ.End,
			Timezone:    occ.Timezone,
			Recurrence:  occ.Recurrence,
		}
		if err := s.store.InsertMeeting(ctx, m); err != nil {
			s.logger.Warn("ics event not stored", "err", err, "title", occ.Title)
			res.Errors = append(res.Errors, fmt.Sprintf("event %q at %s: could not be stored", occ.Title, occ.Start.Format(time.RFC3339)))
			continue
		}
		res.Imported++
	}
	span.SetAttributes(
		attribute.Int("imported", res.Imported),
		attribute.Int("duplicates", res.Duplicates),
		attribute.Int("errors", len(res.Errors)),
	)
	if len(res.Errors) > 0 {
		span.AddEvent("partial import", trace.WithAttributes(attribute.StringSlice("errors", res.Errors)))
	}
	s.logger.Info("ics import finished",
		"organizer_id", organizer.ID,
		"imported", res.Imported,
		"duplicates", res.Duplicates,
		"errors", len(res.Errors),
	)
	return res, nil
}

func (s *Service) isDuplicate(ctx context.Context, organizerID string, occ Occurrence) (bool, error) {
	existing, err := s.store.MeetingsOrganizedBetween(ctx, organizerID, occ.Start.Add(-duplicateWindow), occ.Start.Add(duplicateWindow))
	if err != nil {
		return false, err
	}
	for _, m := range existing {
		d := m.Start.Sub(occ.Start)
		if d < 0 {
			d = -d
		}
		if d <= duplicateWindow && m.Title == occ.Title {
			return true, nil
		}
	}
	return false, nil
}
