package availability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/access"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/timeutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type SlotRequest struct {
	Participants []string
	RangeStart   time.Time
	RangeEnd     time.Time
	Duration     time.Duration
	Timezone     string
}

// SlotResult is a ranked search. Unknown lists participants with no account, who never
// block a slot. Unresolved lists participants whose calendar could not be read; the
// slots do not account for them.
type SlotResult struct {
	Slots      []Slot   `json:"slots"`
	Timezone   string   `json:"timezone"`
	Unknown    []string `json:"unknown_participants"`
	Unresolved []string `json:"unresolved_participants"`
}

// Empty reports the "no common slot" outcome.
func (r SlotResult) Empty() bool { return len(r.Slots) == 0 }

type participantBusy struct {
	unknown    bool
	unresolved bool
	busy       []Interval
}

// DurationFromMinutes checks a meeting length against MaxDuration before converting it.
func DurationFromMinutes(minutes int) (time.Duration, error) {
	if minutes <= 0 {
		return 0, apperr.Validation("duration_minutes must be positive")
	}
	if minutes > int(MaxDuration/time.Minute) {
		return 0, apperr.Validation("duration_minutes must be at most %d", int(MaxDuration/time.Minute))
	}
	return time.Duration(minutes) * time.Minute, nil
}

// Validate checks the request shape. It touches no store.
func (req SlotRequest) Validate() error {
	if len(req.Participants) == 0 {
		return apperr.Validation("participant_emails must not be empty")
	}
	if !req.RangeEnd.After(req.RangeStart) {
		return apperr.Validation("range_end must be after range_start")
	}
	if req.Duration <= 0 {
		return apperr.Validation("duration_minutes must be positive")
	}
	if req.Duration > MaxDuration {
		return apperr.Validation("duration_minutes must be at most %d", int(MaxDuration/time.Minute))
	}
	if _, ok := normalizeParticipants(req.Participants); !ok {
		return apperr.Validation("participant_emails must not contain blank entries")
	}
	return nil
}

// FindSlots returns up to MaxSlots candidate meetings free for every resolvable
// participant. An empty result is not an error.
func (e *Engine) FindSlots(ctx context.Context, actor access.Actor, req SlotRequest) (SlotResult, error) {
	if err := req.Validate(); err != nil {
		return SlotResult{}, err
	}
	participants, _ := normalizeParticipants(req.Participants)
	if !actor.IsAuthenticated() {
		return SlotResult{}, apperr.Unauthenticated()
	}

	req.Participants = participants
	req.Timezone = timeutil.SanitizeZone(req.Timezone, actor.Timezone())

	ctx, span := tracer.Start(ctx, "availability.find_slots", trace.WithAttributes(
		attribute.Int("participants", len(participants)),
		attribute.Int("duration_minutes", int(req.Duration/time.Minute)),
		attribute.String("timezone", req.Timezone),
	))
	defer span.End()

	if e.cache == nil || e.ttl <= 0 {
		return e.findSlots(ctx, req)
	}

	raw, err := e.cache.GetOrCompute(ctx, slotCacheKey(req), e.ttl, func(ctx context.Context) ([]byte, bool, error) {
		res, err := e.findSlots(ctx, req)
		if err != nil {
			return nil, false, err
		}
		b, err := json.Marshal(res)
		if err != nil {
			return nil, false, err
		}
		return b, len(res.Unresolved) == 0, nil
	})
	if err != nil {
		return SlotResult{}, err
	}
	var res SlotResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return SlotResult{}, apperr.Internal("decode cached slots", err)
	}
	return res, nil
}

func (e *Engine) findSlots(ctx context.Context, req SlotRequest) (SlotResult, error) {
	loc := timeutil.ZoneOrUTC(req.Timezone)
	per := make([]participantBusy, len(req.Participants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, email := range req.Participants {
		g.Go(func() error {
			per[i] = e.resolveParticipant(gctx, email, req.RangeStart, req.RangeEnd)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return SlotResult{}, apperr.Internal("resolve participants", err)
	}

	res := SlotResult{Timezone: req.Timezone, Unknown: []string{}, Unresolved: []string{}}
	var busy []Interval
	for i, pb := range per {
		switch {
		case pb.unknown:
			res.Unknown = append(res.Unknown, req.Participants[i])
		case pb.unresolved:
			res.Unresolved = append(res.Unresolved, req.Participants[i])
		default:
			busy = append(busy, pb.busy...)
		}
	}

	res.Slots = RankSlots(SearchParams{
		RangeStart: req.RangeStart,
		RangeEnd:   req.RangeEnd,
		Duration:   req.Duration,
		Location:   loc,
		ScoreFrom:  req.RangeStart,
		Limit:      MaxSlots,
	}, busy)
	if res.Slots == nil {
		res.Slots = []Slot{}
	}
	return res, nil
}

func (e *Engine) resolveParticipant(ctx context.Context, email string, start, end time.Time) participantBusy {
	person, err := e.dir.PersonByEmail(ctx, email)
	if err != nil {
		if storage.IsNotFound(err) {
			return participantBusy{unknown: true}
		}
		e.logger.Error("participant lookup failed", "err", err, "email", email)
		return participantBusy{unresolved: true}
	}
	busy, err := e.resolver.Busy(ctx, person, start, end)
	if err != nil {
		e.logger.Error("busy time lookup failed", "err", err, "email", email)
		return participantBusy{unresolved: true}
	}
	return participantBusy{busy: intervals(busy)}
}

// slotCacheKey ignores participant order since it does not change the answer.
func slotCacheKey(req SlotRequest) string {
	ps := append([]string(nil), req.Participants...)
	sort.Strings(ps)
	raw := fmt.Sprintf("%s|%d|%d|%d|%s",
		strings.Join(ps, ","),
		req.RangeStart.UTC().Unix(),
		req.RangeEnd.UTC().Unix(),
		int64(req.Duration/time.Minute),
		req.Timezone,
	)
	sum := sha256.Sum256([]byte(raw))
	return "slots:v1:" + hex.EncodeToString(sum[:])
}
