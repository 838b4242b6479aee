package availability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/access"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage/memstore"
)

var day = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memstore.Store
	engine *Engine
	alice  model.Person
	bob    model.Person
}

func newFixture(t *testing.T, cache Cache, ttl time.Duration) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	alice, err := store.EnsurePerson(ctx, model.Person{Email: "alice@example.com", DisplayName: "Alice", Timezone: "UTC"})
	if err != nil {
		t.Fatalf("EnsurePerson failed: %v", err)
	}
	bob, err := store.EnsurePerson(ctx, model.Person{Email: "bob@example.com", DisplayName: "Bob", Timezone: "UTC"})
	if err != nil {
		t.Fatalf("EnsurePerson failed: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		store:  store,
		engine: NewEngine(store, cache, logger, Config{CacheTTL: ttl, Concurrency: 2}),
		alice:  alice,
		bob:    bob,
	}
}

// bobAccepts gives bob an accepted meeting organized by alice.
func (f *fixture) bobAccepts(t *testing.T, id string, start, end time.Time) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.InsertMeeting(ctx, model.Meeting{ID: id, OrganizerID: f.alice.ID, Title: "Sync " + id, Start: start, End: end, Timezone: "UTC"}); err != nil {
		t.Fatalf("InsertMeeting failed: %v", err)
	}
	if err := f.store.InsertInvitation(ctx, model.Invitation{ID: "inv-" + id, MeetingID: id, Recipient: f.bob.Email, Status: model.StatusAccepted}); err != nil {
		t.Fatalf("InsertInvitation failed: %v", err)
	}
}

func (f *fixture) actor() access.Actor { return access.Authenticated(f.alice) }

func TestCheckAvailabilityReportsConflictAndAlternatives(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.bobAccepts(t, "m1", day.Add(15*time.Hour), day.Add(16*time.Hour))

	start, end := day.Add(15*time.Hour+30*time.Minute), day.Add(16*time.Hour+30*time.Minute)
	got, err := f.engine.CheckAvailability(context.Background(), f.actor(), start, end, []string{"Bob@Example.com"})
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	bob := got[0]
	if bob.Available || !bob.UserFound || bob.ResolutionFailed {
		t.Fatalf("unexpected flags: %+v", bob)
	}
	if len(bob.Conflicts) != 1 || bob.Conflicts[0].MeetingID != "m1" {
		t.Fatalf("expected exactly the m1 conflict, got %+v", bob.Conflicts)
	}

	// Scored from 15:30Z: 16:00Z (99.7), then 10:00Z (98.9) and 14:00Z (96.5) the next day.
	want := []time.Time{
		day.Add(16 * time.Hour),
		day.Add(24*time.Hour + 10*time.Hour),
		day.Add(24*time.Hour + 14*time.Hour),
	}
	if len(bob.SuggestedAlternatives) != len(want) {
		t.Fatalf("expected %d alternatives, got %+v", len(want), bob.SuggestedAlternatives)
	}
	for i, w := range want {
		if !bob.SuggestedAlternatives[i].Start.Equal(w) {
			t.Fatalf("alternative %d: expected %s, got %s", i, w, bob.SuggestedAlternatives[i].Start)
		}
	}
}

func TestCheckAvailabilityOrganizerCountsAsBusy(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.bobAccepts(t, "m1", day.Add(15*time.Hour), day.Add(16*time.Hour))

	got, err := f.engine.CheckAvailability(context.Background(), f.actor(), day.Add(15*time.Hour), day.Add(16*time.Hour), []string{"alice@example.com"})
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if got[0].Available || len(got[0].Conflicts) != 1 {
		t.Fatalf("organizer should be busy during own meeting: %+v", got[0])
	}
}

func TestCheckAvailabilityBackToBackIsFree(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.bobAccepts(t, "m1", day.Add(15*time.Hour), day.Add(16*time.Hour))

	got, err := f.engine.CheckAvailability(context.Background(), f.actor(), day.Add(16*time.Hour), day.Add(17*time.Hour), []string{"bob@example.com"})
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if !got[0].Available || len(got[0].Conflicts) != 0 || len(got[0].SuggestedAlternatives) != 0 {
		t.Fatalf("expected free, got %+v", got[0])
	}
}

func TestCheckAvailabilityUnknownAndFailedAreUnavailable(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.store.SetHook(func(op, key string) error {
		if op == "MeetingsAcceptedBetween" && key == "bob@example.com" {
			return errors.New("connection reset")
		}
		return nil
	})

	got, err := f.engine.CheckAvailability(context.Background(), f.actor(), day.Add(15*time.Hour), day.Add(16*time.Hour),
		[]string{"ghost@example.com", "bob@example.com", "alice@example.com"})
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	ghost, bob, alice := got[0], got[1], got[2]
	if ghost.Available || ghost.UserFound || ghost.ResolutionFailed {
		t.Fatalf("unknown participant: %+v", ghost)
	}
	if bob.Available || !bob.UserFound || !bob.ResolutionFailed {
		t.Fatalf("failed participant: %+v", bob)
	}
	if !alice.Available {
		t.Fatalf("alice should be free: %+v", alice)
	}
}

func TestCheckAvailabilityValidation(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	cases := []struct {
		name       string
		actor      access.Actor
		start, end time.Time
		emails     []string
		kind       apperr.Kind
	}{
		{"no participants", f.actor(), day, day.Add(time.Hour), nil, apperr.KindValidation},
		{"empty range", f.actor(), day, day, []string{"bob@example.com"}, apperr.KindValidation},
		{"blank email", f.actor(), day, day.Add(time.Hour), []string{" "}, apperr.KindValidation},
		{"anonymous", access.Anonymous(), day, day.Add(time.Hour), []string{"bob@example.com"}, apperr.KindUnauthenticated},
	}
	for _, tc := range cases {
		_, err := f.engine.CheckAvailability(ctx, tc.actor, tc.start, tc.end, tc.emails)
		if !apperr.Is(err, tc.kind) {
			t.Fatalf("%s: expected %s, got %v", tc.name, tc.kind, err)
		}
	}
}

func TestFindSlotsAvoidsEveryoneAndRanks(t *testing.T) {
	f := newFixture(t, nil, 0)
	f.bobAccepts(t, "m1", day.Add(14*time.Hour), day.Add(15*time.Hour))

	res, err := f.engine.FindSlots(context.Background(), f.actor(), SlotRequest{
		Participants: []string{"alice@example.com", "bob@example.com", "ghost@example.com"},
		RangeStart:   day.Add(14 * time.Hour),
		RangeEnd:     day.Add(22 * time.Hour),
		Duration:     time.Hour,
		Timezone:     "America/New_York",
	})
	if err != nil {
		t.Fatalf("FindSlots failed: %v", err)
	}
	if res.Timezone != "America/New_York" {
		t.Fatalf("unexpected timezone %q", res.Timezone)
	}
	if len(res.Unknown) != 1 || res.Unknown[0] != "ghost@example.com" || len(res.Unresolved) != 0 {
		t.Fatalf("unexpected participant report: %+v", res)
	}
	if len(res.Slots) != MaxSlots {
		t.Fatalf("expected %d slots, got %d", MaxSlots, len(res.Slots))
	}
	busyStart, busyEnd := day.Add(14*time.Hour), day.Add(15*time.Hour)
	for i, s := range res.Slots {
		if s.Start.Before(busyEnd) && busyStart.Before(s.End) {
			t.Fatalf("slot %s overlaps the busy hour", s.Start)
		}
		if i > 0 && res.Slots[i-1].Score < s.Score {
			t.Fatalf("slots not sorted at %d", i)
		}
	}
	// 14:00Z is taken, so the best remaining is 15:00Z at 99.4.
	if !res.Slots[0].Start.Equal(day.Add(15*time.Hour)) || res.Slots[0].Score != 99.4 {
		t.Fatalf("unexpected best slot %+v", res.Slots[0])
	}
}

func TestFindSlotsFallsBackToActorZone(t *testing.T) {
	f := newFixture(t, nil, 0)
	res, err := f.engine.FindSlots(context.Background(), f.actor(), SlotRequest{
		Participants: []string{"bob@example.com"},
		RangeStart:   day,
		RangeEnd:     day.Add(24 * time.Hour),
		Duration:     30 * time.Minute,
		Timezone:     "Not/AZone",
	})
	if err != nil {
		t.Fatalf("FindSlots failed: %v", err)
	}
	if res.Timezone != "UTC" {
		t.Fatalf("expected actor zone UTC, got %q", res.Timezone)
	}
}

func TestFindSlotsEmptyIsNotAnError(t *testing.T) {
	f := newFixture(t, nil, 0)
	res, err := f.engine.FindSlots(context.Background(), f.actor(), SlotRequest{
		Participants: []string{"bob@example.com"},
		RangeStart:   day.Add(18 * time.Hour),
		RangeEnd:     day.Add(23 * time.Hour),
		Duration:     time.Hour,
		Timezone:     "UTC",
	})
	if err != nil {
		t.Fatalf("FindSlots failed: %v", err)
	}
	if !res.Empty() || res.Slots == nil {
		t.Fatalf("expected empty, non-nil slots, got %+v", res.Slots)
	}
}

func TestFindSlotsValidation(t *testing.T) {
	f := newFixture(t, nil, 0)
	base := SlotRequest{Participants: []string{"bob@example.com"}, RangeStart: day, RangeEnd: day.Add(24 * time.Hour), Duration: time.Hour}

	tooLong := base
	tooLong.Duration = MaxDuration + time.Minute
	noDuration := base
	noDuration.Duration = 0
	backwards := base
	backwards.RangeEnd = base.RangeStart
	nobody := base
	nobody.Participants = nil

	for name, req := range map[string]SlotRequest{"too long": tooLong, "no duration": noDuration, "backwards": backwards, "nobody": nobody} {
		if _, err := f.engine.FindSlots(context.Background(), f.actor(), req); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if _, err := f.engine.FindSlots(context.Background(), access.Anonymous(), base); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

type countingCache struct {
	mu       sync.Mutex
	entries  map[string][]byte
	computes int
}

func (c *countingCache) GetOrCompute(ctx context.Context, key string, _ time.Duration, compute func(context.Context) ([]byte, bool, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries[key]; ok {
		return v, nil
	}
	c.computes++
	v, store, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if store {
		c.entries[key] = v
	}
	return v, nil
}

func TestFindSlotsCachesOnlyCompleteResults(t *testing.T) {
	cache := &countingCache{entries: map[string][]byte{}}
	f := newFixture(t, cache, 5*time.Minute)
	req := SlotRequest{Participants: []string{"bob@example.com", "alice@example.com"}, RangeStart: day, RangeEnd: day.Add(24 * time.Hour), Duration: time.Hour, Timezone: "UTC"}

	first, err := f.engine.FindSlots(context.Background(), f.actor(), req)
	if err != nil {
		t.Fatalf("FindSlots failed: %v", err)
	}
	req.Participants = []string{"ALICE@example.com", "bob@example.com"}
	second, err := f.engine.FindSlots(context.Background(), f.actor(), req)
	if err != nil {
		t.Fatalf("FindSlots failed: %v", err)
	}
	if cache.computes != 1 {
		t.Fatalf("expected one compute for reordered participants, got %d", cache.computes)
	}
	if len(first.Slots) != len(second.Slots) || !first.Slots[0].Start.Equal(second.Slots[0].Start) {
		t.Fatalf("cached result differs: %+v vs %+v", first.Slots, second.Slots)
	}

	f.store.SetHook(func(op, key string) error {
		if op == "PersonByEmail" && key == "bob@example.com" {
			return errors.New("timeout")
		}
		return nil
	})
	req.Duration = 30 * time.Minute
	for i := 0; i < 2; i++ {
		res, err := f.engine.FindSlots(context.Background(), f.actor(), req)
		if err != nil {
			t.Fatalf("FindSlots failed: %v", err)
		}
		if len(res.Unresolved) != 1 || res.Unresolved[0] != "bob@example.com" {
			t.Fatalf("expected bob unresolved, got %+v", res.Unresolved)
		}
		if res.Empty() {
			t.Fatal("unresolved participants must not block the search")
		}
	}
	if cache.computes != 3 {
		t.Fatalf("degraded results must not be cached, computes=%d", cache.computes)
	}
}

func TestDurationFromMinutesBoundsBeforeConverting(t *testing.T) {
	if d, err := DurationFromMinutes(480); err != nil || d != MaxDuration {
		t.Fatalf("expected 480 minutes to pass, got %s (%v)", d, err)
	}
	for _, n := range []int{0, -30, 481, math.MaxInt} {
		if _, err := DurationFromMinutes(n); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%d: expected validation error, got %v", n, err)
		}
	}
}
