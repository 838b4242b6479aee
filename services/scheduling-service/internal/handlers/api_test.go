package handlers

import (
	"bytes"
	"errors"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/huddle/libs/auth"
	"github.com/md-rashed-zaman/huddle/libs/httpx"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/icsimport"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/invitations"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/meetings"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/people"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage/memstore"
)

const secret = "test-secret"

type testServer struct {
	handler  http.Handler
	recorder *notify.Recorder
	store    *memstore.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memstore.New()
	rec := &notify.Recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := NewAPI(
		availability.NewEngine(store, nil, logger, availability.Config{}),
		meetings.NewService(store, rec, logger, meetings.Config{}),
		invitations.NewService(store, rec, logger),
		people.NewService(store),
		icsimport.NewService(store, logger),
		logger,
	)
	mux := http.NewServeMux()
	api.Register(mux)
	return &testServer{
		handler:  httpx.Chain(mux, httpx.WithBearerAuth(auth.Verifier{Secret: secret})),
		recorder: rec,
		store:    store,
	}
}

func token(t *testing.T, email string) string {
	t.Helper()
	tok, err := auth.SignHS256(auth.Claims{
		Sub:   email,
		Email: email,
		Iat:   time.Now().Unix(),
		Exp:   time.Now().Add(time.Hour).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	return tok
}

// do sends body (a string or a value to encode) as email, who may be empty for an
// anonymous call.
func (s *testServer) do(t *testing.T, method, path, email string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if email != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, email))
	}
	rw := httptest.NewRecorder()
	s.handler.ServeHTTP(rw, req)
	return rw
}

func decodeBody[T any](t *testing.T, rw *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rw.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rw.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rw *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rw.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rw.Code, rw.Body.String())
	}
}

func TestAnonymousCallsAreUnauthenticated(t *testing.T) {
	s := newTestServer(t)
	rw := s.do(t, http.MethodGet, "/api/v1/me", "", nil)
	expectStatus(t, rw, http.StatusUnauthorized)
	if got := decodeBody[errorResponse](t, rw); got.Error != "unauthenticated" {
		t.Fatalf("unexpected error body %+v", got)
	}
}

func TestMeResolvesAndUpdatesProfile(t *testing.T) {
	s := newTestServer(t)
	rw := s.do(t, http.MethodGet, "/api/v1/me", "Alice@Example.com", nil)
	expectStatus(t, rw, http.StatusOK)
	me := decodeBody[personView](t, rw)
	if me.Email != "alice@example.com" || me.Timezone != "UTC" || me.ID == "" {
		t.Fatalf("unexpected profile %+v", me)
	}

	rw = s.do(t, http.MethodPatch, "/api/v1/me", "alice@example.com", map[string]string{"timezone": "Mars/Olympus"})
	expectStatus(t, rw, http.StatusBadRequest)

	rw = s.do(t, http.MethodPatch, "/api/v1/me", "alice@example.com", map[string]string{"timezone": "Europe/Berlin"})
	expectStatus(t, rw, http.StatusOK)
	if got := decodeBody[personView](t, rw); got.Timezone != "Europe/Berlin" || got.ID != me.ID {
		t.Fatalf("profile not updated: %+v", got)
	}
}

func TestNegotiationOverHTTP(t *testing.T) {
	s := newTestServer(t)
	// Bob needs an account before he can act.
	expectStatus(t, s.do(t, http.MethodGet, "/api/v1/me", "bob@example.com", nil), http.StatusOK)

	rw := s.do(t, http.MethodPost, "/api/v1/meetings?timezone=America/New_York", "alice@example.com", map[string]any{
		"title":              "Planning",
		"start_time":         "2030-03-04T15:00:00Z",
		"end_time":           "2030-03-04T16:00:00Z",
		"participant_emails": []string{"BOB@example.com"},
	})
	expectStatus(t, rw, http.StatusCreated)
	created := decodeBody[meetingView](t, rw)
	if created.Start != "2030-03-04T10:00:00-05:00" || created.ViewerTimezone != "America/New_York" {
		t.Fatalf("meeting not localized: %+v", created)
	}
	if len(created.Invitations) != 1 || created.Invitations[0].Recipient != "bob@example.com" || created.ConferenceLink == "" {
		t.Fatalf("unexpected created meeting %+v", created)
	}
	invPath := "/api/v1/invitations/" + created.Invitations[0].ID

	// A stranger cannot see the meeting.
	expectStatus(t, s.do(t, http.MethodGet, "/api/v1/meetings/"+created.ID, "carol@example.com", nil), http.StatusForbidden)

	// Proposal fields on ACCEPTED are rejected before any lookup.
	rw = s.do(t, http.MethodPatch, invPath, "bob@example.com", map[string]any{
		"status":         "ACCEPTED",
		"proposed_start": "2030-03-05T15:00:00Z",
		"proposed_end":   "2030-03-05T16:00:00Z",
	})
	expectStatus(t, rw, http.StatusBadRequest)

	rw = s.do(t, http.MethodPatch, invPath, "bob@example.com", map[string]any{
		"status":         "PROPOSED",
		"note":           "Wednesday works better",
		"proposed_start": "2030-03-05T15:00:00Z",
		"proposed_end":   "2030-03-05T16:00:00Z",
	})
	expectStatus(t, rw, http.StatusOK)
	if got := decodeBody[invitationView](t, rw); got.Status != "PROPOSED" || got.ProposedStart == nil {
		t.Fatalf("unexpected invitation %+v", got)
	}

	// Only the organizer may accept.
	expectStatus(t, s.do(t, http.MethodPost, invPath+"/accept-proposal", "bob@example.com", nil), http.StatusForbidden)

	rw = s.do(t, http.MethodPost, invPath+"/accept-proposal", "alice@example.com", nil)
	expectStatus(t, rw, http.StatusOK)
	if got := decodeBody[meetingView](t, rw); got.Start != "2030-03-05T15:00:00Z" {
		t.Fatalf("meeting not rescheduled: %+v", got)
	}

	// The invitation is now ACCEPTED; answering again conflicts.
	rw = s.do(t, http.MethodPatch, invPath, "bob@example.com", map[string]any{"status": "DECLINED"})
	expectStatus(t, rw, http.StatusConflict)

	rw = s.do(t, http.MethodGet, "/api/v1/meetings/"+created.ID+"/invitations/summary", "alice@example.com", nil)
	expectStatus(t, rw, http.StatusOK)
	if got := decodeBody[invitations.Summary](t, rw); got.Total != 1 || got.Accepted != 1 || got.AcceptanceRate != 1 {
		t.Fatalf("unexpected summary %+v", got)
	}

	kinds := s.recorder.Kinds()
	if kinds[notify.KindInvitationCreated] != 1 || kinds[notify.KindMeetingRescheduled] != 1 {
		t.Fatalf("unexpected notices %v", kinds)
	}
}

func TestFindSlotsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodGet, "/api/v1/me", "bob@example.com", nil), http.StatusOK)

	rw := s.do(t, http.MethodPost, "/api/v1/availability/slots", "alice@example.com", map[string]any{
		"participant_emails": []string{"bob@example.com"},
		"range_start":        "2030-03-04T14:00:00Z",
		"range_end":          "2030-03-04T22:00:00Z",
		"duration_minutes":   60,
		"timezone":           "America/New_York",
	})
	expectStatus(t, rw, http.StatusOK)
	got := decodeBody[slotsResponse](t, rw)
	if len(got.Slots) != availability.MaxSlots || got.Timezone != "America/New_York" {
		t.Fatalf("unexpected slots %+v", got)
	}
	if !strings.HasSuffix(got.Slots[0].Start, "-05:00") {
		t.Fatalf("slots not localized: %s", got.Slots[0].Start)
	}

	// Evening UTC is outside business hours in UTC.
	rw = s.do(t, http.MethodPost, "/api/v1/availability/slots", "alice@example.com", map[string]any{
		"participant_emails": []string{"bob@example.com"},
		"range_start":        "2030-03-04T18:00:00Z",
		"range_end":          "2030-03-04T22:00:00Z",
		"duration_minutes":   60,
		"timezone":           "UTC",
	})
	expectStatus(t, rw, http.StatusUnprocessableEntity)
	if body := decodeBody[errorResponse](t, rw); body.Error != "no_common_slot" {
		t.Fatalf("unexpected error body %+v", body)
	}

	rw = s.do(t, http.MethodPost, "/api/v1/availability/slots", "alice@example.com", map[string]any{
		"participant_emails": []string{"bob@example.com"},
		"range_start":        "2030-03-04T14:00:00Z",
		"range_end":          "2030-03-04T22:00:00Z",
		"duration_minutes":   481,
	})
	expectStatus(t, rw, http.StatusBadRequest)
}

func TestMalformedInputIsValidationFailure(t *testing.T) {
	s := newTestServer(t)
	rw := s.do(t, http.MethodPost, "/api/v1/availability/check", "alice@example.com", "{not json")
	expectStatus(t, rw, http.StatusBadRequest)
	if got := decodeBody[errorResponse](t, rw); got.Error != "validation_failed" {
		t.Fatalf("unexpected error body %+v", got)
	}

	rw = s.do(t, http.MethodPost, "/api/v1/availability/check", "alice@example.com", map[string]any{
		"start_time":         "tomorrow",
		"end_time":           "2030-03-04T16:00:00Z",
		"participant_emails": []string{"bob@example.com"},
	})
	expectStatus(t, rw, http.StatusBadRequest)

	expectStatus(t, s.do(t, http.MethodGet, "/api/v1/meetings?view=day", "alice@example.com", nil), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodGet, "/api/v1/meetings/does-not-exist", "alice@example.com", nil), http.StatusNotFound)
}

func TestListAndImportOverHTTP(t *testing.T) {
	s := newTestServer(t)
	ics := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//huddle//test//EN",
		"BEGIN:VEVENT",
		"UID:offsite",
		"DTSTAMP:20300101T000000Z",
		"SUMMARY:Offsite",
		"DTSTART:20300304T090000Z",
		"DTEND:20300304T170000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n") + "\r\n"

	rw := s.do(t, http.MethodPost, "/api/v1/meetings/import", "alice@example.com", ics)
	expectStatus(t, rw, http.StatusOK)
	if got := decodeBody[icsimport.Result](t, rw); got.Imported != 1 || got.Duplicates != 0 {
		t.Fatalf("unexpected import result %+v", got)
	}

	rw = s.do(t, http.MethodGet, "/api/v1/meetings?view=day&date=2030-03-04&timezone=UTC", "alice@example.com", nil)
	expectStatus(t, rw, http.StatusOK)
	list := decodeBody[[]meetingView](t, rw)
	if len(list) != 1 || list[0].Title != "Offsite" {
		t.Fatalf("unexpected list %+v", list)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/v1/meetings/import", "", ics), http.StatusUnauthorized)
}

func TestHugeDurationIsRejected(t *testing.T) {
	s := newTestServer(t)
	body := `{"participant_emails":["bob@example.com"],"range_start":"2030-03-04T14:00:00Z",` +
		`"range_end":"2030-03-04T22:00:00Z","duration_minutes":9007199254741022}`
	rw := s.do(t, http.MethodPost, "/api/v1/availability/slots", "alice@example.com", body)
	expectStatus(t, rw, http.StatusBadRequest)
	if got := decodeBody[errorResponse](t, rw); got.Error != "validation_failed" {
		t.Fatalf("unexpected error body %+v", got)
	}
}

func TestMalformedAvailabilityIsRejectedBeforeStoreAccess(t *testing.T) {
	s := newTestServer(t)
	s.store.SetHook(func(op, key string) error {
		return errors.New("store unavailable")
	})

	rw := s.do(t, http.MethodPost, "/api/v1/availability/check", "alice@example.com", map[string]any{
		"start_time":         "2030-03-04T15:00:00Z",
		"end_time":           "2030-03-04T16:00:00Z",
		"participant_emails": []string{},
	})
	expectStatus(t, rw, http.StatusBadRequest)

	rw = s.do(t, http.MethodPost, "/api/v1/availability/slots", "alice@example.com", map[string]any{
		"participant_emails": []string{"bob@example.com"},
		"range_start":        "2030-03-04T22:00:00Z",
		"range_end":          "2030-03-04T14:00:00Z",
		"duration_minutes":   60,
	})
	expectStatus(t, rw, http.StatusBadRequest)

	// A well-formed request does reach the store.
	rw = s.do(t, http.MethodPost, "/api/v1/availability/check", "alice@example.com", map[string]any{
		"start_time":         "2030-03-04T15:00:00Z",
		"end_time":           "2030-03-04T16:00:00Z",
		"participant_emails": []string{"bob@example.com"},
	})
	expectStatus(t, rw, http.StatusInternalServerError)
}
