package reminders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage/memstore"
)

var now = time.Date(2025, 3, 3, 14, 55, 0, 0, time.UTC)

func setup(t *testing.T) (*memstore.Store, *notify.Recorder, *Worker) {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	org, err := store.EnsurePerson(ctx, model.Person{Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("EnsurePerson failed: %v", err)
	}
	meetings := map[string]time.Time{
		"soon":  now.Add(5 * time.Minute),
		"later": now.Add(time.Hour),
		"past":  now.Add(-5 * time.Minute),
	}
	for id, start := range meetings {
		if err := store.InsertMeeting(ctx, model.Meeting{ID: id, OrganizerID: org.ID, Title: id, Start: start, End: start.Add(time.Hour)}); err != nil {
			t.Fatalf("InsertMeeting failed: %v", err)
		}
		if err := store.InsertInvitation(ctx, model.Invitation{ID: "pending-" + id, MeetingID: id, Recipient: "bob@example.com", Status: model.StatusPending}); err != nil {
			t.Fatalf("InsertInvitation failed: %v", err)
		}
	}
	if err := store.InsertInvitation(ctx, model.Invitation{ID: "accepted-soon", MeetingID: "soon", Recipient: "carol@example.com", Status: model.StatusAccepted}); err != nil {
		t.Fatalf("InsertInvitation failed: %v", err)
	}

	rec := &notify.Recorder{}
	w := NewWorker(store, rec, slog.New(slog.NewTextHandler(io.Discard, nil)), WorkerConfig{})
	w.now = func() time.Time { return now }
	return store, rec, w
}

func TestRunOnceRemindsPendingInvitationsOnce(t *testing.T) {
	_, rec, w := setup(t)

	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reminder, got %d", n)
	}
	notices := rec.Notices()
	if len(notices) != 1 || notices[0].InvitationID != "pending-soon" || notices[0].Kind != notify.KindInvitationReminder {
		t.Fatalf("unexpected notices %+v", notices)
	}

	n, err = w.RunOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("second run must remind nobody, got %d (%v)", n, err)
	}
	if len(rec.Notices()) != 1 {
		t.Fatalf("reminder sent twice: %+v", rec.Notices())
	}
}

func TestRunOnceRetriesWhenQueueingFails(t *testing.T) {
	store, rec, w := setup(t)
	rec.Err = errors.New("outbox unavailable")

	if _, err := w.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	inv, _ := store.GetInvitation(context.Background(), "pending-soon")
	if inv.RemindedAt != nil {
		t.Fatal("a failed batch must not be stamped")
	}

	rec.Err = nil
	if n, err := w.RunOnce(context.Background()); err != nil || n != 1 {
		t.Fatalf("expected retry to remind 1, got %d (%v)", n, err)
	}
}

func TestRunOnceQueuesNothingWhenStampFails(t *testing.T) {
	store, rec, w := setup(t)
	store.SetHook(func(op, _ string) error {
		if op == "MarkReminded" {
			return errors.New("stamp failed")
		}
		return nil
	})

	if _, err := w.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(rec.Notices()) != 0 {
		t.Fatalf("a failed stamp must not queue reminders: %+v", rec.Notices())
	}

	store.SetHook(nil)
	if n, err := w.RunOnce(context.Background()); err != nil || n != 1 {
		t.Fatalf("expected retry to remind 1, got %d (%v)", n, err)
	}
	if n, err := w.RunOnce(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected nothing left, got %d (%v)", n, err)
	}
	if got := len(rec.Notices()); got != 1 {
		t.Fatalf("expected exactly one reminder, got %d", got)
	}
}
