package access

import (
	"testing"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
)

func TestPredicates(t *testing.T) {
	organizer := Authenticated(model.Person{ID: "p1", Email: "Org@Example.com"})
	guest := Authenticated(model.Person{ID: "p2", Email: "guest@example.com"})
	anon := Anonymous()

	m := model.Meeting{ID: "m1", OrganizerID: "p1"}
	inv := model.Invitation{ID: "i1", MeetingID: "m1", Recipient: "GUEST@example.com"}

	if !CanOrganize(organizer, m) || CanOrganize(guest, m) || CanOrganize(anon, m) {
		t.Fatal("unexpected CanOrganize result")
	}
	if !IsRecipient(guest, inv) || IsRecipient(organizer, inv) || IsRecipient(anon, inv) {
		t.Fatal("unexpected IsRecipient result")
	}
	if CanOrganize(anon, model.Meeting{}) {
		t.Fatal("anonymous actor must not match an empty organizer id")
	}
	if p, ok := organizer.Person(); !ok || p.Email != "org@example.com" {
		t.Fatalf("expected normalized email, got %+v", p)
	}
}
