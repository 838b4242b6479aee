// Package access holds the caller identity threaded through every operation and the two
// capability checks built on it.
package access

import (
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
)

// Actor is the optional caller. The zero value is anonymous.
type Actor struct {
	person model.Person
	ok     bool
}

func Anonymous() Actor { return Actor{} }

func Authenticated(p model.Person) Actor {
	p.Email = model.NormalizeEmail(p.Email)
	return Actor{person: p, ok: true}
}

// Person returns the caller and whether there is one.
func (a Actor) Person() (model.Person, bool) { return a.person, a.ok }

func (a Actor) IsAuthenticated() bool { return a.ok }

// Timezone is the caller's zone, empty when anonymous.
func (a Actor) Timezone() string {
	if !a.ok {
		return ""
	}
	return a.person.Timezone
}

// CanOrganize reports whether the actor owns the meeting.
func CanOrganize(a Actor, m model.Meeting) bool {
	return a.ok && a.person.ID != "" && a.person.ID == m.OrganizerID
}

// IsRecipient reports whether the invitation is addressed to the actor.
func IsRecipient(a Actor, inv model.Invitation) bool {
	return a.ok && a.person.Email != "" && a.person.Email == model.NormalizeEmail(inv.Recipient)
}
