// Package people maps verified identities onto stored people and serves the
// self-service profile.
package people

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/access"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/timeutil"
)

const maxDisplayNameLength = 200

// Identity is what a verified token says about its holder.
type Identity struct {
	Email    string
	Name     string
	Timezone string
}

type Service struct {
	store storage.Queries
}

func NewService(store storage.Queries) *Service {
	return &Service{store: store}
}

// Resolve returns the authenticated actor for id, creating the person on first sight.
// Email matching is case-insensitive.
func (s *Service) Resolve(ctx context.Context, id Identity) (access.Actor, error) {
	email := model.NormalizeEmail(id.Email)
	if !model.LooksLikeEmail(email) {
		return access.Anonymous(), apperr.Unauthenticated()
	}
	p, err := s.store.EnsurePerson(ctx, model.Person{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: strings.TrimSpace(id.Name),
		Timezone:    timeutil.SanitizeZone(id.Timezone, ""),
	})
	if err != nil {
		return access.Anonymous(), apperr.FromStore("resolve person", "person", err)
	}
	return access.Authenticated(p), nil
}

func (s *Service) Me(ctx context.Context, actor access.Actor) (model.Person, error) {
	p, ok := actor.Person()
	if !ok {
		return model.Person{}, apperr.Unauthenticated()
	}
	return p, nil
}

type ProfileUpdate struct {
	DisplayName *string
	Timezone    *string
}

// UpdateProfile changes the actor's own display name and timezone. An unknown zone is
// rejected rather than sanitized.
func (s *Service) UpdateProfile(ctx context.Context, actor access.Actor, in ProfileUpdate) (model.Person, error) {
	if in.Timezone != nil && !timeutil.IsValidZone(*in.Timezone) {
		return model.Person{}, apperr.Validation("invalid timezone %q", *in.Timezone)
	}
	if in.DisplayName != nil && len([]rune(strings.TrimSpace(*in.DisplayName))) > maxDisplayNameLength {
		return model.Person{}, apperr.Validation("display_name must be at most %d characters", maxDisplayNameLength)
	}
	p, ok := actor.Person()
	if !ok {
		return model.Person{}, apperr.Unauthenticated()
	}
	if in.DisplayName != nil {
		p.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.Timezone != nil {
		p.Timezone = strings.TrimSpace(*in.Timezone)
	}
	out, err := s.store.UpdatePerson(ctx, p)
	if err != nil {
		return model.Person{}, apperr.FromStore("update profile", "person", err)
	}
	return out, nil
}
