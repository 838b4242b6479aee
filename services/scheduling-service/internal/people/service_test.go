package people

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/access"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage/memstore"
)

func TestResolveCreatesOnceCaseInsensitive(t *testing.T) {
	svc := NewService(memstore.New())
	ctx := context.Background()

	first, err := svc.Resolve(ctx, Identity{Email: "Ann@Example.com", Name: "Ann", Timezone: "Europe/Berlin"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := svc.Resolve(ctx, Identity{Email: "ann@example.com", Timezone: "Asia/Tokyo"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	p1, _ := first.Person()
	p2, _ := second.Person()
	if p1.ID != p2.ID || p2.Email != "ann@example.com" || p2.Timezone != "Europe/Berlin" {
		t.Fatalf("expected the first person back, got %+v then %+v", p1, p2)
	}

	if _, err := svc.Resolve(ctx, Identity{Email: "not-an-email"}); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestResolveDefaultsInvalidZoneToUTC(t *testing.T) {
	svc := NewService(memstore.New())
	a, err := svc.Resolve(context.Background(), Identity{Email: "bo@example.com", Timezone: "Nowhere/Land"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if a.Timezone() != "UTC" {
		t.Fatalf("expected UTC, got %q", a.Timezone())
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := NewService(memstore.New())
	ctx := context.Background()
	actor, _ := svc.Resolve(ctx, Identity{Email: "ann@example.com"})

	bad := "Nowhere/Land"
	if _, err := svc.UpdateProfile(ctx, actor, ProfileUpdate{Timezone: &bad}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
	zone, name := "America/Chicago", " Ann B "
	p, err := svc.UpdateProfile(ctx, actor, ProfileUpdate{Timezone: &zone, DisplayName: &name})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if p.Timezone != zone || p.DisplayName != "Ann B" {
		t.Fatalf("unexpected person %+v", p)
	}
	if _, err := svc.UpdateProfile(ctx, access.Anonymous(), ProfileUpdate{}); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}
