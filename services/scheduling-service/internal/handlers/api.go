// Package handlers binds the scheduling operations to HTTP.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/huddle/libs/httpx"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/access"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/icsimport"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/invitations"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/meetings"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/people"
)

type API struct {
	engine      *availability.Engine
	meetings    *meetings.Service
	invitations *invitations.Service
	people      *people.Service
	importer    *icsimport.Service
	logger      *slog.Logger
}

func NewAPI(engine *availability.Engine, meetingSvc *meetings.Service, invitationSvc *invitations.Service, peopleSvc *people.Service, importer *icsimport.Service, logger *slog.Logger) *API {
	return &API{
		engine:      engine,
		meetings:    meetingSvc,
		invitations: invitationSvc,
		people:      peopleSvc,
		importer:    importer,
		logger:      logger,
	}
}

// Register mounts every route on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/availability/check", a.CheckAvailability)
	mux.HandleFunc("POST /api/v1/availability/slots", a.FindSlots)
	mux.HandleFunc("GET /api/v1/availability/collaborators", a.Collaborators)

	mux.HandleFunc("POST /api/v1/meetings", a.CreateMeeting)
	mux.HandleFunc("GET /api/v1/meetings", a.ListMeetings)
	mux.HandleFunc("POST /api/v1/meetings/import", a.ImportCalendar)
	mux.HandleFunc("GET /api/v1/meetings/{id}", a.GetMeeting)
	mux.HandleFunc("PUT /api/v1/meetings/{id}", a.UpdateMeeting)
	mux.HandleFunc("DELETE /api/v1/meetings/{id}", a.DeleteMeeting)
	mux.HandleFunc("GET /api/v1/meetings/{id}/invitations", a.MeetingInvitations)
	mux.HandleFunc("GET /api/v1/meetings/{id}/invitations/summary", a.InvitationSummary)
	mux.HandleFunc("GET /api/v1/meetings/{id}/proposals", a.MeetingProposals)

	mux.HandleFunc("GET /api/v1/invitations", a.MyInvitations)
	mux.HandleFunc("GET /api/v1/invitations/{id}", a.GetInvitation)
	mux.HandleFunc("PATCH /api/v1/invitations/{id}", a.RespondToInvitation)
	mux.HandleFunc("POST /api/v1/invitations/{id}/accept-proposal", a.AcceptProposal)
	mux.HandleFunc("POST /api/v1/invitations/{id}/reject-proposal", a.RejectProposal)

	mux.HandleFunc("GET /api/v1/me", a.Me)
	mux.HandleFunc("PATCH /api/v1/me", a.UpdateMe)
}

// actor resolves the verified caller to a person, or returns the anonymous actor.
// Services decide whether anonymous is acceptable.
func (a *API) actor(ctx context.Context) (access.Actor, error) {
	claims := httpx.ClaimsFromContext(ctx)
	if claims == nil {
		return access.Anonymous(), nil
	}
	return a.people.Resolve(ctx, people.Identity{
		Email:    claims.Email,
		Name:     claims.Name,
		Timezone: claims.Zoneinfo,
	})
}
