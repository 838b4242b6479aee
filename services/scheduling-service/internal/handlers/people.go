package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/people"
)

type updateMeRequest struct {
	DisplayName *string `json:"display_name"`
	Timezone    *string `json:"timezone"`
}

func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.people.Me(r.Context(), actor)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonView(p))
}

func (a *API) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := decode(r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.people.UpdateProfile(r.Context(), actor, people.ProfileUpdate{
		DisplayName: req.DisplayName,
		Timezone:    req.Timezone,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonView(p))
}
