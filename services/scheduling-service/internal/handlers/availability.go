package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/availability"
)

type checkAvailabilityRequest struct {
	StartTime         string   `json:"start_time"`
	EndTime           string   `json:"end_time"`
	ParticipantEmails []string `json:"participant_emails"`
}

type findSlotsRequest struct {
	ParticipantEmails []string `json:"participant_emails"`
	RangeStart        string   `json:"range_start"`
	RangeEnd          string   `json:"range_end"`
	DurationMinutes   int      `json:"duration_minutes"`
	Timezone          string   `json:"timezone"`
}

func (a *API) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req checkAvailabilityRequest
	if err := decode(r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}
	start, err := parseTime("start_time", req.StartTime)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	end, err := parseTime("end_time", req.EndTime)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := availability.ValidateCheck(start, end, req.ParticipantEmails); err != nil {
		a.writeError(w, r, err)
		return
	}
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.engine.CheckAvailability(r.Context(), actor, start, end, req.ParticipantEmails)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) FindSlots(w http.ResponseWriter, r *http.Request) {
	var req findSlotsRequest
	if err := decode(r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}
	start, err := parseTime("range_start", req.RangeStart)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	end, err := parseTime("range_end", req.RangeEnd)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	duration, err := availability.DurationFromMinutes(req.DurationMinutes)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	slotReq := availability.SlotRequest{
		Participants: req.ParticipantEmails,
		RangeStart:   start,
		RangeEnd:     end,
		Duration:     duration,
		Timezone:     req.Timezone,
	}
	if err := slotReq.Validate(); err != nil {
		a.writeError(w, r, err)
		return
	}
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.engine.FindSlots(r.Context(), actor, slotReq)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if res.Empty() {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:      "no_common_slot",
			Message:    "no common slot found in the requested range",
			Unresolved: res.Unresolved,
		})
		return
	}
	writeJSON(w, http.StatusOK, toSlotsResponse(res))
}

func (a *API) Collaborators(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.writeError(w, r, apperr.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	list, err := a.meetings.Collaborators(r.Context(), actor, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := make([]collaboratorView, 0, len(list))
	for _, c := range list {
		out = append(out, collaboratorView{Email: c.Email, DisplayName: c.DisplayName, Timezone: c.Timezone, Invites: c.Invites})
	}
	writeJSON(w, http.StatusOK, out)
}
