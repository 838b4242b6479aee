package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/timeutil"
)

type respondRequest struct {
	Status        string  `json:"status"`
	Note          string  `json:"note"`
	ProposedStart *string `json:"proposed_start"`
	ProposedEnd   *string `json:"proposed_end"`
}

type rejectProposalRequest struct {
	Note string `json:"note"`
}

func (a *API) MyInvitations(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	invs, err := a.invitations.ListMine(r.Context(), actor, r.URL.Query().Get("status"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvitationViews(invs, timeutil.ZoneOrUTC(viewerZone(r, actor))))
}

func (a *API) GetInvitation(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	inv, err := a.invitations.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvitationView(inv, timeutil.ZoneOrUTC(viewerZone(r, actor))))
}

func (a *API) RespondToInvitation(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decode(r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}
	start, err := parseOptionalTime("proposed_start", req.ProposedStart)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	end, err := parseOptionalTime("proposed_end", req.ProposedEnd)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp, err := model.ParseResponse(req.Status, req.Note, start, end)
	if err != nil {
		a.writeError(w, r, apperr.ValidationErr(err))
		return
	}
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	inv, err := a.invitations.Respond(r.Context(), actor, r.PathValue("id"), resp)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvitationView(inv, timeutil.ZoneOrUTC(viewerZone(r, actor))))
}

func (a *API) AcceptProposal(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	m, err := a.invitations.AcceptProposal(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMeetingView(m, viewerZone(r, actor)))
}

func (a *API) RejectProposal(w http.ResponseWriter, r *http.Request) {
	var req rejectProposalRequest
	if err := decode(r, &req, true); err != nil {
		a.writeError(w, r, err)
		return
	}
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	inv, err := a.invitations.RejectProposal(r.Context(), actor, r.PathValue("id"), req.Note)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvitationView(inv, timeutil.ZoneOrUTC(viewerZone(r, actor))))
}

func (a *API) MeetingInvitations(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	invs, err := a.invitations.ForMeeting(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvitationViews(invs, timeutil.ZoneOrUTC(viewerZone(r, actor))))
}

func (a *API) MeetingProposals(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	invs, err := a.invitations.Proposals(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvitationViews(invs, timeutil.ZoneOrUTC(viewerZone(r, actor))))
}

func (a *API) InvitationSummary(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	summary, err := a.invitations.Summary(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
