package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/access"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/meetings"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/timeutil"
)

type createMeetingRequest struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Location          string   `json:"location"`
	ConferenceLink    string   `json:"conference_link"`
	StartTime         string   `json:"start_time"`
	EndTime           string   `json:"end_time"`
	Timezone          string   `json:"timezone"`
	Recurrence        string   `json:"recurrence"`
	ParticipantEmails []string `json:"participant_emails"`
}

type updateMeetingRequest struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	Location       *string `json:"location"`
	ConferenceLink *string `json:"conference_link"`
	StartTime      *string `json:"start_time"`
	EndTime        *string `json:"end_time"`
	Timezone       *string `json:"timezone"`
	Recurrence     *string `json:"recurrence"`
}

func viewerZone(r *http.Request, actor access.Actor) string {
	return meetings.ViewerZone(r.URL.Query().Get("timezone"), actor)
}

func (a *API) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req createMeetingRequest
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
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	m, invs, err := a.meetings.Create(r.Context(), actor, meetings.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		ConferenceLink: req.ConferenceLink,
		Start:          start,
		End:            end,
		Timezone:       req.Timezone,
		Recurrence:     req.Recurrence,
		Participants:   req.ParticipantEmails,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	zone := viewerZone(r, actor)
	view := toMeetingView(m, zone)
	view.Invitations = toInvitationViews(invs, timeutil.ZoneOrUTC(zone))
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) GetMeeting(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	m, invs, err := a.meetings.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	zone := viewerZone(r, actor)
	view := toMeetingView(m, zone)
	view.Invitations = toInvitationViews(invs, timeutil.ZoneOrUTC(zone))
	writeJSON(w, http.StatusOK, view)
}

func (a *API) UpdateMeeting(w http.ResponseWriter, r *http.Request) {
	var req updateMeetingRequest
	if err := decode(r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}
	start, err := parseOptionalTime("start_time", req.StartTime)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	end, err := parseOptionalTime("end_time", req.EndTime)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	m, err := a.meetings.Update(r.Context(), actor, r.PathValue("id"), meetings.UpdateInput{
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		ConferenceLink: req.ConferenceLink,
		Start:          start,
		End:            end,
		Timezone:       req.Timezone,
		Recurrence:     req.Recurrence,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMeetingView(m, viewerZone(r, actor)))
}

func (a *API) DeleteMeeting(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.meetings.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listQuery reads view, date, start, end, timezone and include_accepted. A date is a
// calendar day in the requested zone; start and end are instants.
func listQuery(r *http.Request, actor access.Actor) (meetings.ListQuery, error) {
	q := r.URL.Query()
	lq := meetings.ListQuery{
		View:     meetings.View(strings.ToLower(strings.TrimSpace(q.Get("view")))),
		Timezone: q.Get("timezone"),
	}
	if raw := q.Get("include_accepted"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return lq, apperr.Validation("include_accepted must be a boolean")
		}
		lq.IncludeAccepted = b
	}
	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		loc := timeutil.ZoneOrUTC(timeutil.SanitizeZone(lq.Timezone, actor.Timezone()))
		d, err := time.ParseInLocation(time.DateOnly, raw, loc)
		if err != nil {
			return lq, apperr.Validation("invalid date, expected YYYY-MM-DD")
		}
		lq.Date = d
	}
	if raw := q.Get("start"); raw != "" {
		t, err := parseTime("start", raw)
		if err != nil {
			return lq, err
		}
		lq.Start = t
	}
	if raw := q.Get("end"); raw != "" {
		t, err := parseTime("end", raw)
		if err != nil {
			return lq, err
		}
		lq.End = t
	}
	return lq, nil
}

func (a *API) ListMeetings(w http.ResponseWriter, r *http.Request) {
	actor, err := a.actor(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	lq, err := listQuery(r, actor)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	list, err := a.meetings.List(r.Context(), actor, lq)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	zone := viewerZone(r, actor)
	out := make([]meetingView, 0, len(list))
	for _, m := range list {
		out = append(out, toMeetingView(m, zone))
	}
	writeJSON(w, http.StatusOK, out)
}
