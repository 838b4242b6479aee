package handlers

import (
	"time"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/timeutil"
)

type personView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
}

func toPersonView(p model.Person) personView {
	return personView{ID: p.ID, Email: p.Email, DisplayName: p.DisplayName, Timezone: p.Timezone}
}

type invitationView struct {
	ID            string  `json:"id"`
	MeetingID     string  `json:"meeting_id"`
	Recipient     string  `json:"recipient_email"`
	Status        string  `json:"status"`
	Note          string  `json:"note,omitempty"`
	ProposedStart *string `json:"proposed_start,omitempty"`
	ProposedEnd   *string `json:"proposed_end,omitempty"`
	RespondedAt   *string `json:"responded_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func localized(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := timeutil.FormatISO(*t, loc)
	return &s
}

func toInvitationView(inv model.Invitation, loc *time.Location) invitationView {
	v := invitationView{
		ID:          inv.ID,
		MeetingID:   inv.MeetingID,
		Recipient:   inv.Recipient,
		Status:      string(inv.Status),
		Note:        inv.Note,
		RespondedAt: localized(inv.RespondedAt, loc),
		CreatedAt:   timeutil.FormatISO(inv.CreatedAt, loc),
		UpdatedAt:   timeutil.FormatISO(inv.UpdatedAt, loc),
	}
	if inv.Proposal != nil {
		v.ProposedStart = localized(&inv.Proposal.Start, loc)
		v.ProposedEnd = localized(&inv.Proposal.End, loc)
	}
	return v
}

func toInvitationViews(invs []model.Invitation, loc *time.Location) []invitationView {
	out := make([]invitationView, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInvitationView(inv, loc))
	}
	return out
}

type meetingView struct {
	ID             string           `json:"id"`
	OrganizerEmail string           `json:"organizer_email"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Location       string           `json:"location,omitempty"`
	ConferenceLink string           `json:"conference_link,omitempty"`
	Start          string           `json:"start_time"`
	End            string           `json:"end_time"`
	Timezone       string           `json:"timezone"`
	ViewerTimezone string           `json:"viewer_timezone"`
	Recurrence     string           `json:"recurrence,omitempty"`
	Invitations    []invitationView `json:"invitations,omitempty"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
}

func toMeetingView(m model.Meeting, zone string) meetingView {
	loc := timeutil.ZoneOrUTC(zone)
	return meetingView{
		ID:             m.ID,
		OrganizerEmail: m.OrganizerEmail,
		Title:          m.Title,
		Description:    m.Description,
		Location:       m.Location,
		ConferenceLink: m.ConferenceLink,
		Start:          timeutil.FormatISO(m.Start, loc),
		End:            timeutil.FormatISO(m.End, loc),
		Timezone:       m.Timezone,
		ViewerTimezone: zone,
		Recurrence:     m.Recurrence,
		CreatedAt:      timeutil.FormatISO(m.CreatedAt, loc),
		UpdatedAt:      timeutil.FormatISO(m.UpdatedAt, loc),
	}
}

type slotView struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Score float64 `json:"score"`
}

type slotsResponse struct {
	Slots      []slotView `json:"slots"`
	Timezone   string     `json:"timezone"`
	Unknown    []string   `json:"unknown_participants"`
	Unresolved []string   `json:"unresolved_participants"`
}

func toSlotsResponse(res availability.SlotResult) slotsResponse {
	loc := timeutil.ZoneOrUTC(res.Timezone)
	out := slotsResponse{
		Slots:      make([]slotView, 0, len(res.Slots)),
		Timezone:   res.Timezone,
		Unknown:    nonNil(res.Unknown),
		Unresolved: nonNil(res.Unresolved),
	}
	for _, s := range res.Slots {
		out.Slots = append(out.Slots, slotView{
			Start: timeutil.FormatISO(s.Start, loc),
			End:   timeutil.FormatISO(s.End, loc),
			Score: s.Score,
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type collaboratorView struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
	Invites     int    `json:"invites"`
}
