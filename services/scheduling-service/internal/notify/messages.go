package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/timeutil"
)

// sequence grows with every change to the meeting, as iCalendar SEQUENCE must.
func sequence(m model.Meeting, at time.Time) int {
	if at.Before(m.CreatedAt) || m.CreatedAt.IsZero() {
		return 0
	}
	return int(at.Sub(m.CreatedAt) / time.Second)
}

func calendar(m model.Meeting, attendee, method string, seq int) *Calendar {
	return &Calendar{
		UID:         m.ID + "@huddle",
		Method:      method,
		Sequence:    seq,
		Title:       m.Title,
		Description: m.Description,
		Location:    m.Location,
		URL:         m.ConferenceLink,
		Start:       m.Start.UTC(),
		End:         m.End.UTC(),
		Organizer:   m.OrganizerEmail,
		Attendee:    attendee,
	}
}

func when(start, end time.Time, zone string) string {
	loc := timeutil.ZoneOrUTC(zone)
	s, e := timeutil.ToLocal(start, loc), timeutil.ToLocal(end, loc)
	return fmt.Sprintf("%s to %s (%s)", s.Format("Mon Jan 2 2006 15:04 MST"), e.Format("15:04 MST"), loc.String())
}

func details(m model.Meeting) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nWhen: %s\nOrganizer: %s\n", m.Title, when(m.Start, m.End, m.Timezone), m.OrganizerEmail)
	if m.Location != "" {
		fmt.Fprintf(&b, "Where: %s\n", m.Location)
	}
	if m.ConferenceLink != "" {
		fmt.Fprintf(&b, "Join: %s\n", m.ConferenceLink)
	}
	if m.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", m.Description)
	}
	return b.String()
}

func InvitationCreated(m model.Meeting, inv model.Invitation) Notice {
	return Notice{
		Kind:         KindInvitationCreated,
		MeetingID:    m.ID,
		InvitationID: inv.ID,
		Recipient:    inv.Recipient,
		Subject:      "Invitation: " + m.Title,
		Body:         "You have been invited.\n\n" + details(m),
		Calendar:     calendar(m, inv.Recipient, MethodRequest, 0),
	}
}

var responseVerb = map[model.Status]string{
	model.StatusAccepted: "Accepted",
	model.StatusDeclined: "Declined",
	model.StatusProposed: "New time proposed",
}

// InvitationResponded goes to the organizer.
func InvitationResponded(m model.Meeting, inv model.Invitation) Notice {
	body := fmt.Sprintf("%s answered %s.\n", inv.Recipient, inv.Status)
	if inv.Status == model.StatusProposed && inv.Proposal != nil {
		body += "Proposed time: " + when(inv.Proposal.Start, inv.Proposal.End, m.Timezone) + "\n"
	}
	if inv.Note != "" {
		body += "Note: " + inv.Note + "\n"
	}
	return Notice{
		Kind:         KindInvitationResponded,
		MeetingID:    m.ID,
		InvitationID: inv.ID,
		Recipient:    m.OrganizerEmail,
		Subject:      fmt.Sprintf("%s: %s", responseVerb[inv.Status], m.Title),
		Body:         body + "\n" + details(m),
	}
}

func MeetingUpdated(m model.Meeting, inv model.Invitation, at time.Time) Notice {
	return Notice{
		Kind:         KindMeetingUpdated,
		MeetingID:    m.ID,
		InvitationID: inv.ID,
		Recipient:    inv.Recipient,
		Subject:      "Updated: " + m.Title,
		Body:         "The meeting was updated.\n\n" + details(m),
		Calendar:     calendar(m, inv.Recipient, MethodRequest, sequence(m, at)),
	}
}

// MeetingRescheduled announces a time taken from an accepted proposal.
func MeetingRescheduled(m model.Meeting, inv model.Invitation, at time.Time) Notice {
	return Notice{
		Kind:         KindMeetingRescheduled,
		MeetingID:    m.ID,
		InvitationID: inv.ID,
		Recipient:    inv.Recipient,
		Subject:      "Rescheduled: " + m.Title,
		Body:         "The organizer accepted a proposed time.\n\n" + details(m),
		Calendar:     calendar(m, inv.Recipient, MethodRequest, sequence(m, at)),
	}
}

func ProposalSuperseded(m model.Meeting, inv model.Invitation) Notice {
	return Notice{
		Kind:         KindProposalSuperseded,
		MeetingID:    m.ID,
		InvitationID: inv.ID,
		Recipient:    inv.Recipient,
		Subject:      "Proposal closed: " + m.Title,
		Body:         "Another proposed time was accepted, so yours was withdrawn.\n\n" + details(m),
	}
}

func ProposalRejected(m model.Meeting, inv model.Invitation) Notice {
	return Notice{
		Kind:         KindProposalRejected,
		MeetingID:    m.ID,
		InvitationID: inv.ID,
		Recipient:    inv.Recipient,
		Subject:      "Proposal declined: " + m.Title,
		Body:         fmt.Sprintf("The organizer declined your proposed time.\nNote: %s\n\n%s", inv.Note, details(m)),
	}
}

func MeetingCancelled(m model.Meeting, inv model.Invitation, at time.Time) Notice {
	return Notice{
		Kind:         KindMeetingCancelled,
		MeetingID:    m.ID,
		InvitationID: inv.ID,
		Recipient:    inv.Recipient,
		Subject:      "Cancelled: " + m.Title,
		Body:         "The meeting was cancelled.\n\n" + details(m),
		Calendar:     calendar(m, inv.Recipient, MethodCancel, sequence(m, at)),
	}
}

func Reminder(m model.Meeting, inv model.Invitation) Notice {
	return Notice{
		Kind:         KindInvitationReminder,
		MeetingID:    m.ID,
		InvitationID: inv.ID,
		Recipient:    inv.Recipient,
		Subject:      "Starting soon: " + m.Title,
		Body:         "You have not answered this invitation and it starts soon.\n\n" + details(m),
	}
}
