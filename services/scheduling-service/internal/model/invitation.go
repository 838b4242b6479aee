package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAccepted   Status = "ACCEPTED"
	StatusDeclined   Status = "DECLINED"
	StatusProposed   Status = "PROPOSED"
	StatusSuperseded Status = "SUPERSEDED"
	StatusCancelled  Status = "CANCELLED"
)

const DefaultRejectionNote = "Proposal rejected by organizer"

const maxNoteLength = 500

var (
	ErrUnknownStatus     = errors.New("unknown invitation status")
	ErrProposalFields    = errors.New("proposed_start and proposed_end are only allowed with PROPOSED")
	ErrProposalMissing   = errors.New("PROPOSED requires proposed_start and proposed_end")
	ErrProposalRange     = errors.New("proposed_end must be after proposed_start")
	ErrNoteTooLong       = fmt.Errorf("note must be at most %d characters", maxNoteLength)
	ErrInvalidTransition = errors.New("invalid invitation transition")
)

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusAccepted, StatusDeclined, StatusProposed, StatusSuperseded, StatusCancelled:
		return st, nil
	}
	return "", ErrUnknownStatus
}

// TimeRange is a proposed [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

type Invitation struct {
	ID          string
	MeetingID   string
	Recipient   string
	Status      Status
	Proposal    *TimeRange
	Note        string
	RespondedAt *time.Time
	RemindedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks that the proposal is present exactly in PROPOSED and well ordered.
func (inv Invitation) Validate() error {
	if inv.Status == StatusProposed {
		if inv.Proposal == nil {
			return ErrProposalMissing
		}
		if !inv.Proposal.End.After(inv.Proposal.Start) {
			return ErrProposalRange
		}
		return nil
	}
	if inv.Proposal != nil {
		return ErrProposalFields
	}
	return nil
}

// Response is what an invitee can answer. The variants are Accept, Decline and Propose;
// only Propose carries a time range.
type Response interface {
	status() Status
}

type Accept struct{ Note string }

type Decline struct{ Note string }

type Propose struct {
	Note string
	TimeRange
}

func (Accept) status() Status  { return StatusAccepted }
func (Decline) status() Status { return StatusDeclined }
func (Propose) status() Status { return StatusProposed }

// ResponseStatus is the status a response moves an invitation to.
func ResponseStatus(r Response) Status { return r.status() }

// ParseResponse builds a Response from loosely typed input. Proposal fields are
// rejected unless status is PROPOSED, where both are required and must be ordered.
func ParseResponse(status, note string, proposedStart, proposedEnd *time.Time) (Response, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	if len([]rune(note)) > maxNoteLength {
		return nil, ErrNoteTooLong
	}
	hasProposal := proposedStart != nil || proposedEnd != nil

	switch st {
	case StatusAccepted:
		if hasProposal {
			return nil, ErrProposalFields
		}
		return Accept{Note: note}, nil
	case StatusDeclined:
		if hasProposal {
			return nil, ErrProposalFields
		}
		return Decline{Note: note}, nil
	case StatusProposed:
		if proposedStart == nil || proposedEnd == nil {
			return nil, ErrProposalMissing
		}
		if !proposedEnd.After(*proposedStart) {
			return nil, ErrProposalRange
		}
		return Propose{Note: note, TimeRange: TimeRange{Start: proposedStart.UTC(), End: proposedEnd.UTC()}}, nil
	default:
		return nil, fmt.Errorf("%w: invitees may only answer ACCEPTED, DECLINED or PROPOSED", ErrUnknownStatus)
	}
}

// ValidateNote bounds a free-text response note.
func ValidateNote(note string) error {
	if len([]rune(strings.TrimSpace(note))) > maxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

func transitionError(from Status, action string) error {
	return fmt.Errorf("%w: cannot %s an invitation in %s", ErrInvalidTransition, action, from)
}

// Respond applies an invitee answer. Only PENDING invitations can be answered.
func (inv *Invitation) Respond(r Response, now time.Time) error {
	if inv.Status != StatusPending {
		return transitionError(inv.Status, "respond to")
	}
	switch v := r.(type) {
	case Accept:
		inv.Proposal = nil
		inv.Note = v.Note
	case Decline:
		inv.Proposal = nil
		inv.Note = v.Note
	case Propose:
		tr := v.TimeRange
		inv.Proposal = &tr
		inv.Note = v.Note
	default:
		return ErrUnknownStatus
	}
	inv.Status = r.status()
	inv.RespondedAt = &now
	return nil
}

// AcceptProposal marks a PROPOSED invitation accepted and returns the proposed range,
// which the caller copies onto the meeting.
func (inv *Invitation) AcceptProposal(now time.Time) (TimeRange, error) {
	if inv.Status != StatusProposed || inv.Proposal == nil {
		return TimeRange{}, transitionError(inv.Status, "accept the proposal of")
	}
	tr := *inv.Proposal
	inv.Status = StatusAccepted
	inv.Proposal = nil
	inv.RespondedAt = &now
	return tr, nil
}

// RejectProposal declines a PROPOSED invitation. An empty note gets the default text.
func (inv *Invitation) RejectProposal(note string, now time.Time) error {
	if inv.Status != StatusProposed {
		return transitionError(inv.Status, "reject the proposal of")
	}
	note = strings.TrimSpace(note)
	if note == "" {
		note = DefaultRejectionNote
	}
	if len([]rune(note)) > maxNoteLength {
		return ErrNoteTooLong
	}
	inv.Status = StatusDeclined
	inv.Proposal = nil
	inv.Note = note
	inv.RespondedAt = &now
	return nil
}

// Supersede retires a competing proposal. It reports false for invitations that are
// not PROPOSED, which are left untouched.
func (inv *Invitation) Supersede() bool {
	if inv.Status != StatusProposed {
		return false
	}
	inv.Status = StatusSuperseded
	inv.Proposal = nil
	return true
}

// Cancel is driven by meeting deletion. It reports false when already cancelled.
func (inv *Invitation) Cancel() bool {
	if inv.Status == StatusCancelled {
		return false
	}
	inv.Status = StatusCancelled
	inv.Proposal = nil
	return true
}
