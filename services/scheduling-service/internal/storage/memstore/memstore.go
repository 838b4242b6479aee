// Package memstore is an in-memory storage.Store for tests and local experiments.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/timeutil"
)

// Hook, when set, runs before every operation with the operation name and its primary
// key argument (an id or email). A non-nil return fails the operation.
type Hook func(op, key string) error

type meetingRow struct {
	model.Meeting
	deletedAt *time.Time
}

type state struct {
	seq         int64
	people      map[string]model.Person
	meetings    map[string]meetingRow
	invitations map[string]model.Invitation
	created     map[string]int64
}

func (s *state) clone() *state {
	c := &state{
		seq:         s.seq,
		people:      make(map[string]model.Person, len(s.people)),
		meetings:    make(map[string]meetingRow, len(s.meetings)),
		invitations: make(map[string]model.Invitation, len(s.invitations)),
		created:     make(map[string]int64, len(s.created)),
	}
	for k, v := range s.people {
		c.people[k] = v
	}
	for k, v := range s.meetings {
		c.meetings[k] = v
	}
	for k, v := range s.invitations {
		if v.Proposal != nil {
			p := *v.Proposal
			v.Proposal = &p
		}
		c.invitations[k] = v
	}
	for k, v := range s.created {
		c.created[k] = v
	}
	return c
}

// Store serializes transactions with one lock, which stands in for row locks.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
	hook Hook
	now  func() time.Time
}

func New() *Store {
	return &Store{
		st: &state{
			people:      map[string]model.Person{},
			meetings:    map[string]meetingRow{},
			invitations: map[string]model.Invitation{},
			created:     map[string]int64{},
		},
		now: time.Now,
	}
}

func (s *Store) SetHook(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

func (s *Store) check(op, key string) error {
	if s.hook == nil {
		return nil
	}
	return s.hook(op, key)
}

func (s *Store) InTx(ctx context.Context, fn func(q storage.Queries) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) nextSeq(id string) {
	s.st.seq++
	s.st.created[id] = s.st.seq
}

func (s *Store) PersonByEmail(_ context.Context, email string) (model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = model.NormalizeEmail(email)
	if err := s.check("PersonByEmail", email); err != nil {
		return model.Person{}, err
	}
	for _, p := range s.st.people {
		if p.Email == email {
			return p, nil
		}
	}
	return model.Person{}, storage.ErrNotFound
}

func (s *Store) PersonByID(_ context.Context, id string) (model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("PersonByID", id); err != nil {
		return model.Person{}, err
	}
	p, ok := s.st.people[id]
	if !ok {
		return model.Person{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) EnsurePerson(_ context.Context, p model.Person) (model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Email = model.NormalizeEmail(p.Email)
	if err := s.check("EnsurePerson", p.Email); err != nil {
		return model.Person{}, err
	}
	for _, existing := range s.st.people {
		if existing.Email == p.Email {
			return existing, nil
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Timezone == "" {
		p.Timezone = timeutil.DefaultZone
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.st.people[p.ID] = p
	s.nextSeq(p.ID)
	return p, nil
}

func (s *Store) UpdatePerson(_ context.Context, p model.Person) (model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("UpdatePerson", p.ID); err != nil {
		return model.Person{}, err
	}
	existing, ok := s.st.people[p.ID]
	if !ok {
		return model.Person{}, storage.ErrNotFound
	}
	existing.DisplayName = p.DisplayName
	existing.Timezone = p.Timezone
	existing.UpdatedAt = s.now()
	s.st.people[p.ID] = existing
	return existing, nil
}

func (s *Store) FrequentCollaborators(_ context.Context, organizerID string, limit int) ([]model.Collaborator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("FrequentCollaborators", organizerID); err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, inv := range s.st.invitations {
		if m, ok := s.st.meetings[inv.MeetingID]; ok && m.OrganizerID == organizerID {
			counts[inv.Recipient]++
		}
	}
	out := make([]model.Collaborator, 0, len(counts))
	for email, n := range counts {
		c := model.Collaborator{Email: email, Invites: n}
		for _, p := range s.st.people {
			if p.Email == email {
				c.DisplayName, c.Timezone = p.DisplayName, p.Timezone
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Invites != out[j].Invites {
			return out[i].Invites > out[j].Invites
		}
		return out[i].Email < out[j].Email
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) withOrganizer(m meetingRow) model.Meeting {
	out := m.Meeting
	if p, ok := s.st.people[m.OrganizerID]; ok {
		out.OrganizerEmail = p.Email
	}
	return out
}

func (s *Store) InsertMeeting(_ context.Context, m model.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("InsertMeeting", m.ID); err != nil {
		return err
	}
	if _, ok := s.st.meetings[m.ID]; ok {
		return storage.ErrConflict
	}
	if _, ok := s.st.people[m.OrganizerID]; !ok {
		return storage.ErrConflict
	}
	if !m.End.After(m.Start) {
		return model.ErrInvalidTimeRange
	}
	now := s.now()
	m.CreatedAt, m.UpdatedAt = now, now
	s.st.meetings[m.ID] = meetingRow{Meeting: m}
	s.nextSeq(m.ID)
	return nil
}

func (s *Store) getMeeting(op, id string) (model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(op, id); err != nil {
		return model.Meeting{}, err
	}
	m, ok := s.st.meetings[id]
	if !ok || m.deletedAt != nil {
		return model.Meeting{}, storage.ErrNotFound
	}
	return s.withOrganizer(m), nil
}

func (s *Store) GetMeeting(_ context.Context, id string) (model.Meeting, error) {
	return s.getMeeting("GetMeeting", id)
}

func (s *Store) GetMeetingForUpdate(_ context.Context, id string) (model.Meeting, error) {
	return s.getMeeting("GetMeetingForUpdate", id)
}

func (s *Store) UpdateMeeting(_ context.Context, m model.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("UpdateMeeting", m.ID); err != nil {
		return err
	}
	row, ok := s.st.meetings[m.ID]
	if !ok || row.deletedAt != nil {
		return storage.ErrNotFound
	}
	if !m.End.After(m.Start) {
		return model.ErrInvalidTimeRange
	}
	m.OrganizerID = row.OrganizerID
	m.CreatedAt = row.CreatedAt
	m.UpdatedAt = s.now()
	s.st.meetings[m.ID] = meetingRow{Meeting: m}
	return nil
}

func (s *Store) DeleteMeeting(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("DeleteMeeting", id); err != nil {
		return err
	}
	row, ok := s.st.meetings[id]
	if !ok || row.deletedAt != nil {
		return storage.ErrNotFound
	}
	row.deletedAt = &at
	s.st.meetings[id] = row
	return nil
}

func (s *Store) sortedMeetings(keep func(meetingRow) bool) []model.Meeting {
	var out []model.Meeting
	for _, m := range s.st.meetings {
		if m.deletedAt == nil && keep(m) {
			out = append(out, s.withOrganizer(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) MeetingsOrganizedBetween(_ context.Context, organizerID string, start, end time.Time) ([]model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("MeetingsOrganizedBetween", organizerID); err != nil {
		return nil, err
	}
	return s.sortedMeetings(func(m meetingRow) bool {
		return m.OrganizerID == organizerID && timeutil.Overlaps(m.Start, m.End, start, end)
	}), nil
}

func (s *Store) MeetingsAcceptedBetween(_ context.Context, email string, start, end time.Time) ([]model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = model.NormalizeEmail(email)
	if err := s.check("MeetingsAcceptedBetween", email); err != nil {
		return nil, err
	}
	accepted := map[string]bool{}
	for _, inv := range s.st.invitations {
		if inv.Recipient == email && inv.Status == model.StatusAccepted {
			accepted[inv.MeetingID] = true
		}
	}
	return s.sortedMeetings(func(m meetingRow) bool {
		return accepted[m.ID] && timeutil.Overlaps(m.Start, m.End, start, end)
	}), nil
}

func (s *Store) InsertInvitation(_ context.Context, inv model.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv.Recipient = model.NormalizeEmail(inv.Recipient)
	if err := s.check("InsertInvitation", inv.Recipient); err != nil {
		return err
	}
	if _, ok := s.st.meetings[inv.MeetingID]; !ok {
		return storage.ErrConflict
	}
	for _, existing := range s.st.invitations {
		if existing.ID == inv.ID || (existing.MeetingID == inv.MeetingID && existing.Recipient == inv.Recipient) {
			return storage.ErrConflict
		}
	}
	if err := inv.Validate(); err != nil {
		return err
	}
	now := s.now()
	inv.CreatedAt, inv.UpdatedAt = now, now
	s.st.invitations[inv.ID] = inv
	s.nextSeq(inv.ID)
	return nil
}

func (s *Store) getInvitation(op, id string) (model.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(op, id); err != nil {
		return model.Invitation{}, err
	}
	inv, ok := s.st.invitations[id]
	if !ok {
		return model.Invitation{}, storage.ErrNotFound
	}
	return inv, nil
}

func (s *Store) GetInvitation(_ context.Context, id string) (model.Invitation, error) {
	return s.getInvitation("GetInvitation", id)
}

func (s *Store) GetInvitationForUpdate(_ context.Context, id string) (model.Invitation, error) {
	return s.getInvitation("GetInvitationForUpdate", id)
}

func (s *Store) UpdateInvitation(_ context.Context, inv model.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("UpdateInvitation", inv.ID); err != nil {
		return err
	}
	existing, ok := s.st.invitations[inv.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if err := inv.Validate(); err != nil {
		return err
	}
	existing.Status = inv.Status
	existing.Proposal = inv.Proposal
	existing.Note = inv.Note
	existing.RespondedAt = inv.RespondedAt
	existing.UpdatedAt = s.now()
	s.st.invitations[inv.ID] = existing
	return nil
}

func (s *Store) sortedInvitations(keep func(model.Invitation) bool, newestFirst bool) []model.Invitation {
	var out []model.Invitation
	for _, inv := range s.st.invitations {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := s.st.created[out[i].ID], s.st.created[out[j].ID]
		if newestFirst {
			return a > b
		}
		return a < b
	})
	return out
}

func (s *Store) InvitationsByMeeting(_ context.Context, meetingID string) ([]model.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("InvitationsByMeeting", meetingID); err != nil {
		return nil, err
	}
	return s.sortedInvitations(func(inv model.Invitation) bool { return inv.MeetingID == meetingID }, false), nil
}

func (s *Store) InvitationsByRecipient(_ context.Context, email string, status model.Status) ([]model.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = model.NormalizeEmail(email)
	if err := s.check("InvitationsByRecipient", email); err != nil {
		return nil, err
	}
	return s.sortedInvitations(func(inv model.Invitation) bool {
		return inv.Recipient == email && (status == "" || inv.Status == status)
	}, true), nil
}

func (s *Store) DueReminders(_ context.Context, from, to time.Time, limit int) ([]storage.DueReminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("DueReminders", ""); err != nil {
		return nil, err
	}
	var out []storage.DueReminder
	for _, inv := range s.st.invitations {
		if inv.Status != model.StatusPending || inv.RemindedAt != nil {
			continue
		}
		m, ok := s.st.meetings[inv.MeetingID]
		if !ok || m.deletedAt != nil || m.Start.Before(from) || !m.Start.Before(to) {
			continue
		}
		out = append(out, storage.DueReminder{Invitation: inv, Meeting: s.withOrganizer(m)})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Meeting.Start.Equal(out[j].Meeting.Start) {
			return out[i].Meeting.Start.Before(out[j].Meeting.Start)
		}
		return out[i].Invitation.ID < out[j].Invitation.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkReminded(_ context.Context, invitationIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("MarkReminded", ""); err != nil {
		return err
	}
	for _, id := range invitationIDs {
		if inv, ok := s.st.invitations[id]; ok {
			inv.RemindedAt = &at
			s.st.invitations[id] = inv
		}
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
