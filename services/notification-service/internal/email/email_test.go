package email

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/md-rashed-zaman/huddle/services/notification-service/internal/notice"
)

var stamp = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleCalendar(method string) notice.Calendar {
	return notice.Calendar{
		UID:       "m-1@huddle",
		Method:    method,
		Sequence:  3,
		Title:     "Planning",
		Location:  "Room 4",
		URL:       "https://meet.jit.si/abc",
		Start:     time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 3, 4, 16, 0, 0, 0, time.UTC),
		Organizer: "alice@example.com",
		Attendee:  "bob@example.com",
	}
}

func TestCalendarRoundTrips(t *testing.T) {
	raw, err := Calendar(sampleCalendar(notice.MethodCancel), stamp)
	if err != nil {
		t.Fatalf("Calendar failed: %v", err)
	}
	cal, err := ical.NewDecoder(bytes.NewReader(raw)).Decode()
	if err != nil {
		t.Fatalf("decode failed: %v\n%s", err, raw)
	}
	if got := cal.Props.Get(ical.PropMethod); got == nil || got.Value != "CANCEL" {
		t.Fatalf("unexpected method %+v", got)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if uid := ev.Props.Get(ical.PropUID); uid == nil || uid.Value != "m-1@huddle" {
		t.Fatalf("unexpected uid %+v", uid)
	}
	if st := ev.Props.Get(ical.PropStatus); st == nil || st.Value != "CANCELLED" {
		t.Fatalf("unexpected status %+v", st)
	}
	if seq := ev.Props.Get(ical.PropSequence); seq == nil || seq.Value != "3" {
		t.Fatalf("unexpected sequence %+v", seq)
	}
	start, err := ev.DateTimeStart(time.UTC)
	if err != nil || !start.Equal(sampleCalendar("").Start) {
		t.Fatalf("unexpected start %s (%v)", start, err)
	}
	att := ev.Props.Get(ical.PropAttendee)
	if att == nil || !strings.EqualFold(att.Value, "mailto:bob@example.com") {
		t.Fatalf("unexpected attendee %+v", att)
	}
}

func TestBuildPlainMessage(t *testing.T) {
	raw, err := Build("no-reply@huddle.local", Message{To: "bob@example.com", Subject: "Hello", Text: "Body"}, stamp)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if ct := msg.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body, _ := io.ReadAll(msg.Body)
	if strings.TrimSpace(string(body)) != "Body" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestBuildCalendarAlternative(t *testing.T) {
	ics, err := Calendar(sampleCalendar(notice.MethodRequest), stamp)
	if err != nil {
		t.Fatalf("Calendar failed: %v", err)
	}
	raw, err := Build("no-reply@huddle.local", Message{
		To:       "bob@example.com",
		Subject:  "Invitation: Planning",
		Text:     "You are invited.",
		Calendar: ics,
		Method:   notice.MethodRequest,
	}, stamp)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/alternative" {
		t.Fatalf("unexpected content type %q (%v)", mediaType, err)
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	var types []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart failed: %v", err)
		}
		types = append(types, part.Header.Get("Content-Type"))
	}
	if len(types) != 2 || !strings.HasPrefix(types[0], "text/plain") {
		t.Fatalf("unexpected parts %v", types)
	}
	calType, calParams, err := mime.ParseMediaType(types[1])
	if err != nil || calType != "text/calendar" || calParams["method"] != "REQUEST" {
		t.Fatalf("unexpected calendar part %q", types[1])
	}
}
