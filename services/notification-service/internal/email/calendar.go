package email

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/emersion/go-ical"
	"github.com/md-rashed-zaman/huddle/services/notification-service/internal/notice"
)

const productID = "-//huddle//scheduling//EN"

func calAddress(name, email string) *ical.Prop {
	p := ical.NewProp(name)
	p.Value = "mailto:" + email
	return p
}

// Calendar renders c as an iTIP message (RFC 5546): one VEVENT with the method on the
// calendar object. CANCEL also marks the event cancelled.
func Calendar(c notice.Calendar, stamp time.Time) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropMethod, c.Method)

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, c.UID)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, c.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, c.End.UTC())
	ve.Props.SetText(ical.PropSummary, c.Title)

	seq := ical.NewProp(ical.PropSequence)
	seq.Value = strconv.Itoa(c.Sequence)
	ve.Props.Set(seq)

	if c.Description != "" {
		ve.Props.SetText(ical.PropDescription, c.Description)
	}
	if c.Location != "" {
		ve.Props.SetText(ical.PropLocation, c.Location)
	}
	if c.URL != "" {
		url := ical.NewProp(ical.PropURL)
		url.Value = c.URL
		ve.Props.Set(url)
	}
	if c.Method == notice.MethodCancel {
		ve.Props.SetText(ical.PropStatus, "CANCELLED")
	} else {
		ve.Props.SetText(ical.PropStatus, "CONFIRMED")
	}

	ve.Props.Add(calAddress(ical.PropOrganizer, c.Organizer))

	att := calAddress(ical.PropAttendee, c.Attendee)
	att.Params.Set(ical.ParamParticipationStatus, "NEEDS-ACTION")
	att.Params.Set("RSVP", "TRUE")
	ve.Props.Add(att)

	cal.Children = append(cal.Children, ve)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}
