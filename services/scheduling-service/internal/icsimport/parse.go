// Package icsimport turns an uploaded iCalendar file into meetings owned by the
// uploader.
package icsimport

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

const (
	MaxInstances  = 100
	untitled      = "Untitled Event"
	defaultLength = time.Hour
	horizonYears  = 2
)

// Occurrence is one concrete event instance, already expanded from any RRULE.
type Occurrence struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Timezone    string
	Recurrence  string
}

// Parse decodes every calendar in r and returns its events. Recurring events are
// expanded up to MaxInstances or two years past now, whichever comes first. Events
// that cannot be read are reported in problems and skipped.
func Parse(r io.Reader, fallback *time.Location, now time.Time) (out []Occurrence, problems []string, err error) {
	if fallback == nil {
		fallback = time.UTC
	}
	dec := ical.NewDecoder(r)
	decoded := 0
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("decode calendar: %w", err)
		}
		decoded++
		for _, ev := range cal.Events() {
			occ, err := expand(ev, fallback, now)
			if err != nil {
				problems = append(problems, fmt.Sprintf("event %q: %v", summary(ev.Component), err))
				continue
			}
			out = append(out, occ...)
		}
	}
	if decoded == 0 {
		return nil, nil, errors.New("no calendar found")
	}
	return out, problems, nil
}

func summary(comp *ical.Component) string {
	if p := comp.Props.Get(ical.PropSummary); p != nil && strings.TrimSpace(p.Value) != "" {
		return strings.TrimSpace(p.Value)
	}
	return untitled
}

func text(comp *ical.Component, name string) string {
	if p := comp.Props.Get(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

// zoneOf picks the DTSTART TZID when it names a loadable zone, else the fallback.
func zoneOf(start *ical.Prop, fallback *time.Location) *time.Location {
	if tzid := start.Params.Get(ical.ParamTimezoneID); tzid != "" {
		if loc, err := time.LoadLocation(tzid); err == nil {
			return loc
		}
	}
	if strings.HasSuffix(start.Value, "Z") {
		return time.UTC
	}
	return fallback
}

func isDate(p *ical.Prop) bool {
	return p.ValueType() == ical.ValueDate || (len(p.Value) == len("20060102") && !strings.Contains(p.Value, "T"))
}

func bounds(ev ical.Event, loc *time.Location) (time.Time, time.Time, error) {
	startProp := ev.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return time.Time{}, time.Time{}, errors.New("missing DTSTART")
	}
	start, err := startProp.DateTime(loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("DTSTART: %w", err)
	}

	var end time.Time
	switch {
	case ev.Props.Get(ical.PropDateTimeEnd) != nil:
		end, err = ev.Props.Get(ical.PropDateTimeEnd).DateTime(loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("DTEND: %w", err)
		}
	case ev.Props.Get(ical.PropDuration) != nil:
		d, err := ev.Props.Get(ical.PropDuration).Duration()
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("DURATION: %w", err)
		}
		end = start.Add(d)
	case isDate(startProp):
		end = start.AddDate(0, 0, 1)
	default:
		end = start.Add(defaultLength)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("end must be after start")
	}
	return start, end, nil
}

func expand(ev ical.Event, fallback *time.Location, now time.Time) ([]Occurrence, error) {
	startProp := ev.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return nil, errors.New("missing DTSTART")
	}
	loc := zoneOf(startProp, fallback)
	start, end, err := bounds(ev, loc)
	if err != nil {
		return nil, err
	}
	base := Occurrence{
		Title:       summary(ev.Component),
		Description: text(ev.Component, ical.PropDescription),
		Location:    text(ev.Component, ical.PropLocation),
		Start:       start.UTC(),
		End:         end.UTC(),
		Timezone:    loc.String(),
	}
	if ev.Props.Get(ical.PropRecurrenceRule) == nil {
		return []Occurrence{base}, nil
	}

	set, err := ev.RecurrenceSet(loc)
	if err != nil {
		return nil, fmt.Errorf("RRULE: %w", err)
	}
	if set == nil {
		return []Occurrence{base}, nil
	}
	base.Recurrence = text(ev.Component, ical.PropRecurrenceRule)
	return instances(set, base, end.Sub(start), now.AddDate(horizonYears, 0, 0)), nil
}

func instances(set *rrule.Set, base Occurrence, length time.Duration, horizon time.Time) []Occurrence {
	var out []Occurrence
	next := set.Iterator()
	for len(out) < MaxInstances {
		at, ok := next()
		if !ok || at.After(horizon) {
			break
		}
		occ := base
		occ.Start = at.UTC()
		occ.End = at.Add(length).UTC()
		out = append(out, occ)
	}
	return out
}
