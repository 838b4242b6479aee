package availability

import (
	"math"
	"sort"
	"time"

	"github.com/md-rashed-zaman/huddle/services/scheduling-service/internal/timeutil"
)

const (
	Stride          = 30 * time.Minute
	MaxDuration     = 480 * time.Minute
	MaxSlots        = 5
	MaxAlternatives = 3
	// AlternativeLookahead is how far past a conflicting proposal alternatives are searched.
	AlternativeLookahead = 72 * time.Hour

	businessOpen  = 9 * 60
	businessClose = 17 * 60

	baseScore      = 100.0
	minutePenalty  = 0.01
	preferredBonus = 10.0
)

type Interval struct {
	Start time.Time
	End   time.Time
}

type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Score float64   `json:"score"`
}

// SearchParams describes one candidate search. Candidates step by Stride from RangeStart.
// Starts before NotBefore are skipped; ScoreFrom anchors the earliness penalty.
type SearchParams struct {
	RangeStart time.Time
	RangeEnd   time.Time
	Duration   time.Duration
	Location   *time.Location
	ScoreFrom  time.Time
	NotBefore  time.Time
	Limit      int
}

// RankSlots enumerates candidates in [RangeStart, RangeEnd) that sit inside business
// hours and avoid every busy interval, and returns the best Limit by score.
func RankSlots(p SearchParams, busy []Interval) []Slot {
	if p.Duration <= 0 || !p.RangeEnd.After(p.RangeStart) {
		return nil
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	scoreFrom := p.ScoreFrom
	if scoreFrom.IsZero() {
		scoreFrom = p.RangeStart
	}

	var slots []Slot
	for t := p.RangeStart; !t.Add(p.Duration).After(p.RangeEnd); t = t.Add(Stride) {
		end := t.Add(p.Duration)
		if t.Before(p.NotBefore) {
			continue
		}
		if !WithinBusinessHours(t, end, loc) {
			continue
		}
		if overlapsAny(t, end, busy) {
			continue
		}
		slots = append(slots, Slot{Start: t, End: end, Score: Score(t, scoreFrom)})
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Score != slots[j].Score {
			return slots[i].Score > slots[j].Score
		}
		return slots[i].Start.Before(slots[j].Start)
	})
	if p.Limit > 0 && len(slots) > p.Limit {
		slots = slots[:p.Limit]
	}
	return slots
}

// WithinBusinessHours reports whether [start, end) lies between 09:00 and 17:00 of the
// local day of start in loc. Seconds count: 16:00:30 to 17:00:30 is outside.
func WithinBusinessHours(start, end time.Time, loc *time.Location) bool {
	l := start.In(loc)
	open := timeutil.FromLocal(l.Year(), l.Month(), l.Day(), businessOpen/60, businessOpen%60, loc)
	closing := timeutil.FromLocal(l.Year(), l.Month(), l.Day(), businessClose/60, businessClose%60, loc)
	return !start.Before(open) && !end.After(closing) && end.After(start)
}

// Score prefers earlier starts and the 10:00 and 14:00 UTC hours. It never goes below 0
// and is rounded to two decimals.
func Score(start, from time.Time) float64 {
	s := baseScore - minutePenalty*float64(timeutil.MinutesBetween(from, start))
	if h := start.UTC().Hour(); h == 10 || h == 14 {
		s += preferredBonus
	}
	if s < 0 {
		s = 0
	}
	return math.Round(s*100) / 100
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if timeutil.Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
