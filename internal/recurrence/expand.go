// Package recurrence turns stored base events into the concrete
// occurrences implied by their repeat rule.
package recurrence

import (
	"strconv"
	"time"

	"planner/internal/model"
)

// MaxIterations caps how many times the cursor advances for one base
// event, whatever the horizon. A base event therefore yields at most
// MaxIterations+1 entries.
const MaxIterations = 100

// Result wraps the occurrences of several base events.
type Result struct {
	Occurrences []model.Event
	// Truncated lists base ids whose expansion stopped on MaxIterations
	// before reaching the horizon.
	Truncated []string
}

// Expand returns base followed by every occurrence of its recurrence up to
// and including horizon. Non-recurring (or unrecognised) rules yield just
// base. base is never modified.
//
// The cursor starts at base.Date and advances by one day, seven days, one
// calendar month or one calendar year. Month and year steps use
// time.AddDate, so a day-of-month the target month lacks rolls over into
// the following month (Jan 31 + 1 month = Mar 3 in a non-leap year) and
// later steps continue from the rolled date.
func Expand(base model.Event, horizon time.Time) []model.Event {
	out, _ := expand(base, horizon)
	return out
}

// InLocation moves ev's times into loc and sets Date to midnight of its
// calendar day there. Expanding the result steps days and overlays the
// start clock in loc, so a series keeps its wall-clock time across DST
// changes whatever offset the stored instants carry. A nil loc leaves ev
// unchanged.
func InLocation(ev model.Event, loc *time.Location) model.Event {
	if loc == nil {
		return ev
	}
	d := ev.Date.In(loc)
	ev.Date = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	ev.StartTime = ev.StartTime.In(loc)
	ev.EndTime = ev.EndTime.In(loc)
	return ev
}

// ExpandAll expands every event in order and concatenates the results.
func ExpandAll(events []model.Event, horizon time.Time) Result {
	var res Result
	res.Occurrences = make([]model.Event, 0, len(events))
	for _, ev := range events {
		occ, capped := expand(ev, horizon)
		if capped {
			res.Truncated = append(res.Truncated, ev.ID)
		}
		res.Occurrences = append(res.Occurrences, occ...)
	}
	return res
}

func expand(base model.Event, horizon time.Time) ([]model.Event, bool) {
	out := []model.Event{base}

	step := stepFor(model.ParseRecurrence(string(base.Recurrence)))
	if step == nil {
		return out, false
	}

	cursor := base.Date
	for i := 0; i < MaxIterations && cursor.Before(horizon); i++ {
		cursor = step(cursor)
		if cursor.After(horizon) {
			return out, false
		}
		out = append(out, occurrenceAt(base, cursor))
	}
	return out, cursor.Before(horizon)
}

func stepFor(r model.Recurrence) func(time.Time) time.Time {
	switch r {
	case model.RecurrenceDaily:
		return func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	case model.RecurrenceWeekly:
		return func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
	case model.RecurrenceMonthly:
		return func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	case model.RecurrenceYearly:
		return func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }
	default:
		return nil
	}
}

// occurrenceAt copies base onto the cursor day. Start and end keep the
// base hour and minute, read in the cursor's location; seconds are zeroed.
func occurrenceAt(base model.Event, cursor time.Time) model.Event {
	occ := base.Clone()
	occ.ID = OccurrenceID(base.ID, cursor)
	occ.Date = cursor
	occ.StartTime = atClock(cursor, base.StartTime)
	occ.EndTime = atClock(cursor, base.EndTime)
	return occ
}

// OccurrenceID is the stable id of the occurrence of baseID on cursor:
// "{baseID}_{unix millis of cursor}".
func OccurrenceID(baseID string, cursor time.Time) string {
	return baseID + "_" + strconv.FormatInt(cursor.UnixMilli(), 10)
}

func atClock(day, clock time.Time) time.Time {
	c := clock.In(day.Location())
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, day.Location())
}
