package calendar

import (
	"slices"
	"time"

	"planner/internal/layout"
	"planner/internal/model"
)

// EventsForDay keeps occurrences that start on day and belong to one of
// the selected users, dropping duplicates. Participants and sharing do not
// count here, only the owner.
func EventsForDay(events []model.Event, day time.Time, userIDs []string) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range events {
		if !SameDay(day, ev.StartTime) {
			continue
		}
		if !slices.Contains(userIDs, ev.UserID) {
			continue
		}
		out = append(out, ev)
	}
	return layout.Dedupe(out)
}

// EventsForDayAndHour narrows EventsForDay to events whose start hour is
// at or before hour and whose end hour is after it. The check works on
// whole hours, so an event ending at 10:30 is not listed under 10.
func EventsForDayAndHour(events []model.Event, day time.Time, hour int, userIDs []string) []model.Event {
	dayEvents := EventsForDay(events, day, userIDs)
	out := make([]model.Event, 0, len(dayEvents))
	for _, ev := range dayEvents {
		start := ev.StartTime.In(day.Location()).Hour()
		end := ev.EndTime.In(day.Location()).Hour()
		if hour >= start && hour < end {
			out = append(out, ev)
		}
	}
	return out
}

// InRange keeps occurrences whose start falls within [from, to].
func InRange(events []model.Event, from, to time.Time) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range events {
		if ev.StartTime.Before(from) || ev.StartTime.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}
