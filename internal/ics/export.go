// Package ics moves events in and out of iCalendar (RFC 5545) form:
// export of stored events, parsing of uploaded or fetched calendars, and
// bulk import through the event service.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"planner/internal/model"
	"planner/internal/recurrence"
)

const defaultProductID = "-//planner//planner 1.0//EN"

// propertyRecurrence carries the planner rule on series exported as RDATEs,
// so a round trip through Parse restores the series instead of one event.
const propertyRecurrence = ical.ComponentProperty("X-PLANNER-RECURRENCE")

const rdateLayout = "20060102T150405Z"

// ExportOptions tune the VCALENDAR header.
type ExportOptions struct {
	ProductID string
	Name      string
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
	// Location is the calendar zone recurrences are expanded in; nil keeps
	// the stored offsets.
	Location *time.Location
}

// Export renders base events as one VEVENT each. Recurring events carry an
// RRULE whose COUNT matches the expansion cap, so a client sees at most as
// many instances as this server does. Series whose server expansion an
// RRULE cannot describe (month-end overflow, a start on another day than
// the series date) list their instances as RDATEs instead.
func Export(events []model.Event, opts ExportOptions) string {
	if opts.ProductID == "" {
		opts.ProductID = defaultProductID
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(opts.ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, e := range events {
		e = recurrence.InLocation(e, opts.Location)
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(opts.Now)
		if !e.CreatedAt.IsZero() {
			ve.SetCreatedTime(e.CreatedAt)
		}
		if !e.UpdatedAt.IsZero() {
			ve.SetModifiedAt(e.UpdatedAt)
		}
		ve.SetStartAt(e.StartTime)
		ve.SetEndAt(e.EndTime)
		ve.SetSummary(e.Name)
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		if e.Notes != "" {
			ve.SetDescription(e.Notes)
		}
		if e.Color != "" {
			ve.AddProperty(propertyColor, e.Color)
		}
		rule := RRule(e.Recurrence)
		switch {
		case rule == "":
		case needsRDates(e):
			ve.AddProperty(propertyRecurrence, string(model.ParseRecurrence(string(e.Recurrence))))
			for _, occ := range rdates(e) {
				ve.AddRdate(occ.StartTime.UTC().Format(rdateLayout))
			}
		default:
			ve.AddProperty(ical.ComponentPropertyRrule, rule)
		}
	}

	return cal.Serialize()
}

// RRule returns the RRULE value for r, or "" for non-recurring events.
func RRule(r model.Recurrence) string {
	var freq rrule.Frequency
	switch model.ParseRecurrence(string(r)) {
	case model.RecurrenceDaily:
		freq = rrule.DAILY
	case model.RecurrenceWeekly:
		freq = rrule.WEEKLY
	case model.RecurrenceMonthly:
		freq = rrule.MONTHLY
	case model.RecurrenceYearly:
		freq = rrule.YEARLY
	default:
		return ""
	}
	opt := rrule.ROption{Freq: freq, Count: recurrence.MaxIterations + 1}
	return opt.RRuleString()
}

// needsRDates reports whether an RRULE anchored at e's DTSTART would pick
// other days than Expand does. Monthly and yearly steps past day 28 roll
// over in Expand but are skipped by RRULE.
func needsRDates(e model.Event) bool {
	if !sameDay(e.Date, e.StartTime.In(e.Date.Location())) {
		return true
	}
	switch model.ParseRecurrence(string(e.Recurrence)) {
	case model.RecurrenceMonthly, model.RecurrenceYearly:
		return e.Date.Day() > 28
	}
	return false
}

// rdates lists every occurrence after the first, up to the iteration cap.
func rdates(e model.Event) []model.Event {
	horizon := e.Date.AddDate(recurrence.MaxIterations+1, 0, 0)
	return recurrence.Expand(e, horizon)[1:]
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
