package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "planner/internal/log"
	"planner/internal/model"
)

// DefaultColor is used for imported events that carry no COLOR.
const DefaultColor = "#2196f3"

// propertyColor is the RFC 7986 COLOR property.
const propertyColor = ical.ComponentProperty("COLOR")

// Parse turns every usable VEVENT of an iCalendar payload into a create
// request. Floating and date-only values are read in loc.
//
//   - RRULE FREQ maps onto the supported recurrences; anything with an
//     INTERVAL other than 1, or an unsupported FREQ, becomes a single event.
//   - EXDATE and RDATE are ignored. Without an RRULE, the
//     X-PLANNER-RECURRENCE value written by Export restores the series.
//   - VEVENTs carrying RECURRENCE-ID override one instance of a series and
//     are skipped.
//   - Date-only events span whole days; a missing DTEND means one day for
//     date-only starts and one hour otherwise.
func Parse(body []byte, loc *time.Location) ([]model.CreateEventRequest, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	out := make([]model.CreateEventRequest, 0)
	for _, ve := range cal.Events() {
		if ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")) != nil {
			appLog.Debug("ics override instance skipped", "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		req, perr := parseVEvent(ve, loc)
		if perr != nil {
			// Keep going; one broken VEVENT should not sink the import.
			appLog.Warn("ics vevent skipped", "uid", propValue(ve, ical.ComponentPropertyUniqueId), "reason", perr.Error())
			continue
		}
		out = append(out, req)
	}

	appLog.Info("ics parse completed", "event_count", len(out))
	return out, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.CreateEventRequest, error) {
	var req model.CreateEventRequest

	req.Name = strings.TrimSpace(propValue(ve, ical.ComponentPropertySummary))
	if req.Name == "" {
		return req, errors.New("missing SUMMARY")
	}
	req.Notes = propValue(ve, ical.ComponentPropertyDescription)
	req.Location = propValue(ve, ical.ComponentPropertyLocation)
	req.Color = strings.TrimSpace(propValue(ve, propertyColor))
	if req.Color == "" {
		req.Color = DefaultColor
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return req, errors.New("missing DTSTART")
	}
	allDay := isDateOnly(dtStart)

	start, err := eventTime(ve, dtStart, allDay, loc, true)
	if err != nil {
		return req, fmt.Errorf("DTSTART: %w", err)
	}

	var end time.Time
	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil && dtEnd.Value != "" {
		end, err = eventTime(ve, dtEnd, isDateOnly(dtEnd), loc, false)
		if err != nil {
			return req, fmt.Errorf("DTEND: %w", err)
		}
	}
	if !end.After(start) {
		if allDay {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start.Add(time.Hour)
		}
	}

	start = start.In(loc)
	req.StartTime = start
	req.EndTime = end.In(loc)
	req.Date = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	req.Recurrence = model.RecurrenceNone

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		req.Recurrence = recurrenceFromRRule(p.Value)
	} else if v := propValue(ve, propertyRecurrence); v != "" {
		req.Recurrence = model.ParseRecurrence(v)
	}
	return req, nil
}

// eventTime reads a DTSTART/DTEND. Date-only and floating values are
// parsed here in loc; everything else goes through the library so
// TZID and UTC forms keep their zone.
func eventTime(ve *ical.VEvent, p *ical.IANAProperty, dateOnly bool, loc *time.Location, isStart bool) (time.Time, error) {
	v := strings.TrimSpace(p.Value)
	if dateOnly {
		return time.ParseInLocation("20060102", v, loc)
	}
	if !strings.HasSuffix(v, "Z") && len(p.ICalParameters["TZID"]) == 0 {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	if isStart {
		return ve.GetStartAt()
	}
	return ve.GetEndAt()
}

func isDateOnly(p *ical.IANAProperty) bool {
	if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func recurrenceFromRRule(s string) model.Recurrence {
	opt, err := rrule.StrToROption(s)
	if err != nil {
		appLog.Warn("ics rrule not understood", "rrule", s, "reason", err.Error())
		return model.RecurrenceNone
	}
	if opt.Interval > 1 {
		return model.RecurrenceNone
	}
	switch opt.Freq {
	case rrule.DAILY:
		return model.RecurrenceDaily
	case rrule.WEEKLY:
		return model.RecurrenceWeekly
	case rrule.MONTHLY:
		return model.RecurrenceMonthly
	case rrule.YEARLY:
		return model.RecurrenceYearly
	default:
		return model.RecurrenceNone
	}
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}
