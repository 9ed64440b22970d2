package model

import (
	"slices"
	"strings"
	"time"
)

// Recurrence is the repeat rule attached to a base event.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly  Recurrence = "yearly"
)

// ParseRecurrence maps a stored or submitted value to a Recurrence.
// Anything unrecognised becomes RecurrenceNone.
func ParseRecurrence(s string) Recurrence {
	switch r := Recurrence(strings.ToLower(strings.TrimSpace(s))); r {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return r
	default:
		return RecurrenceNone
	}
}

// Event is a stored calendar entry. Recurring events are stored once and
// expanded into occurrences on read; an occurrence is an Event too, with
// Date/StartTime/EndTime moved and ID rewritten.
type Event struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// Date is the nominal day of the first occurrence and anchors
	// recurrence expansion.
	Date       time.Time  `json:"date"`
	Recurrence Recurrence `json:"recurrence"`

	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`

	UserID       string   `json:"user_id"`
	Participants []string `json:"participants"`
	IsShared     bool     `json:"is_shared"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that shares no slices with e.
func (e Event) Clone() Event {
	e.Participants = slices.Clone(e.Participants)
	return e
}

// DurationMinutes is the whole number of minutes between start and end.
func (e Event) DurationMinutes() int {
	return int(e.EndTime.Sub(e.StartTime) / time.Minute)
}

// IsMultiDay reports whether the event ends on a different calendar day
// than it starts, in the start time's location.
func (e Event) IsMultiDay() bool {
	end := e.EndTime.In(e.StartTime.Location())
	return e.StartTime.Year() != end.Year() || e.StartTime.YearDay() != end.YearDay()
}

// DisplayText renders "HH:MM - HH:MM name".
func (e Event) DisplayText() string {
	return e.StartTime.Format("15:04") + " - " + e.EndTime.Format("15:04") + " " + e.Name
}

// User is a participant profile. Credentials live separately.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Color     string    `json:"color"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateEventRequest struct {
	Name         string     `json:"name"`
	Color        string     `json:"color"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Date         time.Time  `json:"date"`
	Recurrence   Recurrence `json:"recurrence"`
	Location     string     `json:"location,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Participants []string   `json:"participants"`
	IsShared     bool       `json:"is_shared"`
}

// UpdateEventRequest is a partial update; nil fields are left untouched.
type UpdateEventRequest struct {
	Name         *string     `json:"name,omitempty"`
	Color        *string     `json:"color,omitempty"`
	StartTime    *time.Time  `json:"start_time,omitempty"`
	EndTime      *time.Time  `json:"end_time,omitempty"`
	Date         *time.Time  `json:"date,omitempty"`
	Recurrence   *Recurrence `json:"recurrence,omitempty"`
	Location     *string     `json:"location,omitempty"`
	Notes        *string     `json:"notes,omitempty"`
	Participants *[]string   `json:"participants,omitempty"`
	IsShared     *bool       `json:"is_shared,omitempty"`
}

// Apply copies every set field of r onto e.
func (r UpdateEventRequest) Apply(e *Event) {
	if r.Name != nil {
		e.Name = *r.Name
	}
	if r.Color != nil {
		e.Color = *r.Color
	}
	if r.StartTime != nil {
		e.StartTime = *r.StartTime
	}
	if r.EndTime != nil {
		e.EndTime = *r.EndTime
	}
	if r.Date != nil {
		e.Date = *r.Date
	}
	if r.Recurrence != nil {
		e.Recurrence = ParseRecurrence(string(*r.Recurrence))
	}
	if r.Location != nil {
		e.Location = *r.Location
	}
	if r.Notes != nil {
		e.Notes = *r.Notes
	}
	if r.Participants != nil {
		e.Participants = slices.Clone(*r.Participants)
	}
	if r.IsShared != nil {
		e.IsShared = *r.IsShared
	}
}

type CreateUserRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Color  string `json:"color"`
	Avatar string `json:"avatar,omitempty"`
}

type UpdateUserRequest struct {
	Name   *string `json:"name,omitempty"`
	Color  *string `json:"color,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// EventFilter selects events by day window and by the users involved.
type EventFilter struct {
	UserIDs       []string
	StartDate     time.Time
	EndDate       time.Time
	IncludeShared bool
}

// Matches reports whether e passes the filter.
//
//   - The date window applies only when both bounds are set, and compares
//     against Event.Date inclusively.
//   - With user ids set, e matches when its owner or any participant is
//     listed, or when it is shared and IncludeShared is on.
func (f EventFilter) Matches(e Event) bool {
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() {
		if e.Date.Before(f.StartDate) || e.Date.After(f.EndDate) {
			return false
		}
	}
	if len(f.UserIDs) == 0 {
		return true
	}
	if slices.Contains(f.UserIDs, e.UserID) {
		return true
	}
	for _, p := range e.Participants {
		if slices.Contains(f.UserIDs, p) {
			return true
		}
	}
	return e.IsShared && f.IncludeShared
}
