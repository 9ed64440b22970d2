package calendar

import (
	"strings"
	"time"
)

type View string

const (
	ViewMonth View = "month"
	ViewWeek  View = "week"
	ViewDay   View = "day"
)

// ParseView maps a query value to a View, defaulting to ViewWeek.
func ParseView(s string) View {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewMonth, ViewDay:
		return v
	default:
		return ViewWeek
	}
}

// State is an immutable navigation snapshot: every method returns a new
// State and leaves the receiver alone.
type State struct {
	Current  time.Time
	Selected time.Time
	View     View
}

// NewState opens the week view on now.
func NewState(now time.Time) State {
	return State{Current: now, Selected: now, View: ViewWeek}
}

func (s State) Next() State {
	s.Current = s.step(1)
	return s
}

func (s State) Previous() State {
	s.Current = s.step(-1)
	return s
}

func (s State) step(dir int) time.Time {
	switch s.View {
	case ViewMonth:
		return AddMonths(s.Current, dir)
	case ViewDay:
		return AddDays(s.Current, dir)
	default:
		return AddDays(s.Current, 7*dir)
	}
}

// Today moves both the current and the selected date to now.
func (s State) Today(now time.Time) State {
	s.Current = now
	s.Selected = now
	return s
}

func (s State) WithView(v View) State {
	s.View = v
	return s
}

func (s State) Select(day time.Time) State {
	s.Selected = day
	return s
}

// Range returns the first and last instant covered by the current view.
func (s State) Range() (time.Time, time.Time) {
	switch s.View {
	case ViewMonth:
		_, end := DayRange(EndOfMonth(s.Current))
		return StartOfMonth(s.Current), end
	case ViewDay:
		return DayRange(s.Current)
	default:
		start, _ := DayRange(StartOfWeek(s.Current))
		_, end := DayRange(EndOfWeek(s.Current))
		return start, end
	}
}
