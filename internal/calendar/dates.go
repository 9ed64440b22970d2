// Package calendar holds the date arithmetic, grids and selection filters
// behind the week and month views. Weeks start on Monday.
package calendar

import (
	"fmt"
	"slices"
	"time"
)

func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func SameMonth(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// AddMonths moves t by whole months; a missing day-of-month rolls over
// into the following month.
func AddMonths(t time.Time, months int) time.Time {
	return t.AddDate(0, months, 0)
}

// StartOfWeek returns the Monday of t's week, keeping t's clock time.
func StartOfWeek(t time.Time) time.Time {
	return AddDays(t, -mondayIndex(t.Weekday()))
}

// EndOfWeek returns the Sunday of t's week, keeping t's clock time.
func EndOfWeek(t time.Time) time.Time {
	return AddDays(t, 6-mondayIndex(t.Weekday()))
}

func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func EndOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayRange spans t's day from 00:00:00.000 to 23:59:59.999.
func DayRange(t time.Time) (time.Time, time.Time) {
	start := StartOfDay(t)
	return start, start.AddDate(0, 0, 1).Add(-time.Millisecond)
}

// mondayIndex maps Monday..Sunday to 0..6.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

var shortDayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// DayHeaders lists weekday labels Monday first. The slice is the
// caller's to keep.
func DayHeaders() []string {
	return slices.Clone(shortDayNames[:])
}

func ShortDayName(d time.Weekday) string {
	return shortDayNames[mondayIndex(d)]
}

// FormatDate renders dd/MM/yyyy.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// FormatHour renders an hour slot label such as "07:00".
func FormatHour(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// FormatTime renders HH:MM.
func FormatTime(t time.Time) string {
	return t.Format("15:04")
}
