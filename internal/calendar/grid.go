package calendar

import "time"

// Day is one cell of a week or month grid.
type Day struct {
	Date           time.Time `json:"date"`
	IsCurrentMonth bool      `json:"is_current_month"`
	IsToday        bool      `json:"is_today"`
	IsSelected     bool      `json:"is_selected"`
}

type Week struct {
	Days []Day `json:"days"`
}

type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Name  string     `json:"name"`
	Weeks []Week     `json:"weeks"`
}

// BuildMonth lays out the month containing date as whole Monday-first
// weeks, padding with days of the neighbouring months.
func BuildMonth(date, today, selected time.Time) Month {
	first := StartOfMonth(date)
	last := EndOfMonth(date)

	cursor := StartOfWeek(first)
	end := EndOfWeek(last)

	m := Month{
		Year:  first.Year(),
		Month: first.Month(),
		Name:  first.Month().String(),
	}
	for !cursor.After(end) {
		var w Week
		for i := 0; i < 7; i++ {
			w.Days = append(w.Days, Day{
				Date:           cursor,
				IsCurrentMonth: cursor.Month() == first.Month(),
				IsToday:        SameDay(cursor, today),
				IsSelected:     SameDay(cursor, selected),
			})
			cursor = AddDays(cursor, 1)
		}
		m.Weeks = append(m.Weeks, w)
	}
	return m
}

// BuildWeek returns the seven days of date's week starting on Monday.
// Every day counts as part of the current month in a week grid.
func BuildWeek(date, today, selected time.Time) []Day {
	start := StartOfDay(StartOfWeek(date))
	days := make([]Day, 0, 7)
	for i := 0; i < 7; i++ {
		d := AddDays(start, i)
		days = append(days, Day{
			Date:           d,
			IsCurrentMonth: true,
			IsToday:        SameDay(d, today),
			IsSelected:     SameDay(d, selected),
		})
	}
	return days
}
