package web

import (
	"net/http"
	"strconv"
	"time"

	"planner/internal/calendar"
	"planner/internal/layout"
	"planner/internal/model"
)

// initialScrollHour is where a day column opens.
const initialScrollHour = 6

type dayView struct {
	Date         time.Time           `json:"date"`
	Label        string              `json:"label"`
	Zoom         layout.Zoom         `json:"zoom"`
	HourHeight   float64             `json:"hour_height"`
	ScrollOffset float64             `json:"scroll_offset"`
	Events       []layout.Positioned `json:"events"`
}

type hourView struct {
	Date   time.Time           `json:"date"`
	Hour   int                 `json:"hour"`
	Label  string              `json:"label"`
	Events []layout.Positioned `json:"events"`
}

type weekDay struct {
	calendar.Day
	Name   string              `json:"name"`
	Label  string              `json:"label"`
	Events []layout.Positioned `json:"events"`
}

type weekView struct {
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end"`
	Previous   time.Time   `json:"previous"`
	Next       time.Time   `json:"next"`
	Zoom       layout.Zoom `json:"zoom"`
	HourHeight float64     `json:"hour_height"`
	Days       []weekDay   `json:"days"`
}

type monthDay struct {
	calendar.Day
	Events []model.Event `json:"events"`
}

type monthView struct {
	Year     int          `json:"year"`
	Month    time.Month   `json:"month"`
	Name     string       `json:"name"`
	Headers  []string     `json:"headers"`
	Previous time.Time    `json:"previous"`
	Next     time.Time    `json:"next"`
	Weeks    [][]monthDay `json:"weeks"`
}

// occurrences returns the snapshot with times moved into the configured
// zone, so day and hour boundaries are those of the calendar's zone.
func (s *Server) occurrences() []model.Event {
	evs := s.events.Occurrences()
	for i := range evs {
		evs[i].StartTime = evs[i].StartTime.In(s.loc)
		evs[i].EndTime = evs[i].EndTime.In(s.loc)
		evs[i].Date = evs[i].Date.In(s.loc)
	}
	return evs
}

func (s *Server) zoom(r *http.Request) layout.Zoom {
	return layout.ClampZoom(parseFloatDefault(r.URL.Query().Get("zoom"), s.cfg.DefaultZoom))
}

func (s *Server) queryDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	day, err := parseDate(r.URL.Query().Get("date"), s.loc, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return time.Time{}, false
	}
	return day, true
}

func (s *Server) handleCalendarDay(w http.ResponseWriter, r *http.Request) {
	day, ok := s.queryDate(w, r)
	if !ok {
		return
	}
	z := s.zoom(r)
	events := calendar.EventsForDay(s.occurrences(), day, userIDs(r))

	writeJSON(w, http.StatusOK, dayView{
		Date:         day,
		Label:        calendar.FormatDate(day),
		Zoom:         z,
		HourHeight:   z.HourHeight(),
		ScrollOffset: z.ScrollOffset(day.Add(initialScrollHour * time.Hour)),
		Events:       layout.LayoutDay(events, z.HourHeight()),
	})
}

func (s *Server) handleCalendarHour(w http.ResponseWriter, r *http.Request) {
	day, ok := s.queryDate(w, r)
	if !ok {
		return
	}
	hour, err := strconv.Atoi(r.URL.Query().Get("hour"))
	if err != nil || hour < 0 || hour > 23 {
		writeError(w, http.StatusBadRequest, "hour must be between 0 and 23")
		return
	}
	events := calendar.EventsForDayAndHour(s.occurrences(), day, hour, userIDs(r))

	writeJSON(w, http.StatusOK, hourView{
		Date:   day,
		Hour:   hour,
		Label:  calendar.FormatHour(hour),
		Events: layout.LayoutHour(events, hour),
	})
}

func (s *Server) handleCalendarWeek(w http.ResponseWriter, r *http.Request) {
	day, ok := s.queryDate(w, r)
	if !ok {
		return
	}
	z := s.zoom(r)
	users := userIDs(r)
	occ := s.occurrences()
	state := calendar.NewState(day)

	days := calendar.BuildWeek(day, s.now().In(s.loc), day)
	view := weekView{
		Previous:   state.Previous().Current,
		Next:       state.Next().Current,
		Zoom:       z,
		HourHeight: z.HourHeight(),
		Days:       make([]weekDay, 0, len(days)),
	}
	view.Start, view.End = state.Range()
	for _, d := range days {
		view.Days = append(view.Days, weekDay{
			Day:    d,
			Name:   calendar.ShortDayName(d.Date.Weekday()),
			Label:  calendar.FormatDate(d.Date),
			Events: layout.LayoutDay(calendar.EventsForDay(occ, d.Date, users), z.HourHeight()),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCalendarMonth(w http.ResponseWriter, r *http.Request) {
	day, ok := s.queryDate(w, r)
	if !ok {
		return
	}
	users := userIDs(r)
	occ := s.occurrences()
	state := calendar.NewState(day).WithView(calendar.ViewMonth)

	m := calendar.BuildMonth(day, s.now().In(s.loc), day)
	view := monthView{
		Year:     m.Year,
		Month:    m.Month,
		Name:     m.Name,
		Headers:  calendar.DayHeaders(),
		Previous: state.Previous().Current,
		Next:     state.Next().Current,
		Weeks:    make([][]monthDay, 0, len(m.Weeks)),
	}
	for _, wk := range m.Weeks {
		row := make([]monthDay, 0, len(wk.Days))
		for _, d := range wk.Days {
			row = append(row, monthDay{Day: d, Events: calendar.EventsForDay(occ, d.Date, users)})
		}
		view.Weeks = append(view.Weeks, row)
	}
	writeJSON(w, http.StatusOK, view)
}
