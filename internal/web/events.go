package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"planner/internal/calendar"
	"planner/internal/model"
)

// handleListEvents returns base events. With both start and end set the
// list is narrowed to that date window.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.EventFilter{UserIDs: userIDs(r), IncludeShared: true}
	if q.Get("start") != "" && q.Get("end") != "" {
		start, end, ok := s.dateWindow(w, r)
		if !ok {
			return
		}
		f.StartDate, f.EndDate = start, end
	}

	events, err := s.events.ListByFilter(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	id, err := s.events.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	ev, err := s.events.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.events.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	ev, err := s.events.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.events.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleOccurrences lists expanded occurrences starting between the start
// and end days (inclusive). Without dates it covers the current week.
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.dateWindow(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.events.OccurrencesFor(userIDs(r), start, end))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.events.Reload(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.events.Status())
}

// dateWindow reads start/end query days as [start 00:00, end 23:59:59.999]
// in the configured timezone. Missing values default to the current week.
func (s *Server) dateWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	now := s.now()

	var start, end time.Time
	var err error
	if v := q.Get("start"); v != "" {
		if start, err = parseDate(v, s.loc, now); err != nil {
			writeError(w, http.StatusBadRequest, "invalid start date, want YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
	} else {
		start = calendar.StartOfWeek(now.In(s.loc))
	}
	if v := q.Get("end"); v != "" {
		if end, err = parseDate(v, s.loc, now); err != nil {
			writeError(w, http.StatusBadRequest, "invalid end date, want YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
	} else {
		end = calendar.EndOfWeek(start)
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end is before start")
		return time.Time{}, time.Time{}, false
	}

	start, _ = calendar.DayRange(start)
	_, end = calendar.DayRange(end)
	return start, end, true
}
