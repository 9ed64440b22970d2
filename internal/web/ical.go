package web

import (
	"io"
	"net/http"
	"strings"

	"planner/internal/ics"
	"planner/internal/model"
)

type importURLRequest struct {
	URL string `json:"url"`
}

// handleExport serves the selected users' base events as an iCalendar
// feed. Recurring events are exported once, with an RRULE or RDATEs.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.ListByFilter(r.Context(), model.EventFilter{
		UserIDs:       userIDs(r),
		IncludeShared: true,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	body := ics.Export(events, ics.ExportOptions{Name: "planner", Now: s.now(), Location: s.loc})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="planner.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// handleImport creates events for the signed-in user from an iCalendar
// body, or from a remote feed when the body is JSON {"url": "..."}.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req importURLRequest
		if err := decodeJSON(w, r, &req); err != nil || req.URL == "" {
			writeError(w, http.StatusBadRequest, `want {"url": "..."}`)
			return
		}
		res, err := s.fetcher.Fetch(r.Context(), req.URL)
		if err != nil {
			writeError(w, http.StatusBadGateway, "fetch calendar: "+err.Error())
			return
		}
		body = res.Body
	} else {
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}
		body = b
	}

	res, err := ics.Import(r.Context(), s.events, body, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
