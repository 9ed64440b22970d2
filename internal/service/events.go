package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"planner/internal/auth"
	appLog "planner/internal/log"
	"planner/internal/model"
	"planner/internal/recurrence"
	"planner/internal/store"
)

// EventService manages base events and keeps an expanded snapshot of
// their occurrences. The snapshot is rebuilt after every write and by the
// refresh scheduler, and is swapped as a whole so readers never see a
// partial expansion.
type EventService struct {
	events        store.EventStore
	horizonMonths int
	loc           *time.Location
	now           func() time.Time

	// reloadMu is held from listing to swap, so snapshots are published
	// in the order their listings were taken.
	reloadMu sync.Mutex

	mu          sync.RWMutex
	occurrences []model.Event
	truncated   []string
	loadedAt    time.Time
}

// NewEventService expands recurrences in loc, the calendar's zone; nil
// means time.Local.
func NewEventService(events store.EventStore, horizonMonths int, loc *time.Location) *EventService {
	if horizonMonths <= 0 {
		horizonMonths = 6
	}
	if loc == nil {
		loc = time.Local
	}
	return &EventService{
		events:        events,
		horizonMonths: horizonMonths,
		loc:           loc,
		now:           time.Now,
	}
}

// Create stores a new event owned by the signed-in user and returns its id.
func (s *EventService) Create(ctx context.Context, req model.CreateEventRequest) (string, error) {
	uid, ok := auth.CurrentUserID(ctx)
	if !ok {
		return "", ErrUnauthenticated
	}
	id, err := s.insert(ctx, uid, req)
	if err != nil {
		return "", err
	}
	s.reloadAfterWrite(ctx)
	return id, nil
}

// CreateBatch stores every valid request for the signed-in user and
// rebuilds the snapshot once at the end. ids is aligned with reqs; a
// rejected request gets "" and is logged with its reason. Only a missing
// identity fails the whole batch.
func (s *EventService) CreateBatch(ctx context.Context, reqs []model.CreateEventRequest) ([]string, error) {
	uid, ok := auth.CurrentUserID(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	ids := make([]string, len(reqs))
	stored := 0
	for i, req := range reqs {
		id, err := s.insert(ctx, uid, req)
		if err != nil {
			appLog.Warn("event rejected", "name", req.Name, "reason", err.Error())
			continue
		}
		ids[i] = id
		stored++
	}
	if stored > 0 {
		s.reloadAfterWrite(ctx)
	}
	return ids, nil
}

func (s *EventService) insert(ctx context.Context, uid string, req model.CreateEventRequest) (string, error) {
	now := s.now()
	ev := model.Event{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Color:        strings.TrimSpace(req.Color),
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Date:         req.Date,
		Recurrence:   model.ParseRecurrence(string(req.Recurrence)),
		Location:     req.Location,
		Notes:        req.Notes,
		UserID:       uid,
		Participants: cleanParticipants(req.Participants),
		IsShared:     req.IsShared,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := validateEvent(ev); err != nil {
		return "", err
	}
	if err := s.events.CreateEvent(ctx, ev); err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}

	appLog.Info("event created", "id", ev.ID, "user", uid, "recurrence", ev.Recurrence)
	return ev.ID, nil
}

// Update applies a partial change. Only the owner may edit an event.
func (s *EventService) Update(ctx context.Context, id string, req model.UpdateEventRequest) (model.Event, error) {
	ev, err := s.owned(ctx, id)
	if err != nil {
		return model.Event{}, err
	}

	req.Apply(&ev)
	ev.Name = strings.TrimSpace(ev.Name)
	ev.Color = strings.TrimSpace(ev.Color)
	ev.Participants = cleanParticipants(ev.Participants)
	ev.UpdatedAt = s.now()
	if err := validateEvent(ev); err != nil {
		return model.Event{}, err
	}
	if err := s.events.UpdateEvent(ctx, ev); err != nil {
		return model.Event{}, fmt.Errorf("update event: %w", err)
	}

	appLog.Info("event updated", "id", id)
	s.reloadAfterWrite(ctx)
	return ev, nil
}

// Delete removes an event. Only the owner may delete it.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if _, err := s.owned(ctx, id); err != nil {
		return err
	}
	if err := s.events.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	appLog.Info("event deleted", "id", id)
	s.reloadAfterWrite(ctx)
	return nil
}

func (s *EventService) Get(ctx context.Context, id string) (model.Event, error) {
	return s.events.GetEvent(ctx, id)
}

func (s *EventService) owned(ctx context.Context, id string) (model.Event, error) {
	uid, ok := auth.CurrentUserID(ctx)
	if !ok {
		return model.Event{}, ErrUnauthenticated
	}
	ev, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	if ev.UserID != uid {
		return model.Event{}, ErrForbidden
	}
	return ev, nil
}

// ListByFilter returns base events passing f.
func (s *EventService) ListByFilter(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	var q store.EventQuery
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() {
		q = store.EventQuery{From: f.StartDate, To: f.EndDate}
	}
	all, err := s.events.ListEvents(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]model.Event, 0, len(all))
	for _, ev := range all {
		if f.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ListByDateRange returns base events dated within [start, end] that
// involve any of userIDs, shared events included.
func (s *EventService) ListByDateRange(ctx context.Context, start, end time.Time, userIDs []string) ([]model.Event, error) {
	return s.ListByFilter(ctx, model.EventFilter{
		UserIDs:       userIDs,
		StartDate:     start,
		EndDate:       end,
		IncludeShared: true,
	})
}

// ListForUser returns base events owned by or involving userID, optionally
// restricted to a date window.
func (s *EventService) ListForUser(ctx context.Context, userID string, start, end time.Time) ([]model.Event, error) {
	return s.ListByFilter(ctx, model.EventFilter{
		UserIDs:   []string{userID},
		StartDate: start,
		EndDate:   end,
	})
}

// Reload expands every stored event up to now plus the horizon and swaps
// the occurrence snapshot. Events are moved into the calendar's zone
// first, so days and clock times repeat as they read there.
func (s *EventService) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	base, err := s.events.ListEvents(ctx, store.EventQuery{})
	if err != nil {
		return fmt.Errorf("reload events: %w", err)
	}

	seen := make(map[string]struct{}, len(base))
	unique := base[:0]
	for _, ev := range base {
		if _, dup := seen[ev.ID]; dup {
			continue
		}
		seen[ev.ID] = struct{}{}
		unique = append(unique, recurrence.InLocation(ev, s.loc))
	}

	now := s.now()
	horizon := now.AddDate(0, s.horizonMonths, 0)
	res := recurrence.ExpandAll(unique, horizon)
	for _, id := range res.Truncated {
		appLog.Warn("recurrence expansion hit iteration cap", "id", id, "max", recurrence.MaxIterations)
	}

	s.mu.Lock()
	s.occurrences = res.Occurrences
	s.truncated = res.Truncated
	s.loadedAt = now
	s.mu.Unlock()

	appLog.Debug("occurrences reloaded", "events", len(unique), "occurrences", len(res.Occurrences), "horizon", horizon)
	return nil
}

func (s *EventService) reloadAfterWrite(ctx context.Context) {
	// The write already succeeded; a failed reload only leaves the
	// snapshot stale until the next refresh.
	if err := s.Reload(ctx); err != nil {
		appLog.Error("reload after write failed", err)
	}
}

// Occurrences returns a copy of the current snapshot.
func (s *EventService) Occurrences() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, len(s.occurrences))
	for i, ev := range s.occurrences {
		out[i] = ev.Clone()
	}
	return out
}

// OccurrencesFor returns snapshot occurrences starting within [from, to]
// that involve any of userIDs, shared events included. Zero bounds are
// open.
func (s *EventService) OccurrencesFor(userIDs []string, from, to time.Time) []model.Event {
	f := model.EventFilter{UserIDs: userIDs, IncludeShared: true}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, 0)
	for _, ev := range s.occurrences {
		if !from.IsZero() && ev.StartTime.Before(from) {
			continue
		}
		if !to.IsZero() && ev.StartTime.After(to) {
			continue
		}
		if f.Matches(ev) {
			out = append(out, ev.Clone())
		}
	}
	return out
}

// Status describes the last reload.
type Status struct {
	LoadedAt    time.Time `json:"loaded_at"`
	Occurrences int       `json:"occurrences"`
	Truncated   []string  `json:"truncated"`
}

func (s *EventService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		LoadedAt:    s.loadedAt,
		Occurrences: len(s.occurrences),
		Truncated:   slices.Clone(s.truncated),
	}
}

func validateEvent(ev model.Event) error {
	switch {
	case ev.Name == "":
		return invalid("name is required")
	case ev.Color == "":
		return invalid("color is required")
	case ev.Date.IsZero():
		return invalid("date is required")
	case ev.StartTime.IsZero() || ev.EndTime.IsZero():
		return invalid("start and end time are required")
	case !ev.EndTime.After(ev.StartTime):
		return invalid("end time must be after start time")
	}
	return nil
}

func cleanParticipants(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" || slices.Contains(out, p) {
			continue
		}
		out = append(out, p)
	}
	return out
}
