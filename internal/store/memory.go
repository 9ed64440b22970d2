package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"planner/internal/model"
)

// Memory is an in-process Store. Records are copied on the way in and out
// so callers never share slices with the map.
type Memory struct {
	mu     sync.RWMutex
	events map[string]model.Event
	users  map[string]model.User
	creds  map[string]Credential // by lower-cased email
}

func NewMemory() *Memory {
	return &Memory{
		events: make(map[string]model.Event),
		users:  make(map[string]model.User),
		creds:  make(map[string]Credential),
	}
}

func (m *Memory) Close() {}

func (m *Memory) CreateEvent(_ context.Context, e model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; ok {
		return ErrConflict
	}
	m.events[e.ID] = e.Clone()
	return nil
}

func (m *Memory) GetEvent(_ context.Context, id string) (model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return e.Clone(), nil
}

func (m *Memory) UpdateEvent(_ context.Context, e model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; !ok {
		return ErrNotFound
	}
	m.events[e.ID] = e.Clone()
	return nil
}

func (m *Memory) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *Memory) ListEvents(_ context.Context, q EventQuery) ([]model.Event, error) {
	m.mu.RLock()
	out := make([]model.Event, 0, len(m.events))
	for _, e := range m.events {
		if q.matches(e) {
			out = append(out, e.Clone())
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Event) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) CreateUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return ErrConflict
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) UpdateUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *Memory) ListUsers(_ context.Context) ([]model.User, error) {
	m.mu.RLock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.User) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) CreateCredential(_ context.Context, c Credential) error {
	key := strings.ToLower(c.Email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[key]; ok {
		return ErrConflict
	}
	c.Email = key
	m.creds[key] = c
	return nil
}

func (m *Memory) GetCredentialByEmail(_ context.Context, email string) (Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[strings.ToLower(email)]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) DeleteCredential(_ context.Context, email string) error {
	key := strings.ToLower(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[key]; !ok {
		return ErrNotFound
	}
	delete(m.creds, key)
	return nil
}
