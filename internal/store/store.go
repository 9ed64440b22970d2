// Package store persists base events, user profiles and login credentials.
//
// Two implementations exist: Memory for tests and single-process use, and
// Postgres on a pgx pool. Both order results the same way so callers can
// swap them freely.
package store

import (
	"context"
	"errors"
	"time"

	"planner/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a create would overwrite an existing record.
var ErrConflict = errors.New("already exists")

// EventQuery narrows ListEvents on Event.Date, inclusively. A zero bound
// is open.
type EventQuery struct {
	From time.Time
	To   time.Time
}

func (q EventQuery) matches(e model.Event) bool {
	if !q.From.IsZero() && e.Date.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && e.Date.After(q.To) {
		return false
	}
	return true
}

// EventStore holds base (unexpanded) events.
type EventStore interface {
	CreateEvent(ctx context.Context, e model.Event) error
	GetEvent(ctx context.Context, id string) (model.Event, error)
	UpdateEvent(ctx context.Context, e model.Event) error
	DeleteEvent(ctx context.Context, id string) error
	// ListEvents returns events ordered by date, then start time.
	ListEvents(ctx context.Context, q EventQuery) ([]model.Event, error)
}

// UserStore holds user profiles.
type UserStore interface {
	CreateUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	UpdateUser(ctx context.Context, u model.User) error
	DeleteUser(ctx context.Context, id string) error
	// ListUsers returns users ordered by name.
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Credential is a login record. Email is stored lower-cased.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type CredentialStore interface {
	CreateCredential(ctx context.Context, c Credential) error
	GetCredentialByEmail(ctx context.Context, email string) (Credential, error)
	DeleteCredential(ctx context.Context, email string) error
}

// Store bundles every store the services need.
type Store interface {
	EventStore
	UserStore
	CredentialStore
	Close()
}
