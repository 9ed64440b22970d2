package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	appLog "planner/internal/log"
	"planner/internal/model"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

const connectAttempts = 5

// NewPool creates and validates a pgxpool connection pool.
// It retries a few times to accommodate a database container still starting.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		appLog.Error("db connect attempt failed", err, "attempt", attempt, "of", connectAttempts)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect to postgres: %w", err)
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	color      TEXT NOT NULL DEFAULT '',
	avatar     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
	email         TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	color        TEXT NOT NULL DEFAULT '',
	start_time   TIMESTAMPTZ NOT NULL,
	end_time     TIMESTAMPTZ NOT NULL,
	date         TIMESTAMPTZ NOT NULL,
	recurrence   TEXT NOT NULL DEFAULT 'none',
	location     TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	user_id      TEXT NOT NULL,
	participants TEXT[] NOT NULL DEFAULT '{}',
	is_shared    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS events_date_idx ON events (date, start_time);
`

// Postgres implements Store on a pgx pool.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the tables if they do not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.db.Close()
}

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

const eventColumns = `id, name, color, start_time, end_time, date, recurrence,
	location, notes, user_id, participants, is_shared, created_at, updated_at`

func scanEvent(row pgx.Row) (model.Event, error) {
	var (
		e   model.Event
		rec string
	)
	err := row.Scan(&e.ID, &e.Name, &e.Color, &e.StartTime, &e.EndTime, &e.Date, &rec,
		&e.Location, &e.Notes, &e.UserID, &e.Participants, &e.IsShared, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return model.Event{}, err
	}
	e.Recurrence = model.ParseRecurrence(rec)
	if e.Participants == nil {
		e.Participants = []string{}
	}
	return e, nil
}

func participants(e model.Event) []string {
	if e.Participants == nil {
		return []string{}
	}
	return e.Participants
}

func (p *Postgres) CreateEvent(ctx context.Context, e model.Event) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.Name, e.Color, e.StartTime, e.EndTime, e.Date, string(e.Recurrence),
		e.Location, e.Notes, e.UserID, participants(e), e.IsShared, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr("insert event", err)
	}
	return nil
}

func (p *Postgres) GetEvent(ctx context.Context, id string) (model.Event, error) {
	e, err := scanEvent(p.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Event{}, ErrNotFound
		}
		return model.Event{}, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (p *Postgres) UpdateEvent(ctx context.Context, e model.Event) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE events SET name = $2, color = $3, start_time = $4, end_time = $5, date = $6,
		        recurrence = $7, location = $8, notes = $9, participants = $10,
		        is_shared = $11, updated_at = $12
		 WHERE id = $1`,
		e.ID, e.Name, e.Color, e.StartTime, e.EndTime, e.Date, string(e.Recurrence),
		e.Location, e.Notes, participants(e), e.IsShared, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteEvent(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListEvents(ctx context.Context, q EventQuery) ([]model.Event, error) {
	var (
		where []string
		args  []any
	)
	if !q.From.IsZero() {
		args = append(args, q.From)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		where = append(where, fmt.Sprintf("date <= $%d", len(args)))
	}
	sql := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY date, start_time, id`

	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (p *Postgres) CreateUser(ctx context.Context, u model.User) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO users (id, name, email, color, avatar, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Name, u.Email, u.Color, u.Avatar, u.CreatedAt,
	)
	if err != nil {
		return mapWriteErr("insert user", err)
	}
	return nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := p.db.QueryRow(ctx,
		`SELECT id, name, email, color, avatar, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Color, &u.Avatar, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (p *Postgres) UpdateUser(ctx context.Context, u model.User) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE users SET name = $2, email = $3, color = $4, avatar = $5 WHERE id = $1`,
		u.ID, u.Name, u.Email, u.Color, u.Avatar,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteUser(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, name, email, color, avatar, created_at FROM users ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Color, &u.Avatar, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (p *Postgres) CreateCredential(ctx context.Context, c Credential) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO credentials (email, user_id, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)`,
		strings.ToLower(c.Email), c.UserID, c.PasswordHash, c.CreatedAt,
	)
	if err != nil {
		return mapWriteErr("insert credential", err)
	}
	return nil
}

func (p *Postgres) GetCredentialByEmail(ctx context.Context, email string) (Credential, error) {
	var c Credential
	err := p.db.QueryRow(ctx,
		`SELECT email, user_id, password_hash, created_at FROM credentials WHERE email = $1`,
		strings.ToLower(email),
	).Scan(&c.Email, &c.UserID, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

func (p *Postgres) DeleteCredential(ctx context.Context, email string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM credentials WHERE email = $1`, strings.ToLower(email))
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
