package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS turnstile_sessions (
	id TEXT PRIMARY KEY,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS turnstile_users (
	id TEXT PRIMARY KEY,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`

// Store is a PostgreSQL implementation of SessionStore and UserStore.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ ports.SessionStore = (*Store)(nil)
	_ ports.UserStore    = (*Store)(nil)
)

// Open connects using cfg and ensures the schema exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s, err := NewFromPool(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewFromPool wraps an existing pool. The schema is created if missing.
func NewFromPool(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	return s.upsert(ctx, "turnstile_sessions", session.ID, session.Data, session.CreatedAt, session.UpdatedAt)
}

func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	data, created, updated, err := s.get(ctx, "turnstile_sessions", sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Session{ID: sessionID, Data: data, CreatedAt: created, UpdatedAt: updated}, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM turnstile_sessions WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM turnstile_sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan session ids: %w", err)
	}
	return ids, nil
}

func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	return s.upsert(ctx, "turnstile_users", user.ID, user.Data, user.CreatedAt, user.UpdatedAt)
}

func (s *Store) LoadUser(ctx context.Context, userID string) (*domain.User, error) {
	data, created, updated, err := s.get(ctx, "turnstile_users", userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.User{ID: userID, Data: data, CreatedAt: created, UpdatedAt: updated}, nil
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM turnstile_users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, table, id string, data map[string]any, created, updated time.Time) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s data: %w", table, err)
	}
	if created.IsZero() {
		created = time.Now()
	}
	if updated.IsZero() {
		updated = created
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, data, created_at, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`, table)
	if _, err := s.pool.Exec(ctx, query, id, payload, created, updated); err != nil {
		return fmt.Errorf("failed to save %s row: %w", table, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, table, id string) (map[string]any, time.Time, time.Time, error) {
	var (
		payload          []byte
		created, updated time.Time
	)
	query := fmt.Sprintf(`SELECT data, created_at, updated_at FROM %s WHERE id = $1`, table)
	if err := s.pool.QueryRow(ctx, query, id).Scan(&payload, &created, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, time.Time{}, time.Time{}, err
		}
		return nil, time.Time{}, time.Time{}, fmt.Errorf("failed to get %s row: %w", table, err)
	}

	data := make(map[string]any)
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("failed to unmarshal %s data: %w", table, err)
	}
	return data, created, updated, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
