package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
)

// Store is a SQLite implementation of SessionStore and UserStore.
type Store struct {
	db *sql.DB
}

var (
	_ ports.SessionStore = (*Store)(nil)
	_ ports.UserStore    = (*Store)(nil)
)

// New opens (or creates) the database at dbPath and initializes the schema.
// Use ":memory:" for an ephemeral database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer keeps SQLite's locking simple and makes ":memory:" share one database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save upserts the session.
func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	return s.upsert(ctx, "sessions", session.ID, session.Data, session.CreatedAt, session.UpdatedAt)
}

// Load retrieves the session.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	data, created, updated, err := s.get(ctx, "sessions", sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Session{ID: sessionID, Data: data, CreatedAt: created, UpdatedAt: updated}, nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns stored session IDs, most recently updated first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveUser upserts the user.
func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	return s.upsert(ctx, "users", user.ID, user.Data, user.CreatedAt, user.UpdatedAt)
}

// LoadUser retrieves the user.
func (s *Store) LoadUser(ctx context.Context, userID string) (*domain.User, error) {
	data, created, updated, err := s.get(ctx, "users", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.User{ID: userID, Data: data, CreatedAt: created, UpdatedAt: updated}, nil
}

// DeleteUser removes the user.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// table is always one of the fixed names above, never user input
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

	query := fmt.Sprintf(`INSERT INTO %s (id, data, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`, table)
	if _, err := s.db.ExecContext(ctx, query, id, string(payload), created.UTC(), updated.UTC()); err != nil {
		return fmt.Errorf("failed to save %s row: %w", table, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, table, id string) (map[string]any, time.Time, time.Time, error) {
	var (
		payload          string
		created, updated time.Time
	)
	query := fmt.Sprintf(`SELECT data, created_at, updated_at FROM %s WHERE id = ?`, table)
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&payload, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, time.Time{}, err
		}
		return nil, time.Time{}, time.Time{}, fmt.Errorf("failed to get %s row: %w", table, err)
	}

	data := make(map[string]any)
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("failed to unmarshal %s data: %w", table, err)
	}
	return data, created, updated, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
