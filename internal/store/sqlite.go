package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"timekeep/internal/model"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS timers (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		description TEXT NOT NULL,
		start_ms INTEGER NOT NULL,
		end_ms INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_timers_user ON timers(user_id)`,
}

// OpenSQLite opens (or creates) the database at path and ensures the schema
// is present.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path must be provided")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

// SQLite is the persistent backend.
type SQLite struct {
	db *sql.DB
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Open() Store {
	return Store{
		Users:    sqliteUsers{s.db},
		Sessions: sqliteSessions{s.db},
		Timers:   sqliteTimers{s.db},
	}
}

type sqliteUsers struct{ db *sql.DB }

func (r sqliteUsers) Create(ctx context.Context, user model.User) error {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE username = ?`, user.Username,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if exists > 0 {
		return ErrUsernameTaken
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r sqliteUsers) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username))
}

func (r sqliteUsers) FindByID(ctx context.Context, id string) (model.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (r sqliteUsers) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

type sqliteSessions struct{ db *sql.DB }

func (r sqliteSessions) Create(ctx context.Context, session model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at) VALUES (?, ?, ?)`,
		session.ID, session.UserID, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r sqliteSessions) Find(ctx context.Context, sessionID string) (model.Session, error) {
	var s model.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&s.ID, &s.UserID, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("scan session: %w", err)
	}
	return s, nil
}

func (r sqliteSessions) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

type sqliteTimers struct{ db *sql.DB }

func (r sqliteTimers) Create(ctx context.Context, timer model.Timer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO timers (id, user_id, description, start_ms, end_ms, active) VALUES (?, ?, ?, ?, ?, ?)`,
		timer.ID, timer.UserID, timer.Description, timer.Start, timer.End, boolToInt(timer.Active),
	)
	if err != nil {
		return fmt.Errorf("insert timer: %w", err)
	}
	return nil
}

func (r sqliteTimers) Get(ctx context.Context, id string) (model.Timer, error) {
	var t model.Timer
	var active int
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, description, start_ms, end_ms, active FROM timers WHERE id = ?`, id,
	).Scan(&t.ID, &t.UserID, &t.Description, &t.Start, &t.End, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Timer{}, ErrNotFound
	}
	if err != nil {
		return model.Timer{}, fmt.Errorf("scan timer: %w", err)
	}
	t.Active = active != 0
	return t, nil
}

func (r sqliteTimers) ListByUser(ctx context.Context, userID string) ([]model.Timer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, description, start_ms, end_ms, active FROM timers
		 WHERE user_id = ? ORDER BY start_ms, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	defer rows.Close()

	result := make([]model.Timer, 0)
	for rows.Next() {
		var t model.Timer
		var active int
		if err := rows.Scan(&t.ID, &t.UserID, &t.Description, &t.Start, &t.End, &active); err != nil {
			return nil, fmt.Errorf("scan timer: %w", err)
		}
		t.Active = active != 0
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	return result, nil
}

func (r sqliteTimers) Stop(ctx context.Context, id string, end int64) (model.Timer, error) {
	// Single-statement update keeps the active->stopped transition atomic.
	res, err := r.db.ExecContext(ctx,
		`UPDATE timers SET end_ms = ?, active = 0 WHERE id = ? AND active = 1`, end, id)
	if err != nil {
		return model.Timer{}, fmt.Errorf("stop timer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Timer{}, fmt.Errorf("stop timer: %w", err)
	}
	if n == 0 {
		timer, getErr := r.Get(ctx, id)
		if getErr != nil {
			return model.Timer{}, getErr
		}
		if !timer.Active {
			return model.Timer{}, ErrTimerAlreadyStopped
		}
		return model.Timer{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
