// Package store defines the repositories the rest of the server is written
// against, plus the in-memory and SQLite implementations. A repository call
// is a single-record insert, lookup or update; that is the only consistency
// boundary the server relies on.
package store

import (
	"context"
	"errors"

	"timekeep/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUsernameTaken is returned by UserRepository.Create on a duplicate
	// username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrTimerAlreadyStopped is returned when stopping a timer that is no
	// longer active.
	ErrTimerAlreadyStopped = errors.New("timer already stopped")
)

type UserRepository interface {
	Create(ctx context.Context, user model.User) error
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session model.Session) error
	Find(ctx context.Context, sessionID string) (model.Session, error)
	// Delete removes the session; deleting an unknown session is not an
	// error.
	Delete(ctx context.Context, sessionID string) error
}

type TimerRepository interface {
	Create(ctx context.Context, timer model.Timer) error
	Get(ctx context.Context, id string) (model.Timer, error)
	// ListByUser returns the user's timers ordered by start time, then id.
	ListByUser(ctx context.Context, userID string) ([]model.Timer, error)
	// Stop sets End and clears Active. ErrNotFound on an unknown id,
	// ErrTimerAlreadyStopped if the timer is already inactive.
	Stop(ctx context.Context, id string, end int64) (model.Timer, error)
}

// Store bundles the three repositories a backend provides.
type Store struct {
	Users    UserRepository
	Sessions SessionRepository
	Timers   TimerRepository
}
