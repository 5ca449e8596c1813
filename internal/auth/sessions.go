// Package auth converts credentials into sessions and sessions into verified
// identities, and mints the single-use tokens that authorize WebSocket
// upgrades.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"timekeep/internal/model"
	"timekeep/internal/store"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown username or
	// a password mismatch; callers must not be able to tell which.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUsernameTaken is returned by Signup for a duplicate username.
	ErrUsernameTaken = errors.New("username already taken")
)

// SessionManager owns the cookie-session side of authentication.
type SessionManager struct {
	users    store.UserRepository
	sessions store.SessionRepository
	clock    clockwork.Clock
}

func NewSessionManager(users store.UserRepository, sessions store.SessionRepository, clock clockwork.Clock) *SessionManager {
	return &SessionManager{users: users, sessions: sessions, clock: clock}
}

// Authenticate resolves a session id to its owning user. An absent, unknown
// or orphaned session yields (nil, nil): not being logged in is not an
// error.
func (sm *SessionManager) Authenticate(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, nil
	}
	sess, err := sm.sessions.Find(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	user, err := sm.users.FindByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session user: %w", err)
	}
	return &user, nil
}

// Login verifies the credentials and creates a fresh session. Existing
// sessions for the same user stay valid.
func (sm *SessionManager) Login(ctx context.Context, username, password string) (string, error) {
	user, err := sm.users.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return sm.createSession(ctx, user.ID)
}

// Signup creates the user and logs them straight in.
func (sm *SessionManager) Signup(ctx context.Context, username, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    sm.clock.Now().UnixMilli(),
	}
	if err := sm.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return "", ErrUsernameTaken
		}
		return "", fmt.Errorf("create user: %w", err)
	}
	return sm.createSession(ctx, user.ID)
}

// Logout deletes the session. Deleting an unknown session is not an error.
func (sm *SessionManager) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := sm.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (sm *SessionManager) createSession(ctx context.Context, userID string) (string, error) {
	id, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	sess := model.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: sm.clock.Now().UnixMilli(),
	}
	if err := sm.sessions.Create(ctx, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
