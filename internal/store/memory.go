package store

import (
	"context"
	"sort"
	"sync"

	"timekeep/internal/model"
)

// Memory is a process-local backend guarded by a single RWMutex. It is the
// default for tests and for running without a database file.
type Memory struct {
	mu sync.RWMutex

	usersByID      map[string]model.User
	userIDByName   map[string]string
	sessionsByID   map[string]model.Session
	timersByID     map[string]model.Timer
	timerIDsByUser map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		usersByID:      make(map[string]model.User),
		userIDByName:   make(map[string]string),
		sessionsByID:   make(map[string]model.Session),
		timersByID:     make(map[string]model.Timer),
		timerIDsByUser: make(map[string][]string),
	}
}

// Open returns the repository bundle backed by this instance.
func (m *Memory) Open() Store {
	return Store{
		Users:    memoryUsers{m},
		Sessions: memorySessions{m},
		Timers:   memoryTimers{m},
	}
}

type memoryUsers struct{ m *Memory }

func (r memoryUsers) Create(ctx context.Context, user model.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.userIDByName[user.Username]; ok {
		return ErrUsernameTaken
	}
	r.m.usersByID[user.ID] = user
	r.m.userIDByName[user.Username] = user.ID
	return nil
}

func (r memoryUsers) FindByUsername(ctx context.Context, username string) (model.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	id, ok := r.m.userIDByName[username]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return r.m.usersByID[id], nil
}

func (r memoryUsers) FindByID(ctx context.Context, id string) (model.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	user, ok := r.m.usersByID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

type memorySessions struct{ m *Memory }

func (r memorySessions) Create(ctx context.Context, session model.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.sessionsByID[session.ID] = session
	return nil
}

func (r memorySessions) Find(ctx context.Context, sessionID string) (model.Session, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	sess, ok := r.m.sessionsByID[sessionID]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return sess, nil
}

func (r memorySessions) Delete(ctx context.Context, sessionID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.sessionsByID, sessionID)
	return nil
}

type memoryTimers struct{ m *Memory }

func (r memoryTimers) Create(ctx context.Context, timer model.Timer) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	r.m.timersByID[timer.ID] = timer
	r.m.timerIDsByUser[timer.UserID] = append(r.m.timerIDsByUser[timer.UserID], timer.ID)
	return nil
}

func (r memoryTimers) Get(ctx context.Context, id string) (model.Timer, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	timer, ok := r.m.timersByID[id]
	if !ok {
		return model.Timer{}, ErrNotFound
	}
	return timer, nil
}

func (r memoryTimers) ListByUser(ctx context.Context, userID string) ([]model.Timer, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	ids := r.m.timerIDsByUser[userID]
	result := make([]model.Timer, 0, len(ids))
	for _, id := range ids {
		result = append(result, r.m.timersByID[id])
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Start != result[j].Start {
			return result[i].Start < result[j].Start
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r memoryTimers) Stop(ctx context.Context, id string, end int64) (model.Timer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	timer, ok := r.m.timersByID[id]
	if !ok {
		return model.Timer{}, ErrNotFound
	}
	if !timer.Active {
		return model.Timer{}, ErrTimerAlreadyStopped
	}
	timer.End = end
	timer.Active = false
	r.m.timersByID[id] = timer
	return timer, nil
}
