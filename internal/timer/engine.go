// Package timer owns the create/stop/query lifecycle of timer records. No
// timer state is cached in memory: every operation round-trips to the
// repository, so the repository's single-record atomicity is the consistency
// boundary shared by all connections.
package timer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"timekeep/internal/model"
	"timekeep/internal/store"
)

// ErrNotFound is returned when a timer id does not resolve to a timer the
// requesting user owns. A foreign timer reports the same way as a missing
// one so ids cannot be probed.
var ErrNotFound = errors.New("timer not found")

// ErrAlreadyStopped is returned on a second stop of the same timer.
var ErrAlreadyStopped = errors.New("timer already stopped")

type Engine struct {
	timers store.TimerRepository
	clock  clockwork.Clock
}

func NewEngine(timers store.TimerRepository, clock clockwork.Clock) *Engine {
	return &Engine{timers: timers, clock: clock}
}

// List returns all of the user's timers, active and historical, ordered by
// start time then id.
func (e *Engine) List(ctx context.Context, userID string) ([]model.Timer, error) {
	timers, err := e.timers.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	return timers, nil
}

// Start creates a new active timer. There is no cap on concurrently active
// timers per user.
func (e *Engine) Start(ctx context.Context, userID, description string) (model.Timer, error) {
	timer := model.Timer{
		ID:          uuid.NewString(),
		UserID:      userID,
		Description: description,
		Start:       e.clock.Now().UnixMilli(),
		Active:      true,
	}
	if err := e.timers.Create(ctx, timer); err != nil {
		return model.Timer{}, fmt.Errorf("create timer: %w", err)
	}
	return timer, nil
}

// Stop closes the timer. The timer must belong to userID; a foreign or
// unknown id yields ErrNotFound, a second stop ErrAlreadyStopped.
func (e *Engine) Stop(ctx context.Context, userID, timerID string) (model.Timer, error) {
	existing, err := e.timers.Get(ctx, timerID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Timer{}, ErrNotFound
	}
	if err != nil {
		return model.Timer{}, fmt.Errorf("get timer: %w", err)
	}
	if existing.UserID != userID {
		return model.Timer{}, ErrNotFound
	}

	stopped, err := e.timers.Stop(ctx, timerID, e.clock.Now().UnixMilli())
	switch {
	case errors.Is(err, store.ErrTimerAlreadyStopped):
		return model.Timer{}, ErrAlreadyStopped
	case errors.Is(err, store.ErrNotFound):
		return model.Timer{}, ErrNotFound
	case err != nil:
		return model.Timer{}, fmt.Errorf("stop timer: %w", err)
	}
	return stopped, nil
}

// Project computes the read-time view of a timer: progress for an active
// timer, duration for a stopped one. It never mutates stored state.
func Project(timer model.Timer, now time.Time) model.TimerView {
	view := model.TimerView{
		ID:          timer.ID,
		Description: timer.Description,
		Start:       timer.Start,
		End:         timer.End,
		IsActive:    timer.Active,
	}
	if timer.Active {
		view.Progress = now.UnixMilli() - timer.Start
	} else {
		view.Duration = timer.End - timer.Start
	}
	return view
}

// ProjectAll maps Project over a slice.
func ProjectAll(timers []model.Timer, now time.Time) []model.TimerView {
	views := make([]model.TimerView, 0, len(timers))
	for _, t := range timers {
		views = append(views, Project(t, now))
	}
	return views
}
