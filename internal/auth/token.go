package auth

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"timekeep/internal/model"
)

// DefaultTokenTTL bounds how long a minted connection token stays
// consumable. The token only has to survive the gap between page render and
// the WebSocket dial.
const DefaultTokenTTL = 2 * time.Minute

type tokenEntry struct {
	user      model.User
	expiresAt time.Time
}

// TokenRegistry is the live set of connection tokens. Tokens are minted per
// authenticated page load, held in process memory only, and consumed by the
// first upgrade that presents them. The set is wiped on restart.
type TokenRegistry struct {
	mu     sync.Mutex
	tokens map[string]tokenEntry
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewTokenRegistry(ttl time.Duration, clock clockwork.Clock) *TokenRegistry {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenRegistry{
		tokens: make(map[string]tokenEntry),
		ttl:    ttl,
		clock:  clock,
	}
}

// Issue mints a fresh token bound to the user. A user may hold several
// outstanding tokens at once (one per open tab).
func (tr *TokenRegistry) Issue(user model.User) (string, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return "", err
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.tokens[token] = tokenEntry{user: user, expiresAt: tr.clock.Now().Add(tr.ttl)}
	return token, nil
}

// Consume removes the token from the live set and returns its user. A token
// is usable exactly once; unknown and expired tokens both report false.
func (tr *TokenRegistry) Consume(token string) (model.User, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	entry, ok := tr.tokens[token]
	if !ok {
		return model.User{}, false
	}
	delete(tr.tokens, token)
	if tr.clock.Now().After(entry.expiresAt) {
		return model.User{}, false
	}
	return entry.user, true
}

// Sweep drops expired tokens that were never consumed.
func (tr *TokenRegistry) Sweep() {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	now := tr.clock.Now()
	for token, entry := range tr.tokens {
		if now.After(entry.expiresAt) {
			delete(tr.tokens, token)
		}
	}
}

// RunSweeper sweeps on every TTL tick until stop is closed.
func (tr *TokenRegistry) RunSweeper(stop <-chan struct{}) {
	ticker := tr.clock.NewTicker(tr.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			tr.Sweep()
		}
	}
}
