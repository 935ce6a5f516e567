// Package session keeps login sessions in memory with a sliding TTL.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lingoleap/lingoleap-hub/internal/domain/account"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
	"github.com/lingoleap/lingoleap-hub/pkg/logger"
	"github.com/lingoleap/lingoleap-hub/pkg/timeutil"
)

// DefaultTTL is how long an idle session stays valid.
const DefaultTTL = 24 * time.Hour

// Registry maps opaque tokens to usernames.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]account.Session
	ttl      time.Duration
	clock    timeutil.Clock
	log      *logger.Logger
}

// NewRegistry creates an empty registry. A zero ttl uses DefaultTTL.
func NewRegistry(ttl time.Duration, clock timeutil.Clock, log *logger.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		sessions: make(map[string]account.Session),
		ttl:      ttl,
		clock:    clock,
		log:      log.With(logger.Component("sessions")),
	}
}

// Create opens a new session for u.
func (r *Registry) Create(u shared.Username) account.Session {
	now := r.clock.Now()
	s := account.Session{
		Token:     uuid.NewString(),
		Username:  u,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}

	r.mu.Lock()
	r.sessions[s.Token] = s
	r.mu.Unlock()
	return s
}

// Lookup returns the session for token and extends its expiry.
func (r *Registry) Lookup(token string) (account.Session, error) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return account.Session{}, shared.ErrSessionNotFound
	}
	if s.Expired(now) {
		delete(r.sessions, token)
		return account.Session{}, shared.ErrSessionExpired
	}
	s.ExpiresAt = now.Add(r.ttl)
	r.sessions[token] = s
	return s, nil
}

// Delete ends a session. It reports whether the token existed.
func (r *Registry) Delete(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sessions[token]
	delete(r.sessions, token)
	return ok
}

// Len returns the number of live and not yet swept sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for token, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, token)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx ends.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debug("swept expired sessions", logger.Int("count", n))
			}
		}
	}
}
