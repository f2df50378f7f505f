package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by [Registry.Get] for an unknown session id.
var ErrNotFound = errors.New("session: not found")

// RegistryConfig configures a [Registry].
type RegistryConfig struct {
	// TTL is how long an idle session survives before [Registry.Sweep]
	// removes it. Zero disables expiry.
	TTL time.Duration

	// MaxTranscriptWords caps each session's retained transcript length.
	// Zero means unlimited.
	MaxTranscriptWords int

	// Now overrides the clock. Nil means time.Now. Intended for tests.
	Now func() time.Time
}

// Registry is the process-scoped store of active sessions.
// It is safe for concurrent use.
type Registry struct {
	ttl                time.Duration
	maxTranscriptWords int
	now                func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty [Registry].
func NewRegistry(cfg RegistryConfig) *Registry {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		ttl:                cfg.TTL,
		maxTranscriptWords: cfg.MaxTranscriptWords,
		now:                now,
		sessions:           make(map[string]*Session),
	}
}

// Create registers a new session under a generated id and returns it.
func (r *Registry) Create() *Session {
	s := newSession(uuid.NewString(), r.now, r.maxTranscriptWords)

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	slog.Info("session created", "session_id", s.ID)
	return s
}

// Get returns the session with the given id, or [ErrNotFound].
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete removes the session with the given id. Deleting an unknown id is a
// no-op; the call is idempotent. It reports whether a session was removed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		slog.Info("session deleted", "session_id", id)
	}
	return ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes sessions idle longer than the configured TTL and returns how
// many were evicted. A zero TTL makes Sweep a no-op.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []string
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if len(expired) > 0 {
		slog.Info("evicted idle sessions", "count", len(expired), "ttl", r.ttl)
	}
	return len(expired)
}

// RunJanitor sweeps expired sessions every interval until ctx is cancelled.
// It returns nil on context cancellation, making it suitable for errgroup.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) error {
	if r.ttl <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}
