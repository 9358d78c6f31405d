package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lpajunen/aiwebengine-assistant/internal/config"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/session"
)

// entry guards one session. mu is held for the whole of an operator action,
// model round trips included.
type entry struct {
	mu      sync.Mutex
	sess    *session.Session
	preview *Preview
}

// SessionService is the in-memory registry of editing sessions. Sessions are
// never persisted; idle ones are expired by the janitor.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	maxTurns int
	idleTTL  time.Duration
	now      func() time.Time

	// onDiscard runs after a session leaves the registry, outside any lock.
	onDiscard func(ctx context.Context, id string)
}

// NewSessionService creates an empty registry.
func NewSessionService(cfg config.Session) *SessionService {
	return &SessionService{
		sessions: make(map[string]*entry),
		maxTurns: cfg.MaxTurns,
		idleTTL:  cfg.IdleTTL,
		now:      time.Now,
	}
}

// OnDiscard registers fn to run for every session removed by Reset or Expire.
func (s *SessionService) OnDiscard(fn func(ctx context.Context, id string)) {
	s.onDiscard = fn
}

func (s *SessionService) discarded(ctx context.Context, ids ...string) {
	if s.onDiscard == nil {
		return
	}
	for _, id := range ids {
		s.onDiscard(ctx, id)
	}
}

// Create starts a new session with an empty history.
func (s *SessionService) Create(ctx context.Context) session.Snapshot {
	now := s.now()
	sess := session.New(uuid.NewString(), s.maxTurns, now)

	s.mu.Lock()
	s.sessions[sess.ID] = &entry{sess: sess}
	s.mu.Unlock()

	slog.InfoContext(ctx, "session created", "session_id", sess.ID, "max_turns", sess.MaxTurns)
	return sess.Snapshot()
}

// Get returns the snapshot of a session, waiting for any running action.
func (s *SessionService) Get(_ context.Context, id string) (session.Snapshot, error) {
	e, err := s.acquire(id, true)
	if err != nil {
		return session.Snapshot{}, err
	}
	defer e.mu.Unlock()
	return e.sess.Snapshot(), nil
}

// Reset discards a session and returns a fresh one with a new id.
func (s *SessionService) Reset(ctx context.Context, id string) (session.Snapshot, error) {
	e, err := s.acquire(id, false)
	if err != nil {
		return session.Snapshot{}, err
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	e.mu.Unlock()
	s.discarded(ctx, id)

	slog.InfoContext(ctx, "session reset", "session_id", id)
	return s.Create(ctx), nil
}

// Len is the number of live sessions.
func (s *SessionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// acquire locks the entry for id. Without wait, an entry locked by another
// action yields domain.ErrBusy.
func (s *SessionService) acquire(id string, wait bool) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	if wait {
		e.mu.Lock()
	} else if !e.mu.TryLock() {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrBusy)
	}

	// The janitor or a reset may have removed the entry while we waited.
	s.mu.RLock()
	current := s.sessions[id]
	s.mu.RUnlock()
	if current != e {
		e.mu.Unlock()
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return e, nil
}

// Expire removes sessions idle for longer than the configured TTL and
// returns how many were removed. Sessions in use are skipped.
func (s *SessionService) Expire(ctx context.Context) int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	var removed []string
	for id, e := range s.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.sess.LastActive.Before(cutoff) {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
		e.mu.Unlock()
	}
	s.mu.Unlock()

	s.discarded(ctx, removed...)
	if len(removed) > 0 {
		slog.InfoContext(ctx, "expired idle sessions", "count", len(removed))
	}
	return len(removed)
}

// StartJanitor runs Expire every interval until ctx is done.
func (s *SessionService) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Expire(ctx)
			}
		}
	}()
}
