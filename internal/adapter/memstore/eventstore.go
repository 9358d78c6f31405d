package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain/event"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/eventstore"
)

// EventStore is an append-only in-memory session ledger.
type EventStore struct {
	mu     sync.RWMutex
	events map[string][]event.SessionEvent
}

var (
	_ eventstore.Store     = (*EventStore)(nil)
	_ eventstore.Forgetter = (*EventStore)(nil)
)

// NewEventStore creates an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{events: make(map[string][]event.SessionEvent)}
}

func (s *EventStore) Append(_ context.Context, ev *event.SessionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.SessionID] = append(s.events[ev.SessionID], *ev)
	return nil
}

func (s *EventStore) LoadBySession(_ context.Context, sessionID string) ([]event.SessionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[sessionID]
	out := make([]event.SessionEvent, len(src))
	copy(out, src)
	return out, nil
}

func (s *EventStore) HasApproval(_ context.Context, sessionID, toolUseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.events[sessionID] {
		ev := &s.events[sessionID][i]
		if ev.ToolUseID == toolUseID && ev.IsApproval() {
			return true, nil
		}
	}
	return false, nil
}

// Forget drops the events of a discarded session.
func (s *EventStore) Forget(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, sessionID)
	return nil
}

// Sessions is the number of sessions with at least one event.
func (s *EventStore) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
