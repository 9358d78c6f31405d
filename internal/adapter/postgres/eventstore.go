package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain/event"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/eventstore"
)

// EventStore implements eventstore.Store using PostgreSQL (append-only).
type EventStore struct {
	pool *pgxpool.Pool
}

var _ eventstore.Store = (*EventStore)(nil)

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts a new event into the session_events table.
func (s *EventStore) Append(ctx context.Context, ev *event.SessionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	var payload any
	if len(ev.Payload) > 0 {
		payload = ev.Payload
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_events (id, session_id, tool_use_id, tool_name, event_type, payload, request_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.SessionID, ev.ToolUseID, ev.ToolName, string(ev.Type), payload, ev.RequestID, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// LoadBySession returns all events for the session in append order.
func (s *EventStore) LoadBySession(ctx context.Context, sessionID string) ([]event.SessionEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, tool_use_id, tool_name, event_type, COALESCE(payload, 'null'::jsonb), request_id, created_at
		 FROM session_events WHERE session_id = $1 ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load events by session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var events []event.SessionEvent
	for rows.Next() {
		var ev event.SessionEvent
		var typ string
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.ToolUseID, &ev.ToolName, &typ, &ev.Payload, &ev.RequestID, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = event.Type(typ)
		if string(ev.Payload) == "null" {
			ev.Payload = nil
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// HasApproval reports whether the operator approved the tool use.
func (s *EventStore) HasApproval(ctx context.Context, sessionID, toolUseID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM session_events WHERE session_id = $1 AND tool_use_id = $2 AND event_type = $3)`,
		sessionID, toolUseID, string(event.TypeToolApproved)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check approval %s/%s: %w", sessionID, toolUseID, err)
	}
	return ok, nil
}
