// Package eventstore defines the port interface for the append-only session ledger.
package eventstore

import (
	"context"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain/event"
)

// Store is the port interface for appending and loading session events.
type Store interface {
	// Append persists a new event. The ID and CreatedAt are assigned when empty.
	Append(ctx context.Context, ev *event.SessionEvent) error

	// LoadBySession returns all events for the session in append order.
	LoadBySession(ctx context.Context, sessionID string) ([]event.SessionEvent, error)

	// HasApproval reports whether an approval event exists for the tool use.
	HasApproval(ctx context.Context, sessionID, toolUseID string) (bool, error)
}

// Forgetter is implemented by ledgers that do not outlive their sessions.
// Forget drops every event of a discarded session.
type Forgetter interface {
	Forget(ctx context.Context, sessionID string) error
}
