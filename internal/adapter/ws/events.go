package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventSessionState = "session.state"
	EventToolPending  = "tool.pending"
	EventToolResolved = "tool.resolved"
	EventToolResult   = "tool.result"
	EventAssistant    = "assistant.message"
)

// BroadcastEvent marshals a typed event and broadcasts it to clients of the
// session carried by ctx.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:      eventType,
		SessionID: sessionOf(ctx),
		Payload:   json.RawMessage(data),
	})
}
