// Package event defines the immutable events recorded while a session's tool
// uses are gated, approved and committed.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of session event.
type Type string

const (
	TypePromptAccepted Type = "session.prompt"
	TypeModelResponded Type = "session.model_responded"
	TypeModelFailed    Type = "session.model_failed"
	TypeLimitReached   Type = "session.limit_reached"

	TypeToolAutoApplied      Type = "tool.auto_applied"
	TypeApprovalRequested    Type = "tool.approval_requested"
	TypeToolApproved         Type = "tool.approved"
	TypeToolRejected         Type = "tool.rejected"
	TypeChangeCommitted      Type = "tool.committed"
	TypeChangeCommitFailed   Type = "tool.commit_failed"
	TypeConfirmationMismatch Type = "tool.confirmation_mismatch"
)

// SessionEvent is a single append-only entry of a session's ledger.
type SessionEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsApproval reports whether the event records operator approval.
func (e *SessionEvent) IsApproval() bool {
	return e.Type == TypeToolApproved
}
