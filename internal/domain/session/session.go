// Package session defines the editing session: an append-only conversation
// with a bounded operator turn budget and at most one tool execution
// awaiting approval.
package session

import (
	"time"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain/message"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/policy"
)

// DefaultMaxTurns is the operator turn budget of a new session.
const DefaultMaxTurns = 10

// PendingToolExecution is a tool use awaiting approval, rejection or a
// preview edit.
type PendingToolExecution struct {
	ToolUseID            string                `json:"tool_use_id"`
	ToolName             string                `json:"tool_name"`
	ToolInput            map[string]any        `json:"tool_input"`
	RequiresConfirmation bool                  `json:"requires_confirmation"`
	Classification       policy.Classification `json:"classification"`
	// ServerResult is the message the model backend attached to the tool use, if any.
	ServerResult string `json:"server_result,omitempty"`
}

// ToolUse rebuilds the content block the pending execution came from.
func (p *PendingToolExecution) ToolUse() message.ToolUse {
	return message.ToolUse{ID: p.ToolUseID, Name: p.ToolName, Input: p.ToolInput}
}

// Session is owned by one operator context. It is not safe for concurrent
// use; the session service serializes access.
type Session struct {
	ID            string
	TurnCount     int
	MaxTurns      int
	State         State
	CurrentScript *string
	CurrentAsset  *string
	CreatedAt     time.Time
	LastActive    time.Time

	// Pending is the single tool execution presented to the operator.
	Pending *PendingToolExecution

	messages []message.Message
	queue    []PendingToolExecution
	settled  []message.ToolResult
}

// New returns an empty session in the Idle state.
func New(id string, maxTurns int, now time.Time) *Session {
	if maxTurns < 1 {
		maxTurns = DefaultMaxTurns
	}
	return &Session{
		ID:         id,
		MaxTurns:   maxTurns,
		State:      StateIdle,
		CreatedAt:  now,
		LastActive: now,
	}
}

// Append adds m to the history. Operator prompts increment TurnCount first;
// assistant messages and tool-result deliveries do not.
func (s *Session) Append(m message.Message) {
	if m.IsPrompt() {
		s.TurnCount++
	}
	s.messages = append(s.messages, m)
}

// Messages returns a copy of the history.
func (s *Session) Messages() []message.Message {
	out := make([]message.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len is the number of messages in the history.
func (s *Session) Len() int { return len(s.messages) }

// Last returns the most recent message.
func (s *Session) Last() (message.Message, bool) {
	if len(s.messages) == 0 {
		return message.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// IsTurnLimitReached reports whether no further operator prompt may be submitted.
func (s *Session) IsTurnLimitReached() bool {
	return s.TurnCount >= s.MaxTurns
}

// NeedsModel reports whether the last message is a user message the model
// has not answered yet.
func (s *Session) NeedsModel() bool {
	last, ok := s.Last()
	return ok && last.Role == message.RoleUser
}

// Apply moves the session along ev.
func (s *Session) Apply(ev Event) error {
	to, err := Transition(s.State, ev)
	if err != nil {
		return err
	}
	s.State = to
	return nil
}

// Touch records activity for idle expiry.
func (s *Session) Touch(now time.Time) {
	s.LastActive = now
}

// Enqueue adds tool executions that wait behind the pending one.
func (s *Session) Enqueue(p ...PendingToolExecution) {
	s.queue = append(s.queue, p...)
}

// Queued returns a copy of the waiting tool executions.
func (s *Session) Queued() []PendingToolExecution {
	out := make([]PendingToolExecution, len(s.queue))
	copy(out, s.queue)
	return out
}

// PopQueued removes and returns the next waiting tool execution.
func (s *Session) PopQueued() (PendingToolExecution, bool) {
	if len(s.queue) == 0 {
		return PendingToolExecution{}, false
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next, true
}

// Settle records the result of one tool use from the current response.
func (s *Session) Settle(r message.ToolResult) {
	s.settled = append(s.settled, r)
}

// SettledCount is the number of results held for the current response.
func (s *Session) SettledCount() int { return len(s.settled) }

// FlushResults appends every held tool result as one user message. It
// reports false when there was nothing to flush.
func (s *Session) FlushResults() bool {
	if len(s.settled) == 0 {
		return false
	}
	s.Append(message.UserResults(s.settled...))
	s.settled = nil
	return true
}

// Snapshot is the read model of a session.
type Snapshot struct {
	ID            string                 `json:"id"`
	State         State                  `json:"state"`
	TurnCount     int                    `json:"turn_count"`
	MaxTurns      int                    `json:"max_turns"`
	LimitReached  bool                   `json:"limit_reached"`
	CurrentScript *string                `json:"current_script,omitempty"`
	CurrentAsset  *string                `json:"current_asset,omitempty"`
	Messages      []message.Message      `json:"messages"`
	Pending       *PendingToolExecution  `json:"pending,omitempty"`
	Queued        []PendingToolExecution `json:"queued,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	LastActive    time.Time              `json:"last_active"`
}

// Snapshot copies the session into its read model.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:            s.ID,
		State:         s.State,
		TurnCount:     s.TurnCount,
		MaxTurns:      s.MaxTurns,
		LimitReached:  s.IsTurnLimitReached(),
		CurrentScript: s.CurrentScript,
		CurrentAsset:  s.CurrentAsset,
		Messages:      s.Messages(),
		CreatedAt:     s.CreatedAt,
		LastActive:    s.LastActive,
	}
	if s.Pending != nil {
		p := *s.Pending
		snap.Pending = &p
	}
	if len(s.queue) > 0 {
		snap.Queued = s.Queued()
	}
	return snap
}
