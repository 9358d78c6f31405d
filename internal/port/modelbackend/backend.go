// Package modelbackend defines the port to the tool-calling text generation
// service and the JSON contract exchanged with it.
package modelbackend

import (
	"context"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain/message"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/tool"
)

// Backend sends the full conversation and returns the next assistant turn.
type Backend interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Request is the body posted to the model backend.
type Request struct {
	SessionID     string            `json:"sessionId"`
	Messages      []message.Message `json:"messages"`
	CurrentScript *string           `json:"currentScript"`
	CurrentAsset  *string           `json:"currentAsset"`
	Tools         []tool.Spec       `json:"tools,omitempty"`
}

// ServerResult is bookkeeping the backend attached to a tool use.
type ServerResult struct {
	Message              string `json:"message"`
	RequiresClientAction bool   `json:"requires_client_action,omitempty"`
}

// ToolUse is one tool call in a response.
type ToolUse struct {
	ToolUseID            string         `json:"tool_use_id"`
	ToolName             string         `json:"tool_name"`
	ToolInput            map[string]any `json:"tool_input"`
	RequiresConfirmation bool           `json:"requires_confirmation,omitempty"`
	Result               *ServerResult  `json:"result,omitempty"`
}

// Block converts the tool use into a conversation content block.
func (u *ToolUse) Block() message.ToolUse {
	return message.ToolUse{ID: u.ToolUseID, Name: u.ToolName, Input: u.ToolInput}
}

// Response is the model backend's answer.
type Response struct {
	Text              string    `json:"text"`
	ToolUses          []ToolUse `json:"tool_uses"`
	NeedsConfirmation bool      `json:"needs_confirmation"`
	StopReason        string    `json:"stop_reason"`
}

// Message builds the assistant message holding every parsed block: the text
// first when present, then tool uses in response order.
func (r *Response) Message() message.Message {
	blocks := make([]message.Block, 0, len(r.ToolUses)+1)
	if r.Text != "" {
		blocks = append(blocks, message.Text{Text: r.Text})
	}
	for i := range r.ToolUses {
		blocks = append(blocks, r.ToolUses[i].Block())
	}
	return message.Message{Role: message.RoleAssistant, Content: blocks}
}
