// Package message defines the conversation model exchanged with the model
// backend: messages made of typed content blocks.
package message

import (
	"encoding/json"
	"fmt"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Kind is the wire discriminator of a content block.
type Kind string

const (
	KindText       Kind = "text"
	KindToolUse    Kind = "tool_use"
	KindToolResult Kind = "tool_result"
)

// Block is one piece of message content. The set of implementations is closed:
// Text, ToolUse and ToolResult.
type Block interface {
	Kind() Kind
	block()
}

// Text is free-form prose.
type Text struct {
	Text string
}

// ToolUse is a structured action requested by the model backend.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult answers exactly one ToolUse.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (Text) Kind() Kind       { return KindText }
func (ToolUse) Kind() Kind    { return KindToolUse }
func (ToolResult) Kind() Kind { return KindToolResult }

func (Text) block()       {}
func (ToolUse) block()    {}
func (ToolResult) block() {}

// StringInput returns the named input field when it is a string.
func (u ToolUse) StringInput(field string) (string, bool) {
	v, ok := u.Input[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Message is one conversation entry.
type Message struct {
	Role    Role
	Content []Block
}

// UserText builds an operator prompt.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []Block{Text{Text: text}}}
}

// UserResults builds the user-role message that delivers tool results.
func UserResults(results ...ToolResult) Message {
	blocks := make([]Block, len(results))
	for i, r := range results {
		blocks[i] = r
	}
	return Message{Role: RoleUser, Content: blocks}
}

// IsPrompt reports whether m was authored by the operator, as opposed to a
// user-role message that only carries tool results.
func (m Message) IsPrompt() bool {
	if m.Role != RoleUser {
		return false
	}
	for _, b := range m.Content {
		if b.Kind() == KindToolResult {
			return false
		}
	}
	return true
}

// Text concatenates the text blocks of m.
func (m Message) Text() string {
	var out string
	for _, b := range m.Content {
		if t, ok := b.(Text); ok {
			if out != "" {
				out += "\n"
			}
			out += t.Text
		}
	}
	return out
}

// ToolUses returns the tool-use blocks of m in order.
func (m Message) ToolUses() []ToolUse {
	var out []ToolUse
	for _, b := range m.Content {
		if u, ok := b.(ToolUse); ok {
			out = append(out, u)
		}
	}
	return out
}

// ToolResults returns the tool-result blocks of m in order.
func (m Message) ToolResults() []ToolResult {
	var out []ToolResult
	for _, b := range m.Content {
		if r, ok := b.(ToolResult); ok {
			out = append(out, r)
		}
	}
	return out
}

// wireBlock is the flat JSON form read for every block kind.
type wireBlock struct {
	Type      Kind           `json:"type"`
	Text      string         `json:"text"`
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Input     map[string]any `json:"input"`
	ToolUseID string         `json:"tool_use_id"`
	Content   string         `json:"content"`
	IsError   bool           `json:"is_error"`
}

// Written forms: each kind always carries its required fields, even when empty.
type (
	wireText struct {
		Type Kind   `json:"type"`
		Text string `json:"text"`
	}
	wireToolUse struct {
		Type  Kind           `json:"type"`
		ID    string         `json:"id"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	}
	wireToolResult struct {
		Type      Kind   `json:"type"`
		ToolUseID string `json:"tool_use_id"`
		Content   string `json:"content"`
		IsError   bool   `json:"is_error,omitempty"`
	}
)

type wireMessage struct {
	Role    Role        `json:"role"`
	Content []wireBlock `json:"content"`
}

// MarshalJSON encodes m with a "type" discriminator on each block.
func (m Message) MarshalJSON() ([]byte, error) {
	content := make([]any, 0, len(m.Content))
	for _, b := range m.Content {
		switch v := b.(type) {
		case Text:
			content = append(content, wireText{Type: KindText, Text: v.Text})
		case ToolUse:
			input := v.Input
			if input == nil {
				input = map[string]any{}
			}
			content = append(content, wireToolUse{Type: KindToolUse, ID: v.ID, Name: v.Name, Input: input})
		case ToolResult:
			content = append(content, wireToolResult{Type: KindToolResult, ToolUseID: v.ToolUseID, Content: v.Content, IsError: v.IsError})
		default:
			return nil, fmt.Errorf("marshal message: unknown block %T", b)
		}
	}
	return json.Marshal(struct {
		Role    Role  `json:"role"`
		Content []any `json:"content"`
	}{Role: m.Role, Content: content})
}

// UnmarshalJSON decodes the discriminated block form produced by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Role.Valid() {
		return fmt.Errorf("unmarshal message: invalid role %q", w.Role)
	}
	blocks := make([]Block, 0, len(w.Content))
	for i, wb := range w.Content {
		switch wb.Type {
		case KindText:
			blocks = append(blocks, Text{Text: wb.Text})
		case KindToolUse:
			blocks = append(blocks, ToolUse{ID: wb.ID, Name: wb.Name, Input: wb.Input})
		case KindToolResult:
			blocks = append(blocks, ToolResult{ToolUseID: wb.ToolUseID, Content: wb.Content, IsError: wb.IsError})
		default:
			return fmt.Errorf("unmarshal message: block %d: unknown type %q", i, wb.Type)
		}
	}
	m.Role = w.Role
	m.Content = blocks
	return nil
}
