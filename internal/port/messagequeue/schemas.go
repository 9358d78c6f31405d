package messagequeue

// SessionPayload is the schema for editor.session.* messages.
type SessionPayload struct {
	SessionID string `json:"session_id"`
	TurnCount int    `json:"turn_count"`
	MaxTurns  int    `json:"max_turns"`
}

// ToolPendingPayload is the schema for editor.tool.pending messages.
type ToolPendingPayload struct {
	SessionID            string `json:"session_id"`
	ToolUseID            string `json:"tool_use_id"`
	ToolName             string `json:"tool_name"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
}

// ToolResolvedPayload is the schema for editor.tool.resolved messages.
type ToolResolvedPayload struct {
	SessionID string `json:"session_id"`
	ToolUseID string `json:"tool_use_id"`
	ToolName  string `json:"tool_name"`
	Decision  string `json:"decision"` // "approved", "rejected", "auto"
	Edited    bool   `json:"edited,omitempty"`
}

// ChangePayload is the schema for editor.change.* messages.
type ChangePayload struct {
	SessionID  string `json:"session_id"`
	ToolUseID  string `json:"tool_use_id"`
	TargetType string `json:"target_type"`
	TargetName string `json:"target_name"`
	Action     string `json:"action"`
	Result     string `json:"result"`
	// Missing is set when a delete found nothing to remove.
	Missing bool `json:"missing,omitempty"`
}
