// Package change defines the content mutation derived from an approved tool use.
package change

import (
	"errors"
	"fmt"
)

// Action is the kind of mutation.
type Action string

const (
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// TargetType is the kind of managed artifact.
type TargetType string

const (
	TargetScript TargetType = "script"
	TargetAsset  TargetType = "asset"
)

// PendingChange exists only between operator approval and commit.
type PendingChange struct {
	ToolUseID  string     `json:"tool_use_id"`
	TargetName string     `json:"target_name"`
	NewContent string     `json:"new_content,omitempty"`
	Action     Action     `json:"action"`
	TargetType TargetType `json:"target_type"`
}

// Validate checks that the change is well-formed.
func (c *PendingChange) Validate() error {
	if c.ToolUseID == "" {
		return errors.New("change: tool_use_id is required")
	}
	if c.TargetName == "" {
		return errors.New("change: target name is required")
	}
	switch c.Action {
	case ActionCreate, ActionEdit, ActionDelete:
	default:
		return fmt.Errorf("change: invalid action %q", c.Action)
	}
	switch c.TargetType {
	case TargetScript, TargetAsset:
	default:
		return fmt.Errorf("change: invalid target type %q", c.TargetType)
	}
	return nil
}

// Destructive reports whether the change removes an artifact.
func (c *PendingChange) Destructive() bool {
	return c.Action == ActionDelete
}

// SuccessMessage is the tool result reported after a successful commit,
// e.g. "Successfully updated script: hello.js".
func (c *PendingChange) SuccessMessage() string {
	var verb string
	switch c.Action {
	case ActionCreate:
		verb = "created"
	case ActionEdit:
		verb = "updated"
	case ActionDelete:
		verb = "deleted"
	}
	return fmt.Sprintf("Successfully %s %s: %s", verb, c.TargetType, c.TargetName)
}
