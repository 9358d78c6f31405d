package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lpajunen/aiwebengine-assistant/internal/diff"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/change"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/session"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/tool"
)

// PreviewKind selects how a pending tool use is shown to the operator.
type PreviewKind string

const (
	PreviewDiff        PreviewKind = "diff"
	PreviewDestructive PreviewKind = "destructive"
	PreviewExplanation PreviewKind = "explanation"
)

// Preview is what the operator sees before approving a tool use.
type Preview struct {
	ToolUseID  string            `json:"tool_use_id"`
	ToolName   string            `json:"tool_name"`
	Kind       PreviewKind       `json:"kind"`
	Action     change.Action     `json:"action,omitempty"`
	TargetType change.TargetType `json:"target_type,omitempty"`
	TargetName string            `json:"target_name,omitempty"`
	// Message is the model's description of the change.
	Message string `json:"message,omitempty"`
	Before  string `json:"before,omitempty"`
	After   string `json:"after,omitempty"`
	Diff    string `json:"diff,omitempty"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	// Prompt is the confirmation question for destructive changes.
	Prompt string `json:"prompt,omitempty"`
	// BeforeSource is "store" or "original_code" for edits.
	BeforeSource string `json:"before_source,omitempty"`
}

// Previewer renders previews for pending tool executions.
type Previewer struct {
	content *ContentCache
}

// NewPreviewer creates a Previewer reading current content through content.
func NewPreviewer(content *ContentCache) *Previewer {
	return &Previewer{content: content}
}

// Render builds the preview for p. Creates diff against empty content, edits
// diff against the stored content and deletes ask for confirmation.
func (pv *Previewer) Render(ctx context.Context, p *session.PendingToolExecution) (*Preview, error) {
	use := p.ToolUse()
	out := &Preview{ToolUseID: p.ToolUseID, ToolName: p.ToolName}
	out.Message, _ = use.StringInput(tool.FieldMessage)

	if p.ToolName == tool.ExplainOnly {
		out.Kind = PreviewExplanation
		out.Message, _ = use.StringInput(tool.FieldExplanation)
		return out, nil
	}

	c, err := tool.ToChange(use)
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", p.ToolUseID, err)
	}
	out.Action, out.TargetType, out.TargetName = c.Action, c.TargetType, c.TargetName

	switch c.Action {
	case change.ActionDelete:
		out.Kind = PreviewDestructive
		out.Prompt = fmt.Sprintf("Delete %s %s? This cannot be undone.", c.TargetType, c.TargetName)
		return out, nil
	case change.ActionEdit:
		out.Before, out.BeforeSource = pv.current(ctx, c, use.Input)
	}

	out.Kind = PreviewDiff
	out.After = c.NewContent
	d := diff.Compute(c.TargetName, out.Before, out.After)
	out.Diff = d.Unified()
	out.Added, out.Removed = d.Stats()
	return out, nil
}

// WithContent re-renders a diff preview for operator-edited content.
func (pv *Previewer) WithContent(prev *Preview, content string) *Preview {
	if prev == nil || prev.Kind != PreviewDiff {
		return prev
	}
	next := *prev
	next.After = content
	d := diff.Compute(prev.TargetName, prev.Before, content)
	next.Diff = d.Unified()
	next.Added, next.Removed = d.Stats()
	return &next
}

func (pv *Previewer) current(ctx context.Context, c change.PendingChange, input map[string]any) (string, string) {
	if pv.content != nil {
		s, err := pv.content.Current(ctx, c.TargetType, c.TargetName)
		if err == nil {
			return s, "store"
		}
		slog.InfoContext(ctx, "preview falls back to original_code", "target", c.TargetName, "error", err)
	}
	orig, _ := input[tool.FieldOriginalCode].(string)
	return orig, tool.FieldOriginalCode
}
