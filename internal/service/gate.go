package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain/change"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/message"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/policy"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/session"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/tool"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/modelbackend"
)

// explanationAck answers explain_only when the backend attached no result message.
const explanationAck = "Explanation provided"

// Routing is the gate's verdict for one tool use: exactly one of
// AutoApplied or Pending is set.
type Routing struct {
	Classification policy.Classification
	AutoApplied    *message.ToolResult
	Pending        *session.PendingToolExecution
	// ClientActionMismatch is set when the backend's requires_client_action
	// disagrees with the routing. The routing always wins.
	ClientActionMismatch bool
}

// Gate routes each tool use of a model response.
type Gate struct{}

// Route classifies use and either answers it immediately or holds it for preview.
func (Gate) Route(ctx context.Context, use *modelbackend.ToolUse) Routing {
	c := policy.Classify(use.ToolName, use.RequiresConfirmation)
	r := Routing{Classification: c}

	if c.Mismatch() {
		slog.WarnContext(ctx, "confirmation flag mismatch",
			"tool", use.ToolName,
			"tool_use_id", use.ToolUseID,
			"declared", c.Declared,
			"expected", policy.ExpectsServerConfirmation(use.ToolName),
		)
	}

	if err := tool.Validate(use.Block()); err != nil {
		slog.InfoContext(ctx, "tool use rejected by validation", "tool", use.ToolName, "tool_use_id", use.ToolUseID, "error", err)
		r.Classification.Decision = policy.DecisionDeny
		r.AutoApplied = &message.ToolResult{ToolUseID: use.ToolUseID, Content: errorContent(err), IsError: true}
		return r
	}

	r.ClientActionMismatch = clientActionMismatch(ctx, use, c.Decision != policy.DecisionAllow)
	if c.Decision == policy.DecisionAllow {
		r.AutoApplied = &message.ToolResult{ToolUseID: use.ToolUseID, Content: serverMessage(use)}
		return r
	}

	p := session.PendingToolExecution{
		ToolUseID:            use.ToolUseID,
		ToolName:             use.ToolName,
		ToolInput:            use.ToolInput,
		RequiresConfirmation: c.ServerConfirmation,
		Classification:       c,
	}
	if use.Result != nil {
		p.ServerResult = use.Result.Message
	}
	r.Pending = &p
	return r
}

// CheckResponse reports whether the response-level needs_confirmation flag
// disagrees with the number of tool uses held for the operator.
func (Gate) CheckResponse(ctx context.Context, resp *modelbackend.Response, held int) bool {
	if resp.NeedsConfirmation == (held > 0) {
		return false
	}
	slog.InfoContext(ctx, "needs_confirmation disagrees with routing",
		"needs_confirmation", resp.NeedsConfirmation,
		"held", held,
		"tool_uses", len(resp.ToolUses),
	)
	return true
}

func clientActionMismatch(ctx context.Context, use *modelbackend.ToolUse, held bool) bool {
	if use.Result == nil || use.Result.RequiresClientAction == held {
		return false
	}
	slog.InfoContext(ctx, "requires_client_action disagrees with routing",
		"tool", use.ToolName,
		"tool_use_id", use.ToolUseID,
		"requires_client_action", use.Result.RequiresClientAction,
		"held", held,
	)
	return true
}

func serverMessage(use *modelbackend.ToolUse) string {
	if use.Result != nil && use.Result.Message != "" {
		return use.Result.Message
	}
	return explanationAck
}

// errorContent formats a failure as tool result content.
func errorContent(err error) string {
	return "Error: " + err.Error()
}

// errNoChange marks tool uses that never touch the backing store.
var errNoChange = errors.New("tool use makes no change")

func toChange(use message.ToolUse) (change.PendingChange, error) {
	if use.Name == tool.ExplainOnly {
		return change.PendingChange{}, errNoChange
	}
	return tool.ToChange(use)
}
