package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/otel"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/change"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/backingstore"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/eventstore"
)

// Outcome is a successful commit.
type Outcome struct {
	Message string
	// Missing is set when a delete found nothing to remove.
	Missing bool
}

// Executor commits approved changes to the backing store.
type Executor struct {
	store   backingstore.Store
	ledger  eventstore.Store
	content *ContentCache
	metrics *otel.Metrics
}

// NewExecutor creates an Executor. content and metrics may be nil.
func NewExecutor(store backingstore.Store, ledger eventstore.Store, content *ContentCache, metrics *otel.Metrics) *Executor {
	return &Executor{store: store, ledger: ledger, content: content, metrics: metrics}
}

// Commit applies c for the given session. When confirmed is true the ledger
// must already hold an approval for c.ToolUseID. Failures are returned
// unretried.
func (e *Executor) Commit(ctx context.Context, sessionID string, c change.PendingChange, confirmed bool) (Outcome, error) {
	if err := c.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if confirmed {
		ok, err := e.ledger.HasApproval(ctx, sessionID, c.ToolUseID)
		if err != nil {
			return Outcome{}, fmt.Errorf("check approval: %w", err)
		}
		if !ok {
			return Outcome{}, fmt.Errorf("%w: tool use %s", domain.ErrNotApproved, c.ToolUseID)
		}
	}

	ctx, span := otel.StartCommitSpan(ctx, c.ToolUseID, string(c.TargetType), c.TargetName, string(c.Action))
	defer span.End()

	err := e.apply(ctx, c)
	switch {
	case err == nil:
	case c.Destructive() && errors.Is(err, domain.ErrNotFound):
		slog.InfoContext(ctx, "delete target already absent", "target", c.TargetName, "type", c.TargetType)
		e.invalidate(ctx, c)
		e.metrics.RecordCommit(ctx, string(c.Action), nil)
		return Outcome{Message: c.SuccessMessage() + " (it did not exist)", Missing: true}, nil
	default:
		span.RecordError(err)
		e.metrics.RecordCommit(ctx, string(c.Action), err)
		return Outcome{}, err
	}

	e.invalidate(ctx, c)
	e.metrics.RecordCommit(ctx, string(c.Action), nil)
	slog.InfoContext(ctx, "change committed", "tool_use_id", c.ToolUseID, "target", c.TargetName, "type", c.TargetType, "action", c.Action)
	return Outcome{Message: c.SuccessMessage()}, nil
}

func (e *Executor) apply(ctx context.Context, c change.PendingChange) error {
	switch {
	case c.TargetType == change.TargetScript && c.Destructive():
		return e.store.DeleteScript(ctx, c.TargetName)
	case c.TargetType == change.TargetScript:
		return e.store.UpsertScript(ctx, c.TargetName, c.NewContent)
	case c.Destructive():
		return e.store.DeleteAsset(ctx, c.TargetName)
	default:
		return e.store.UpsertAsset(ctx, c.TargetName, []byte(c.NewContent))
	}
}

func (e *Executor) invalidate(ctx context.Context, c change.PendingChange) {
	if e.content != nil {
		e.content.Invalidate(ctx, c.TargetType, c.TargetName)
	}
}
