package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/otel"
	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/ws"
	"github.com/lpajunen/aiwebengine-assistant/internal/config"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/event"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/message"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/session"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/tool"
	"github.com/lpajunen/aiwebengine-assistant/internal/logger"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/broadcast"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/eventstore"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/messagequeue"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/modelbackend"
)

// CancelledContent is the tool result of a rejected tool use.
const CancelledContent = "User cancelled the operation"

// PromptRequest is a new operator prompt with the editor's current focus.
type PromptRequest struct {
	Prompt        string  `json:"prompt"`
	CurrentScript *string `json:"current_script,omitempty"`
	CurrentAsset  *string `json:"current_asset,omitempty"`
}

// Result is the state of a session after an operator action.
type Result struct {
	SessionID    string                        `json:"session_id"`
	State        session.State                 `json:"state"`
	Text         string                        `json:"text,omitempty"`
	StopReason   string                        `json:"stop_reason,omitempty"`
	Pending      *session.PendingToolExecution `json:"pending,omitempty"`
	Preview      *Preview                      `json:"preview,omitempty"`
	Results      []message.ToolResult          `json:"results,omitempty"`
	TurnCount    int                           `json:"turn_count"`
	MaxTurns     int                           `json:"max_turns"`
	LimitReached bool                          `json:"limit_reached"`
}

// PendingView is the tool execution awaiting the operator and its preview.
type PendingView struct {
	Pending *session.PendingToolExecution `json:"pending"`
	Preview *Preview                      `json:"preview"`
	Queued  int                           `json:"queued"`
}

// AssistantService runs operator actions against sessions: prompts, the
// continuation loop and approval of pending tool uses.
type AssistantService struct {
	sessions      *SessionService
	backend       modelbackend.Backend
	gate          Gate
	previews      *Previewer
	executor      *Executor
	ledger        eventstore.Store
	hub           broadcast.Broadcaster
	queue         messagequeue.Queue
	metrics       *otel.Metrics
	sem           *semaphore.Weighted
	maxIterations int
}

// NewAssistantService wires the loop collaborators. hub, queue and metrics
// are optional and may be set later.
func NewAssistantService(
	sessions *SessionService,
	backend modelbackend.Backend,
	previews *Previewer,
	executor *Executor,
	ledger eventstore.Store,
	cfg config.Config,
) *AssistantService {
	maxConcurrent := cfg.ModelBackend.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if f, ok := ledger.(eventstore.Forgetter); ok {
		sessions.OnDiscard(func(ctx context.Context, id string) {
			if err := f.Forget(ctx, id); err != nil {
				slog.WarnContext(ctx, "ledger forget failed", "session_id", id, "error", err)
			}
		})
	}
	return &AssistantService{
		sessions:      sessions,
		backend:       backend,
		previews:      previews,
		executor:      executor,
		ledger:        ledger,
		sem:           semaphore.NewWeighted(maxConcurrent),
		maxIterations: max(cfg.Session.MaxIterations, 1),
	}
}

// SetBroadcaster enables realtime events.
func (a *AssistantService) SetBroadcaster(b broadcast.Broadcaster) { a.hub = b }

// SetQueue enables publishing to the message queue.
func (a *AssistantService) SetQueue(q messagequeue.Queue) { a.queue = q }

// SetMetrics enables metric recording.
func (a *AssistantService) SetMetrics(m *otel.Metrics) { a.metrics = m }

// Sessions exposes the registry.
func (a *AssistantService) Sessions() *SessionService { return a.sessions }

// CreateSession starts a session and announces it.
func (a *AssistantService) CreateSession(ctx context.Context) session.Snapshot {
	snap := a.sessions.Create(ctx)
	a.publish(logger.WithSessionID(ctx, snap.ID), messagequeue.SubjectSessionCreated, messagequeue.SessionPayload{
		SessionID: snap.ID, TurnCount: snap.TurnCount, MaxTurns: snap.MaxTurns,
	})
	return snap
}

// Prompt appends an operator prompt and runs the loop. A session at its turn
// limit rejects the prompt before anything is appended or sent.
func (a *AssistantService) Prompt(ctx context.Context, id string, req PromptRequest) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}
	e, err := a.sessions.acquire(id, false)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	ctx = logger.WithSessionID(ctx, id)
	sess := e.sess

	if sess.IsTurnLimitReached() {
		a.metrics.RecordTurnLimit(ctx)
		slog.InfoContext(ctx, "prompt rejected: turn limit", "turn_count", sess.TurnCount, "max_turns", sess.MaxTurns)
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrTurnLimit)
	}
	if err := sess.Apply(session.EventPrompt); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	if req.CurrentScript != nil {
		sess.CurrentScript = req.CurrentScript
	}
	if req.CurrentAsset != nil {
		sess.CurrentAsset = req.CurrentAsset
	}
	sess.Append(message.UserText(req.Prompt))
	sess.Touch(a.sessions.now())
	a.metrics.RecordPrompt(ctx)
	a.record(ctx, sess.ID, event.TypePromptAccepted, "", "", map[string]int{"turn_count": sess.TurnCount})

	ctx, span := otel.StartLoopSpan(ctx, id, "prompt")
	defer span.End()
	res := &Result{}
	err = a.run(ctx, e, res)
	return a.finish(ctx, e, res), err
}

// Continue re-runs the loop when the last message is an unanswered user
// message, e.g. after a transport failure.
func (a *AssistantService) Continue(ctx context.Context, id string) (*Result, error) {
	e, err := a.sessions.acquire(id, false)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	ctx = logger.WithSessionID(ctx, id)
	sess := e.sess

	if !sess.NeedsModel() {
		return nil, fmt.Errorf("session %s: %w: nothing to continue", id, domain.ErrConflict)
	}
	if err := sess.Apply(session.EventResume); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	sess.Touch(a.sessions.now())

	ctx, span := otel.StartLoopSpan(ctx, id, "continue")
	defer span.End()
	res := &Result{}
	err = a.run(ctx, e, res)
	return a.finish(ctx, e, res), err
}

// Pending returns the tool execution awaiting the operator.
func (a *AssistantService) Pending(_ context.Context, id string) (*PendingView, error) {
	e, err := a.sessions.acquire(id, true)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	if e.sess.Pending == nil {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNoPending)
	}
	p := *e.sess.Pending
	return &PendingView{Pending: &p, Preview: e.preview, Queued: len(e.sess.Queued())}, nil
}

// PreviewEdit renders the diff of operator-edited content for the pending
// tool use without resolving it. Only diff previews can be edited.
func (a *AssistantService) PreviewEdit(ctx context.Context, id, toolUseID, content string) (*Preview, error) {
	e, err := a.sessions.acquire(id, true)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	ctx = logger.WithSessionID(ctx, id)

	p, err := pendingFor(e.sess, toolUseID)
	if err != nil {
		return nil, err
	}
	if e.preview == nil || e.preview.Kind != PreviewDiff {
		return nil, fmt.Errorf("%w: tool use %s has no editable content", domain.ErrConflict, toolUseID)
	}
	preview := a.previews.WithContent(e.preview, content)
	a.broadcast(ctx, ws.EventToolPending, PendingView{Pending: p, Preview: preview, Queued: len(e.sess.Queued())})
	return preview, nil
}

// Approve commits the pending tool use, optionally with operator-edited
// content, and continues the loop.
func (a *AssistantService) Approve(ctx context.Context, id, toolUseID string, edited *string) (*Result, error) {
	e, err := a.sessions.acquire(id, false)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	ctx = logger.WithSessionID(ctx, id)
	sess := e.sess

	p, err := pendingFor(sess, toolUseID)
	if err != nil {
		return nil, err
	}

	// The approval must be on the ledger before the executor will commit.
	payload := map[string]bool{"edited": edited != nil}
	if err := a.appendEvent(ctx, sess.ID, event.TypeToolApproved, p.ToolUseID, p.ToolName, payload); err != nil {
		return nil, fmt.Errorf("record approval: %w", err)
	}
	if err := sess.Apply(session.EventApprove); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	sess.Touch(a.sessions.now())
	a.metrics.RecordResolution(ctx, p.ToolName, true)
	a.resolved(ctx, p, "approved", edited != nil)

	ctx, span := otel.StartLoopSpan(ctx, id, "approve")
	defer span.End()
	res := &Result{}
	result := a.commit(ctx, sess.ID, p, edited)
	sess.Settle(result)
	res.Results = append(res.Results, result)

	err = a.advance(ctx, e, res)
	return a.finish(ctx, e, res), err
}

// Reject answers the pending tool use with a cancellation and continues the
// loop. Nothing is sent to the backing store.
func (a *AssistantService) Reject(ctx context.Context, id, toolUseID string) (*Result, error) {
	e, err := a.sessions.acquire(id, false)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	ctx = logger.WithSessionID(ctx, id)
	sess := e.sess

	p, err := pendingFor(sess, toolUseID)
	if err != nil {
		return nil, err
	}
	if err := sess.Apply(session.EventReject); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	sess.Touch(a.sessions.now())
	a.record(ctx, sess.ID, event.TypeToolRejected, p.ToolUseID, p.ToolName, nil)
	a.metrics.RecordResolution(ctx, p.ToolName, false)
	a.resolved(ctx, p, "rejected", false)

	ctx, span := otel.StartLoopSpan(ctx, id, "reject")
	defer span.End()
	res := &Result{}
	result := message.ToolResult{ToolUseID: p.ToolUseID, Content: CancelledContent}
	sess.Settle(result)
	res.Results = append(res.Results, result)

	err = a.advance(ctx, e, res)
	return a.finish(ctx, e, res), err
}

// Audit returns the ledger of a session.
func (a *AssistantService) Audit(ctx context.Context, id string) ([]event.SessionEvent, error) {
	if _, err := a.sessions.Get(ctx, id); err != nil {
		return nil, err
	}
	events, err := a.ledger.LoadBySession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load audit %s: %w", id, err)
	}
	return events, nil
}

func pendingFor(sess *session.Session, toolUseID string) (*session.PendingToolExecution, error) {
	if sess.Pending == nil {
		return nil, fmt.Errorf("session %s: %w", sess.ID, domain.ErrNoPending)
	}
	if sess.Pending.ToolUseID != toolUseID {
		return nil, fmt.Errorf("%w: pending tool use is %s, not %s", domain.ErrConflict, sess.Pending.ToolUseID, toolUseID)
	}
	p := *sess.Pending
	return &p, nil
}

// commit turns an approved tool use into its tool result. Failures are
// reported in the result, never returned.
func (a *AssistantService) commit(ctx context.Context, sessionID string, p *session.PendingToolExecution, edited *string) message.ToolResult {
	res := message.ToolResult{ToolUseID: p.ToolUseID}
	use := p.ToolUse()

	c, err := toChange(use)
	if errors.Is(err, errNoChange) {
		res.Content = p.ServerResult
		if res.Content == "" {
			res.Content = explanationAck
		}
		return res
	}
	if err != nil {
		res.Content, res.IsError = errorContent(err), true
		return res
	}
	if edited != nil && !c.Destructive() {
		c.NewContent = *edited
	}

	out, err := a.executor.Commit(ctx, sessionID, c, p.RequiresConfirmation)
	payload := messagequeue.ChangePayload{
		SessionID:  sessionID,
		ToolUseID:  c.ToolUseID,
		TargetType: string(c.TargetType),
		TargetName: c.TargetName,
		Action:     string(c.Action),
	}
	if err != nil {
		slog.WarnContext(ctx, "commit failed", "tool_use_id", c.ToolUseID, "target", c.TargetName, "error", err)
		res.Content, res.IsError = errorContent(err), true
		payload.Result = res.Content
		a.record(ctx, sessionID, event.TypeChangeCommitFailed, p.ToolUseID, p.ToolName, payload)
		a.publish(ctx, messagequeue.SubjectChangeFailed, payload)
	} else {
		res.Content = out.Message
		payload.Result, payload.Missing = res.Content, out.Missing
		a.record(ctx, sessionID, event.TypeChangeCommitted, p.ToolUseID, p.ToolName, payload)
		a.publish(ctx, messagequeue.SubjectChangeCommitted, payload)
	}
	a.broadcast(ctx, ws.EventToolResult, res)
	return res
}

// advance presents the next queued tool use or, once the batch is settled,
// delivers every result and resumes the loop.
func (a *AssistantService) advance(ctx context.Context, e *entry, res *Result) error {
	sess := e.sess
	sess.Pending = nil
	e.preview = nil

	if next, ok := sess.PopQueued(); ok {
		if err := sess.Apply(session.EventNextPending); err != nil {
			return err
		}
		a.present(ctx, e, &next)
		return nil
	}

	sess.FlushResults()
	if err := sess.Apply(session.EventSettled); err != nil {
		return err
	}
	return a.run(ctx, e, res)
}

// run is the continuation loop. It is entered in AwaitingModel and returns
// once the model answers without tool uses, a tool use awaits the operator,
// the model call fails or the iteration bound is hit.
func (a *AssistantService) run(ctx context.Context, e *entry, res *Result) error {
	sess := e.sess
	for iter := 0; ; iter++ {
		if iter >= a.maxIterations {
			slog.WarnContext(ctx, "loop iteration bound reached", "max_iterations", a.maxIterations)
			res.StopReason = "max_iterations"
			return sess.Apply(session.EventFail)
		}

		resp, err := a.callModel(ctx, sess)
		if err != nil {
			slog.ErrorContext(ctx, "model request failed", "error", err)
			a.record(ctx, sess.ID, event.TypeModelFailed, "", "", map[string]string{"error": err.Error()})
			if applyErr := sess.Apply(session.EventFail); applyErr != nil {
				return errors.Join(err, applyErr)
			}
			return fmt.Errorf("model backend: %w", err)
		}

		msg := resp.Message()
		if len(msg.Content) > 0 {
			sess.Append(msg)
			a.broadcast(ctx, ws.EventAssistant, msg)
		}
		res.Text, res.StopReason = resp.Text, resp.StopReason
		a.record(ctx, sess.ID, event.TypeModelResponded, "", "", map[string]any{
			"stop_reason": resp.StopReason,
			"tool_uses":   len(resp.ToolUses),
		})

		if len(resp.ToolUses) == 0 {
			return sess.Apply(session.EventFinish)
		}

		var pending []session.PendingToolExecution
		for i := range resp.ToolUses {
			use := &resp.ToolUses[i]
			r := a.gate.Route(ctx, use)
			a.metrics.RecordToolUse(ctx, use.ToolName, string(r.Classification.Decision))
			if r.Classification.Mismatch() {
				a.record(ctx, sess.ID, event.TypeConfirmationMismatch, use.ToolUseID, use.ToolName, r.Classification)
			}
			if r.Pending != nil {
				pending = append(pending, *r.Pending)
				continue
			}
			sess.Settle(*r.AutoApplied)
			res.Results = append(res.Results, *r.AutoApplied)
			if err := sess.Apply(session.EventAutoApplied); err != nil {
				return err
			}
			a.record(ctx, sess.ID, event.TypeToolAutoApplied, use.ToolUseID, use.ToolName, r.AutoApplied)
			a.publish(ctx, messagequeue.SubjectToolResolved, messagequeue.ToolResolvedPayload{
				SessionID: sess.ID, ToolUseID: use.ToolUseID, ToolName: use.ToolName, Decision: "auto",
			})
		}

		a.gate.CheckResponse(ctx, resp, len(pending))
		if len(pending) > 0 {
			sess.Enqueue(pending[1:]...)
			if err := sess.Apply(session.EventSuspend); err != nil {
				return err
			}
			a.present(ctx, e, &pending[0])
			return nil
		}

		sess.FlushResults()
	}
}

func (a *AssistantService) callModel(ctx context.Context, sess *session.Session) (*modelbackend.Response, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer a.sem.Release(1)

	ctx, span := otel.StartModelCallSpan(ctx, sess.ID, sess.Len())
	defer span.End()

	req := &modelbackend.Request{
		SessionID:     sess.ID,
		Messages:      sess.Messages(),
		CurrentScript: sess.CurrentScript,
		CurrentAsset:  sess.CurrentAsset,
		Tools:         tool.Catalog(),
	}
	start := a.sessions.now()
	resp, err := a.backend.Send(ctx, req)
	a.metrics.RecordModelCall(ctx, a.sessions.now().Sub(start).Seconds(), err)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return resp, nil
}

// present makes p the pending tool execution and renders its preview.
func (a *AssistantService) present(ctx context.Context, e *entry, p *session.PendingToolExecution) {
	e.sess.Pending = p
	preview, err := a.previews.Render(ctx, p)
	if err != nil {
		slog.WarnContext(ctx, "preview render failed", "tool_use_id", p.ToolUseID, "error", err)
	}
	e.preview = preview

	a.record(ctx, e.sess.ID, event.TypeApprovalRequested, p.ToolUseID, p.ToolName, p.Classification)
	a.publish(ctx, messagequeue.SubjectToolPending, messagequeue.ToolPendingPayload{
		SessionID:            e.sess.ID,
		ToolUseID:            p.ToolUseID,
		ToolName:             p.ToolName,
		RequiresConfirmation: p.RequiresConfirmation,
	})
	a.broadcast(ctx, ws.EventToolPending, PendingView{Pending: p, Preview: preview, Queued: len(e.sess.Queued())})
}

// finish fills res from the session and enters LimitReached once the last
// operator turn has been answered.
func (a *AssistantService) finish(ctx context.Context, e *entry, res *Result) *Result {
	sess := e.sess
	if sess.IsTurnLimitReached() && (sess.State == session.StateIdle || sess.State == session.StateTerminal) {
		if err := sess.Apply(session.EventLimit); err == nil {
			slog.InfoContext(ctx, "session reached turn limit", "turn_count", sess.TurnCount)
			a.record(ctx, sess.ID, event.TypeLimitReached, "", "", nil)
			a.publish(ctx, messagequeue.SubjectSessionLimit, messagequeue.SessionPayload{
				SessionID: sess.ID, TurnCount: sess.TurnCount, MaxTurns: sess.MaxTurns,
			})
		}
	}

	res.SessionID = sess.ID
	res.State = sess.State
	res.TurnCount = sess.TurnCount
	res.MaxTurns = sess.MaxTurns
	res.LimitReached = sess.IsTurnLimitReached()
	if sess.Pending != nil {
		p := *sess.Pending
		res.Pending = &p
		res.Preview = e.preview
	}
	a.broadcast(ctx, ws.EventSessionState, res)
	return res
}

func (a *AssistantService) resolved(ctx context.Context, p *session.PendingToolExecution, decision string, edited bool) {
	payload := messagequeue.ToolResolvedPayload{
		SessionID: logger.SessionID(ctx),
		ToolUseID: p.ToolUseID,
		ToolName:  p.ToolName,
		Decision:  decision,
		Edited:    edited,
	}
	a.publish(ctx, messagequeue.SubjectToolResolved, payload)
	a.broadcast(ctx, ws.EventToolResolved, payload)
}

func (a *AssistantService) appendEvent(ctx context.Context, sessionID string, typ event.Type, toolUseID, toolName string, payload any) error {
	ev := &event.SessionEvent{
		SessionID: sessionID,
		ToolUseID: toolUseID,
		ToolName:  toolName,
		Type:      typ,
		RequestID: logger.RequestID(ctx),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		ev.Payload = data
	}
	return a.ledger.Append(ctx, ev)
}

// record appends a ledger event whose loss does not affect the session.
func (a *AssistantService) record(ctx context.Context, sessionID string, typ event.Type, toolUseID, toolName string, payload any) {
	if err := a.appendEvent(ctx, sessionID, typ, toolUseID, toolName, payload); err != nil {
		slog.ErrorContext(ctx, "ledger append failed", "type", typ, "error", err)
	}
}

func (a *AssistantService) publish(ctx context.Context, subject string, payload any) {
	if a.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal queue payload", "subject", subject, "error", err)
		return
	}
	if err := a.queue.Publish(ctx, subject, data); err != nil {
		slog.WarnContext(ctx, "queue publish failed", "subject", subject, "error", err)
	}
}

func (a *AssistantService) broadcast(ctx context.Context, eventType string, payload any) {
	if a.hub != nil {
		a.hub.BroadcastEvent(ctx, eventType, payload)
	}
}
