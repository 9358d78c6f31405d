package session

import (
	"fmt"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain"
)

// State is the position of a session in the continuation cycle.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingModel    State = "awaiting_model"
	StateAwaitingApproval State = "awaiting_approval"
	StateCommitting       State = "committing"
	StateTerminal         State = "terminal"
	StateLimitReached     State = "limit_reached"
)

// Event drives a state transition.
type Event string

const (
	// EventPrompt is a new operator prompt.
	EventPrompt Event = "prompt"
	// EventResume re-sends the existing history without a new prompt.
	EventResume Event = "resume"
	// EventAutoApplied means every tool use of a response was applied and the
	// results go straight back to the model.
	EventAutoApplied Event = "auto_applied"
	// EventSuspend means a tool use is waiting for the operator.
	EventSuspend Event = "suspend"
	// EventFinish means the model answered without tool uses.
	EventFinish Event = "finish"
	// EventFail means the model request failed; nothing was appended.
	EventFail Event = "fail"
	// EventApprove means the operator approved the pending tool use.
	EventApprove Event = "approve"
	// EventReject means the operator rejected the pending tool use.
	EventReject Event = "reject"
	// EventNextPending presents the next queued tool use of the same response.
	EventNextPending Event = "next_pending"
	// EventSettled means every tool use of the response has a result.
	EventSettled Event = "settled"
	// EventLimit marks the turn budget as spent.
	EventLimit Event = "limit"
)

type edge struct {
	from State
	ev   Event
}

var transitions = map[edge]State{
	{StateIdle, EventPrompt}:     StateAwaitingModel,
	{StateTerminal, EventPrompt}: StateAwaitingModel,

	{StateIdle, EventResume}:         StateAwaitingModel,
	{StateTerminal, EventResume}:     StateAwaitingModel,
	{StateLimitReached, EventResume}: StateAwaitingModel,

	{StateAwaitingModel, EventAutoApplied}: StateAwaitingModel,
	{StateAwaitingModel, EventSuspend}:     StateAwaitingApproval,
	{StateAwaitingModel, EventFinish}:      StateTerminal,
	{StateAwaitingModel, EventFail}:        StateIdle,

	{StateAwaitingApproval, EventApprove}:     StateCommitting,
	// A rejection records its result in place; nothing is committed.
	{StateAwaitingApproval, EventReject}:      StateAwaitingApproval,
	{StateAwaitingApproval, EventNextPending}: StateAwaitingApproval,
	{StateAwaitingApproval, EventSettled}:     StateAwaitingModel,

	{StateCommitting, EventNextPending}: StateAwaitingApproval,
	{StateCommitting, EventSettled}:     StateAwaitingModel,

	{StateIdle, EventLimit}:     StateLimitReached,
	{StateTerminal, EventLimit}: StateLimitReached,
}

// Transition returns the state that follows from on ev. It has no side
// effects; callers apply the result.
func Transition(from State, ev Event) (State, error) {
	if to, ok := transitions[edge{from, ev}]; ok {
		return to, nil
	}
	return from, rejection(from, ev)
}

// rejection maps an illegal transition onto the sentinel a caller can act on.
func rejection(from State, ev Event) error {
	switch ev {
	case EventPrompt, EventResume:
		switch from {
		case StateAwaitingModel, StateCommitting:
			return domain.ErrBusy
		case StateAwaitingApproval:
			return domain.ErrPendingApproval
		case StateLimitReached:
			return domain.ErrTurnLimit
		}
	case EventApprove, EventReject:
		if from != StateAwaitingApproval {
			return domain.ErrNoPending
		}
	}
	return fmt.Errorf("%w: event %s not allowed in state %s", domain.ErrConflict, ev, from)
}
