// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the operation does not fit the entity's current state.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates a malformed request or tool input.
var ErrValidation = errors.New("validation failed")

// ErrTurnLimit indicates the session has used all of its operator turns.
var ErrTurnLimit = errors.New("turn limit reached: start a new session")

// ErrBusy indicates a model request is already in flight for the session.
var ErrBusy = errors.New("session busy: a model request is in flight")

// ErrPendingApproval indicates a tool execution is waiting for the operator.
var ErrPendingApproval = errors.New("a tool execution is awaiting approval")

// ErrNoPending indicates there is no tool execution awaiting the operator.
var ErrNoPending = errors.New("no pending tool execution")

// ErrTransport indicates the model backend was unreachable or answered with a non-success status.
var ErrTransport = errors.New("model backend transport error")

// ErrNotApproved indicates a confirmation-required change has no recorded operator approval.
var ErrNotApproved = errors.New("change has no recorded approval")
