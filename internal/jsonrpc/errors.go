package jsonrpc

import (
	"errors"
	"fmt"
)

var (
	ErrRegistrySealed      = errors.New("method registry is sealed")
	ErrRequestTimedOut     = errors.New("request timed out")
	ErrRequestCancelled    = errors.New("request cancelled")
	ErrSessionClosed       = errors.New("session is closed")
	ErrAlreadyShuttingDown = errors.New("session is already shutting down")
	ErrNotARequest         = errors.New("method is not a request")
	ErrNotANotification    = errors.New("method is not a notification")
	ErrTokenAlreadyInUse   = errors.New("progress token already has a live subscription")
	ErrContentTooLarge     = errors.New("message content is too large")
)

// DuplicateMethodError is returned when registering a method name twice, it is
// a programming error: the process should not start.
type DuplicateMethodError struct {
	Method string
}

func (e *DuplicateMethodError) Error() string {
	return fmt.Sprintf("method %q is already registered", e.Method)
}

// UnknownRequestIdError is returned when a response does not match any
// outstanding request: the id is unknown, or the request already completed.
type UnknownRequestIdError struct {
	ID ID

	//true if the request already completed or failed.
	Duplicate bool
}

func (e *UnknownRequestIdError) Error() string {
	if e.Duplicate {
		return fmt.Sprintf("request %s has already completed", e.ID)
	}
	return fmt.Sprintf("no outstanding request with id %s", e.ID)
}

// OutOfOrderProgressError is returned when a work done progress event
// does not follow begin -> report* -> end.
type OutOfOrderProgressError struct {
	Token ProgressToken
	State WorkDoneState
	Event string
}

func (e *OutOfOrderProgressError) Error() string {
	return fmt.Sprintf("progress %s: unexpected %q event in state %s", e.Token, e.Event, e.State)
}
