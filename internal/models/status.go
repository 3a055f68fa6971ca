package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// SessionStatus is the lifecycle state of a session
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusClosed    SessionStatus = "closed"
)

// Lifecycle events
const (
	EventComplete = "complete"
	EventClose    = "close"
)

// ErrInvalidTransition is returned when a lifecycle event does not apply to the current status
var ErrInvalidTransition = errors.New("invalid session status transition")

var statusEvents = fsm.Events{
	{Name: EventComplete, Src: []string{string(StatusActive)}, Dst: string(StatusCompleted)},
	{Name: EventClose, Src: []string{string(StatusActive), string(StatusCompleted)}, Dst: string(StatusClosed)},
}

// NextStatus applies a lifecycle event to the given status and returns the resulting status.
func NextStatus(current SessionStatus, event string) (SessionStatus, error) {
	machine := fsm.NewFSM(string(current), statusEvents, fsm.Callbacks{})
	if err := machine.Event(context.Background(), event); err != nil {
		return current, fmt.Errorf("%w: %s from %s: %v", ErrInvalidTransition, event, current, err)
	}
	return SessionStatus(machine.Current()), nil
}
