package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// History Events
// =============================================================================

// Action is something dcg did to (or observed about) a deployment.
type Action string

const (
	ActionAdd          Action = "add"
	ActionRemove       Action = "remove"
	ActionStart        Action = "start"
	ActionStop         Action = "stop"
	ActionRestart      Action = "restart"
	ActionUpdate       Action = "update"
	ActionStatusChange Action = "status-change"
)

// Outcome is the result of an action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one entry in the deployment history log.
type Event struct {
	ID         string    `json:"id"`
	Deployment string    `json:"deployment"`
	Action     Action    `json:"action"`
	Outcome    Outcome   `json:"outcome"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEvent creates an event. A non-nil err marks the event as a failure and
// becomes its message.
func NewEvent(deployment string, action Action, err error) Event {
	e := Event{
		ID:         uuid.New().String(),
		Deployment: deployment,
		Action:     action,
		Outcome:    OutcomeSuccess,
		CreatedAt:  time.Now().UTC(),
	}
	if err != nil {
		e.Outcome = OutcomeFailure
		e.Message = err.Error()
	}
	return e
}

// NewStatusChangeEvent records an observed status transition.
func NewStatusChangeEvent(deployment string, from, to Status) Event {
	e := NewEvent(deployment, ActionStatusChange, nil)
	e.Message = string(from) + " -> " + string(to)
	return e
}
