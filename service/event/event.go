// Package event publishes typed outbound instance events to subscribers
// such as notification, payroll and leave-balance services.
package event

import "time"

// Event types.
const (
	TypeStepAdvanced        = "step_advanced"
	TypeStepReturned        = "step_returned"
	TypeInstanceCompleted   = "instance_completed"
	TypeDeadlineApproaching = "deadline_approaching"
	TypeEscalated           = "escalated"
	TypeEscalationFailing   = "escalation_failing"
)

// Context identifies the instance and business object an event concerns.
type Context struct {
	InstanceID    string `json:"instanceId"`
	TemplateID    string `json:"templateId"`
	ReferenceType string `json:"referenceType"`
	ReferenceID   string `json:"referenceId"`
	EventType     string `json:"eventType"`
	ActorID       string `json:"actorId,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
