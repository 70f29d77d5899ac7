package event

import (
	"time"

	"github.com/viant/approvalflow/model"
)

// StepAdvanced is emitted when an instance moves to its next step, either by
// approval or by an escalate_up re-resolution of the same step.
type StepAdvanced struct {
	FromStep  int        `json:"fromStep"`
	ToStep    int        `json:"toStep"`
	Approvers []string   `json:"approvers"`
	Deadline  *time.Time `json:"deadline,omitempty"`
}

// StepReturned is emitted when an actor returns an instance to an earlier step.
type StepReturned struct {
	FromStep  int      `json:"fromStep"`
	ToStep    int      `json:"toStep"`
	Reason    string   `json:"reason"`
	Approvers []string `json:"approvers"`
}

// InstanceCompleted is emitted once when an instance reaches a terminal status.
type InstanceCompleted struct {
	Status      model.Status      `json:"status"`
	FinalAction model.FinalAction `json:"finalAction"`
	CompletedAt time.Time         `json:"completedAt"`
}

// DeadlineApproaching is emitted when the SLA status of the current step
// changes.
type DeadlineApproaching struct {
	StepOrder int             `json:"stepOrder"`
	SLAStatus model.SLAStatus `json:"slaStatus"`
	Deadline  *time.Time      `json:"deadline,omitempty"`
}

// Escalated is emitted once per deadline crossing.
type Escalated struct {
	StepOrder int                    `json:"stepOrder"`
	Action    model.EscalationAction `json:"action"`
	Level     int                    `json:"level"`
	Notify    []string               `json:"notify,omitempty"`
}

// EscalationFailing is an operational alert raised when escalation of an
// instance keeps failing across sweeps.
type EscalationFailing struct {
	StepOrder int    `json:"stepOrder"`
	Failures  int    `json:"failures"`
	Error     string `json:"error"`
}

// ContextOf builds an event context for the instance.
func ContextOf(instance *model.Instance, eventType, actorID string) *Context {
	return &Context{
		InstanceID:    instance.ID,
		TemplateID:    instance.TemplateID,
		ReferenceType: instance.ReferenceType,
		ReferenceID:   instance.ReferenceID,
		EventType:     eventType,
		ActorID:       actorID,
	}
}
