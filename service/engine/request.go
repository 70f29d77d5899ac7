package engine

import "github.com/viant/approvalflow/model"

// CreateRequest starts a workflow instance for a business object.
type CreateRequest struct {
	TemplateID    string        `json:"templateId"`
	ReferenceType string        `json:"referenceType"`
	ReferenceID   string        `json:"referenceId"`
	Subject       model.Subject `json:"subject"`
	InitiatedBy   string        `json:"initiatedBy"`
}

// Payload carries the action specific arguments.
type Payload struct {
	Comment      string `json:"comment,omitempty"`
	DelegateTo   string `json:"delegateTo,omitempty"`
	ReturnToStep int    `json:"returnToStep,omitempty"`
}

// ActRequest is one actor action against an instance. A non zero
// ExpectedVersion makes the action fail with a stale state error when the
// instance moved on since the caller read it.
type ActRequest struct {
	InstanceID      string           `json:"instanceId"`
	ExpectedVersion int64            `json:"expectedVersion,omitempty"`
	Action          model.ActionType `json:"action"`
	ActorID         string           `json:"actorId"`
	Payload         Payload          `json:"payload"`
}

// TickResult reports what a clock-driven pass changed on one instance.
type TickResult struct {
	InstanceID string
	Terminated bool
	SLAChanged bool
	Escalation model.EscalationAction
}

// Changed reports whether the tick committed anything.
func (r *TickResult) Changed() bool {
	return r != nil && (r.Terminated || r.SLAChanged || r.Escalation != "")
}
