package model

import "time"

// Subject carries the explicit business context an instance is evaluated
// against: whose transaction it is and where that actor sits in the
// organisation. Nothing is read from ambient state.
type Subject struct {
	ActorID string                 `json:"actorId,omitempty"`
	OrgUnit string                 `json:"orgUnit,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Delegation lets To act instead of From on one step.
type Delegation struct {
	StepOrder int    `json:"stepOrder"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// Instance is one running execution of a workflow template against a
// business object. Steps and flags are snapshotted from the template at
// creation time.
type Instance struct {
	ID                    string       `json:"id"`
	TemplateID            string       `json:"templateId"`
	TemplateVersion       int          `json:"templateVersion"`
	Category              Category     `json:"category,omitempty"`
	Steps                 []*Step      `json:"steps"`
	AllowReturnToPrevious bool         `json:"allowReturnToPrevious,omitempty"`
	AutoTerminateHours    *int         `json:"autoTerminateHours,omitempty"`
	ReferenceType         string       `json:"referenceType"`
	ReferenceID           string       `json:"referenceId"`
	Subject               Subject      `json:"subject"`
	Status                Status       `json:"status"`
	CurrentStepOrder      int          `json:"currentStepOrder"`
	CurrentStepStartedAt  time.Time    `json:"currentStepStartedAt"`
	CurrentStepDeadlineAt *time.Time   `json:"currentStepDeadlineAt,omitempty"`
	SLAStatus             SLAStatus    `json:"slaStatus"`
	EscalationLevel       int          `json:"escalationLevel,omitempty"`
	LastEscalatedDeadline *time.Time   `json:"lastEscalatedDeadline,omitempty"`
	Delegations           []Delegation `json:"delegations,omitempty"`
	StepApprovals         []string     `json:"stepApprovals,omitempty"`
	InitiatedBy           string       `json:"initiatedBy,omitempty"`
	InitiatedAt           time.Time    `json:"initiatedAt"`
	CompletedAt           *time.Time   `json:"completedAt,omitempty"`
	FinalAction           FinalAction  `json:"finalAction,omitempty"`
	Version               int64        `json:"version"`
}

// CurrentStep returns the step the instance is waiting on.
func (i *Instance) CurrentStep() *Step {
	return i.Step(i.CurrentStepOrder)
}

// Step returns the snapshotted step with the given order or nil.
func (i *Instance) Step(order int) *Step {
	for _, step := range i.Steps {
		if step.Order == order {
			return step
		}
	}
	return nil
}

// LastStepOrder returns the highest step order.
func (i *Instance) LastStepOrder() int {
	last := 0
	for _, step := range i.Steps {
		if step.Order > last {
			last = step.Order
		}
	}
	return last
}

// IsTerminal reports whether the instance reached a final state.
func (i *Instance) IsTerminal() bool {
	return i.Status.IsTerminal()
}

// Overdue reports whether the current step deadline passed at now.
func (i *Instance) Overdue(now time.Time) bool {
	return i.CurrentStepDeadlineAt != nil && now.After(*i.CurrentStepDeadlineAt)
}

// EscalatedForDeadline reports whether the current deadline already fired an
// escalation.
func (i *Instance) EscalatedForDeadline() bool {
	if i.CurrentStepDeadlineAt == nil || i.LastEscalatedDeadline == nil {
		return false
	}
	return i.LastEscalatedDeadline.Equal(*i.CurrentStepDeadlineAt)
}

// AutoTerminateDue reports whether the template-level hard ceiling passed.
func (i *Instance) AutoTerminateDue(now time.Time) bool {
	if i.AutoTerminateHours == nil {
		return false
	}
	return now.Sub(i.InitiatedAt) > time.Duration(*i.AutoTerminateHours)*time.Hour
}

// Clone returns a deep copy suitable for mutation outside a store.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	ret := *i
	ret.Steps = make([]*Step, 0, len(i.Steps))
	for _, step := range i.Steps {
		ret.Steps = append(ret.Steps, step.Clone())
	}
	ret.AutoTerminateHours = cloneInt(i.AutoTerminateHours)
	ret.CurrentStepDeadlineAt = cloneTime(i.CurrentStepDeadlineAt)
	ret.LastEscalatedDeadline = cloneTime(i.LastEscalatedDeadline)
	ret.CompletedAt = cloneTime(i.CompletedAt)
	ret.Delegations = append([]Delegation(nil), i.Delegations...)
	ret.StepApprovals = append([]string(nil), i.StepApprovals...)
	if i.Subject.Payload != nil {
		ret.Subject.Payload = make(map[string]interface{}, len(i.Subject.Payload))
		for k, v := range i.Subject.Payload {
			ret.Subject.Payload[k] = v
		}
	}
	return &ret
}

// StepAction is one immutable entry of an instance's audit log.
type StepAction struct {
	ID           string     `json:"id"`
	InstanceID   string     `json:"instanceId"`
	Sequence     int64      `json:"sequence"`
	StepOrder    int        `json:"stepOrder"`
	Action       ActionType `json:"action"`
	ActorID      string     `json:"actorId"`
	Timestamp    time.Time  `json:"timestamp"`
	Comment      string     `json:"comment,omitempty"`
	DelegatedTo  string     `json:"delegatedTo,omitempty"`
	ReturnToStep int        `json:"returnToStep,omitempty"`
}

// SystemActor is the actor id recorded for clock-driven transitions.
const SystemActor = "system"
