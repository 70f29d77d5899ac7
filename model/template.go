package model

import (
	"sort"
	"time"
)

// WorkflowTemplate is an ordered list of approval steps for one category of
// business transaction. Once activated its structure is immutable; changes
// require a new version, which is a new template.
type WorkflowTemplate struct {
	ID                    string     `json:"id" yaml:"id"`
	Name                  string     `json:"name" yaml:"name"`
	Description           string     `json:"description,omitempty" yaml:"description,omitempty"`
	Category              Category   `json:"category" yaml:"category"`
	Version               int        `json:"version" yaml:"version"`
	Steps                 []*Step    `json:"steps" yaml:"steps"`
	RequiresSignature     bool       `json:"requiresSignature,omitempty" yaml:"requiresSignature,omitempty"`
	RequiresLetter        bool       `json:"requiresLetter,omitempty" yaml:"requiresLetter,omitempty"`
	AllowReturnToPrevious bool       `json:"allowReturnToPrevious,omitempty" yaml:"allowReturnToPrevious,omitempty"`
	AutoTerminateHours    *int       `json:"autoTerminateHours,omitempty" yaml:"autoTerminateHours,omitempty"`
	IsActive              bool       `json:"isActive" yaml:"isActive"`
	CreatedAt             time.Time  `json:"createdAt" yaml:"createdAt,omitempty"`
	ActivatedAt           *time.Time `json:"activatedAt,omitempty" yaml:"activatedAt,omitempty"`
}

// Step returns the step with the given order or nil.
func (t *WorkflowTemplate) Step(order int) *Step {
	for _, step := range t.Steps {
		if step.Order == order {
			return step
		}
	}
	return nil
}

// SortSteps orders steps by their Order field.
func (t *WorkflowTemplate) SortSteps() {
	sort.SliceStable(t.Steps, func(i, j int) bool { return t.Steps[i].Order < t.Steps[j].Order })
}

// Clone returns a deep copy of the template.
func (t *WorkflowTemplate) Clone() *WorkflowTemplate {
	if t == nil {
		return nil
	}
	ret := *t
	ret.AutoTerminateHours = cloneInt(t.AutoTerminateHours)
	ret.ActivatedAt = cloneTime(t.ActivatedAt)
	ret.Steps = make([]*Step, 0, len(t.Steps))
	for _, step := range t.Steps {
		ret.Steps = append(ret.Steps, step.Clone())
	}
	return &ret
}

// Step is one approval stage of a workflow template.
type Step struct {
	ID                string           `json:"id" yaml:"id,omitempty"`
	TemplateID        string           `json:"templateId" yaml:"templateId,omitempty"`
	Order             int              `json:"order" yaml:"order"`
	Name              string           `json:"name" yaml:"name"`
	ApproverType      ApproverType     `json:"approverType" yaml:"approverType"`
	ApproverTarget    string           `json:"approverTarget,omitempty" yaml:"approverTarget,omitempty"`
	AlternateApprover string           `json:"alternateApprover,omitempty" yaml:"alternateApprover,omitempty"`
	SLAWarningHours   *int             `json:"slaWarningHours,omitempty" yaml:"slaWarningHours,omitempty"`
	SLACriticalHours  *int             `json:"slaCriticalHours,omitempty" yaml:"slaCriticalHours,omitempty"`
	EscalationHours   *int             `json:"escalationHours,omitempty" yaml:"escalationHours,omitempty"`
	EscalationAction  EscalationAction `json:"escalationAction,omitempty" yaml:"escalationAction,omitempty"`
	RequiresSignature bool             `json:"requiresSignature,omitempty" yaml:"requiresSignature,omitempty"`
	RequiresComment   bool             `json:"requiresComment,omitempty" yaml:"requiresComment,omitempty"`
}

// Deadline returns the escalation deadline for a step started at startedAt.
func (s *Step) Deadline(startedAt time.Time) *time.Time {
	if s == nil || s.EscalationHours == nil {
		return nil
	}
	deadline := startedAt.Add(time.Duration(*s.EscalationHours) * time.Hour)
	return &deadline
}

// SLAStatus derives the SLA severity for the given elapsed time on the step.
// Unset thresholds are skipped.
func (s *Step) SLAStatus(elapsed time.Duration) SLAStatus {
	if s == nil {
		return SLAOnTrack
	}
	switch {
	case crossed(s.EscalationHours, elapsed):
		return SLABreached
	case crossed(s.SLACriticalHours, elapsed):
		return SLACritical
	case crossed(s.SLAWarningHours, elapsed):
		return SLAWarning
	}
	return SLAOnTrack
}

func crossed(hours *int, elapsed time.Duration) bool {
	return hours != nil && elapsed >= time.Duration(*hours)*time.Hour
}

// Clone returns a copy of the step.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}
	ret := *s
	ret.SLAWarningHours = cloneInt(s.SLAWarningHours)
	ret.SLACriticalHours = cloneInt(s.SLACriticalHours)
	ret.EscalationHours = cloneInt(s.EscalationHours)
	return &ret
}

// Hours returns a pointer to n, handy for optional hour fields.
func Hours(n int) *int {
	return &n
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	ret := *v
	return &ret
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	ret := *v
	return &ret
}
