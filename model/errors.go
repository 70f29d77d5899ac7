package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Detailed error types below unwrap to one of them so that
// callers can rely on errors.Is.
var (
	ErrValidation           = errors.New("validation failed")
	ErrUnresolvableApprover = errors.New("unresolvable approver")
	ErrStaleInstanceState   = errors.New("stale instance state")
	ErrIllegalTransition    = errors.New("illegal transition")
	ErrInstanceNotFound     = errors.New("instance not found")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrTemplateActive       = errors.New("template is active and immutable")
)

// ValidationError reports the issues that block template activation.
type ValidationError struct {
	TemplateID string
	Issues     []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("template %s failed validation: %s", e.TemplateID, strings.Join(e.Issues, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// UnresolvableApproverError reports that no eligible actor exists for a step.
type UnresolvableApproverError struct {
	StepOrder    int
	ApproverType ApproverType
	Target       string
	Reason       string
}

func (e *UnresolvableApproverError) Error() string {
	target := e.Target
	if target == "" {
		target = "-"
	}
	return fmt.Sprintf("step %d: cannot resolve %s approver (target %s): %s", e.StepOrder, e.ApproverType, target, e.Reason)
}

func (e *UnresolvableApproverError) Unwrap() error {
	return ErrUnresolvableApprover
}

// StaleInstanceStateError reports an optimistic concurrency conflict.
type StaleInstanceStateError struct {
	InstanceID string
	Expected   int64
	Actual     int64
}

func (e *StaleInstanceStateError) Error() string {
	return fmt.Sprintf("instance %s: stale state, expected version %d, got %d", e.InstanceID, e.Expected, e.Actual)
}

func (e *StaleInstanceStateError) Unwrap() error {
	return ErrStaleInstanceState
}

// IllegalTransitionError reports an action that is not allowed in the
// current instance state. The instance is left unchanged.
type IllegalTransitionError struct {
	InstanceID string
	Action     ActionType
	Reason     string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("instance %s: illegal %s: %s", e.InstanceID, e.Action, e.Reason)
}

func (e *IllegalTransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// NewIllegalTransition is a shorthand constructor.
func NewIllegalTransition(instanceID string, action ActionType, format string, args ...interface{}) error {
	return &IllegalTransitionError{InstanceID: instanceID, Action: action, Reason: fmt.Sprintf(format, args...)}
}
