package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/viant/approvalflow/internal/idgen"
	"github.com/viant/approvalflow/model"
)

// errNothingDue is returned by clock-driven transitions that find nothing to do.
var errNothingDue = errors.New("nothing due")

// command is one requested transition.
type command struct {
	action  model.ActionType
	actorID string
	payload Payload
	// system marks clock-driven transitions that bypass eligibility.
	system bool
}

// facts are the resolved inputs a transition is evaluated against.
type facts struct {
	// approvers are the resolved approvers of the current step before
	// delegation.
	approvers []string
	// required is the number of distinct approvals the current step needs.
	required int
	// authorized is set when the actor passed the administrative authorizer.
	authorized bool
	// delegateActive is set when the delegation target is a known active actor.
	delegateActive bool
}

// outcome is the result of a successful transition.
type outcome struct {
	previous *model.Instance
	instance *model.Instance
	actions  []*model.StepAction
	// entered is set when the instance moved onto a step whose approvers must
	// be resolved before the change can be committed.
	entered  bool
	returned bool
	// escalation is the escalation action that fired, if any.
	escalation model.EscalationAction
	slaChanged bool
	terminated bool
}

func (o *outcome) completed() bool {
	return o.instance.IsTerminal() && !o.previous.IsTerminal()
}

func (o *outcome) record(action model.ActionType, actorID string, now time.Time, payload Payload) {
	o.actions = append(o.actions, &model.StepAction{
		ID:           idgen.WithPrefix("act"),
		InstanceID:   o.instance.ID,
		StepOrder:    o.previous.CurrentStepOrder,
		Action:       action,
		ActorID:      actorID,
		Timestamp:    now,
		Comment:      payload.Comment,
		DelegatedTo:  payload.DelegateTo,
		ReturnToStep: payload.ReturnToStep,
	})
}

func newOutcome(current *model.Instance) *outcome {
	return &outcome{previous: current, instance: current.Clone()}
}

// Eligible applies the delegations registered for step to the resolved
// approver set. A delegating actor is replaced by its delegate; chains are
// followed in registration order.
func Eligible(approvers []string, delegations []model.Delegation, step int) []string {
	ret := append([]string(nil), approvers...)
	for _, delegation := range delegations {
		if delegation.StepOrder != step {
			continue
		}
		index := indexOf(ret, delegation.From)
		if index == -1 {
			continue
		}
		ret = append(ret[:index], ret[index+1:]...)
		if indexOf(ret, delegation.To) == -1 {
			ret = append(ret, delegation.To)
		}
	}
	return ret
}

// holders maps every resolved approver of step to the actor currently holding
// its approval, following delegation chains in registration order.
func holders(approvers []string, delegations []model.Delegation, step int) map[string]string {
	ret := make(map[string]string, len(approvers))
	for _, approver := range approvers {
		ret[approver] = approver
	}
	for _, delegation := range delegations {
		if delegation.StepOrder != step {
			continue
		}
		for principal, holder := range ret {
			if holder == delegation.From {
				ret[principal] = delegation.To
			}
		}
	}
	return ret
}

// principalsOf returns the resolved approvers actorID acts for on step.
func principalsOf(actorID string, approvers []string, delegations []model.Delegation, step int) []string {
	held := holders(approvers, delegations, step)
	var ret []string
	for _, approver := range approvers {
		if held[approver] == actorID && indexOf(ret, approver) == -1 {
			ret = append(ret, approver)
		}
	}
	return ret
}

func indexOf(values []string, value string) int {
	for i, candidate := range values {
		if candidate == value {
			return i
		}
	}
	return -1
}

// transition computes the next state of current for cmd. It performs no I/O
// and never mutates current.
func transition(current *model.Instance, cmd *command, f *facts, now time.Time) (*outcome, error) {
	if current.IsTerminal() {
		return nil, model.NewIllegalTransition(current.ID, cmd.action, "instance is %s", current.Status)
	}
	step := current.CurrentStep()
	if step == nil {
		return nil, model.NewIllegalTransition(current.ID, cmd.action, "current step %d does not exist", current.CurrentStepOrder)
	}
	if !cmd.system {
		if err := checkActor(current, step, cmd, f); err != nil {
			return nil, err
		}
	}
	o := newOutcome(current)
	switch cmd.action {
	case model.ActionApprove:
		return o, approve(o, step, cmd, f, now)
	case model.ActionReject:
		return o, reject(o, step, cmd, now)
	case model.ActionReturn:
		return o, returnTo(o, step, cmd, now)
	case model.ActionDelegate:
		return o, delegate(o, step, cmd, f, now)
	case model.ActionComment:
		if cmd.payload.Comment == "" {
			return nil, model.NewIllegalTransition(current.ID, cmd.action, "comment is empty")
		}
		o.record(model.ActionComment, cmd.actorID, now, Payload{Comment: cmd.payload.Comment})
		return o, nil
	case model.ActionCancel:
		o.record(model.ActionCancel, cmd.actorID, now, Payload{Comment: cmd.payload.Comment})
		complete(o.instance, model.StatusCancelled, model.FinalCancel, now)
		return o, nil
	case model.ActionEscalate:
		if cmd.system && (!current.Overdue(now) || current.EscalatedForDeadline()) {
			return nil, errNothingDue
		}
		return o, escalate(o, step, cmd, now)
	}
	return nil, model.NewIllegalTransition(current.ID, cmd.action, "unsupported action")
}

// checkActor verifies that a human actor may perform cmd on the current step.
func checkActor(current *model.Instance, step *model.Step, cmd *command, f *facts) error {
	if cmd.actorID == "" {
		return model.NewIllegalTransition(current.ID, cmd.action, "actor is required")
	}
	switch cmd.action {
	case model.ActionCancel, model.ActionEscalate:
		if !f.authorized {
			return model.NewIllegalTransition(current.ID, cmd.action, "%s is not authorized", cmd.actorID)
		}
		return nil
	case model.ActionComment:
		if cmd.actorID == current.InitiatedBy || cmd.actorID == current.Subject.ActorID {
			return nil
		}
	}
	eligible := Eligible(f.approvers, current.Delegations, step.Order)
	if indexOf(eligible, cmd.actorID) == -1 {
		return model.NewIllegalTransition(current.ID, cmd.action, "%s is not an eligible approver of step %d", cmd.actorID, step.Order)
	}
	return nil
}

func approve(o *outcome, step *model.Step, cmd *command, f *facts, now time.Time) error {
	next := o.instance
	if !cmd.system && f.required > 1 {
		// approvals count once per resolved member, whoever holds them
		counted := 0
		for _, principal := range principalsOf(cmd.actorID, f.approvers, next.Delegations, step.Order) {
			if indexOf(next.StepApprovals, principal) == -1 {
				next.StepApprovals = append(next.StepApprovals, principal)
				counted++
			}
		}
		if counted == 0 {
			return model.NewIllegalTransition(next.ID, cmd.action, "%s already approved step %d", cmd.actorID, step.Order)
		}
		if len(next.StepApprovals) < f.required {
			o.record(model.ActionApprove, cmd.actorID, now, Payload{Comment: cmd.payload.Comment})
			return nil
		}
	}
	o.record(model.ActionApprove, cmd.actorID, now, Payload{Comment: cmd.payload.Comment})
	if step.Order >= next.LastStepOrder() {
		complete(next, model.StatusApproved, model.FinalApprove, now)
		return nil
	}
	enter(next, step.Order+1, now)
	o.entered = true
	return nil
}

func reject(o *outcome, step *model.Step, cmd *command, now time.Time) error {
	if !cmd.system && step.RequiresComment && cmd.payload.Comment == "" {
		return model.NewIllegalTransition(o.instance.ID, cmd.action, "step %d requires a comment", step.Order)
	}
	o.record(model.ActionReject, cmd.actorID, now, Payload{Comment: cmd.payload.Comment})
	complete(o.instance, model.StatusRejected, model.FinalReject, now)
	return nil
}

func returnTo(o *outcome, step *model.Step, cmd *command, now time.Time) error {
	next := o.instance
	target := cmd.payload.ReturnToStep
	switch {
	case !next.AllowReturnToPrevious:
		return model.NewIllegalTransition(next.ID, cmd.action, "template does not allow returning to a previous step")
	case target < 1 || target >= step.Order:
		return model.NewIllegalTransition(next.ID, cmd.action, "return target %d must precede step %d", target, step.Order)
	case next.Step(target) == nil:
		return model.NewIllegalTransition(next.ID, cmd.action, "return target %d does not exist", target)
	case step.RequiresComment && cmd.payload.Comment == "":
		return model.NewIllegalTransition(next.ID, cmd.action, "step %d requires a reason", step.Order)
	}
	o.record(model.ActionReturn, cmd.actorID, now, Payload{Comment: cmd.payload.Comment, ReturnToStep: target})
	enter(next, target, now)
	o.entered = true
	o.returned = true
	return nil
}

func delegate(o *outcome, step *model.Step, cmd *command, f *facts, now time.Time) error {
	next := o.instance
	to := cmd.payload.DelegateTo
	switch {
	case to == "":
		return model.NewIllegalTransition(next.ID, cmd.action, "delegate is required")
	case to == cmd.actorID:
		return model.NewIllegalTransition(next.ID, cmd.action, "cannot delegate to self")
	case !f.delegateActive:
		return model.NewIllegalTransition(next.ID, cmd.action, "delegate %s is not an active actor", to)
	}
	for _, principal := range principalsOf(cmd.actorID, f.approvers, next.Delegations, step.Order) {
		if indexOf(next.StepApprovals, principal) != -1 {
			return model.NewIllegalTransition(next.ID, cmd.action, "%s already approved step %d", cmd.actorID, step.Order)
		}
	}
	next.Delegations = append(next.Delegations, model.Delegation{StepOrder: next.CurrentStepOrder, From: cmd.actorID, To: to})
	o.record(model.ActionDelegate, cmd.actorID, now, Payload{Comment: cmd.payload.Comment, DelegateTo: to})
	return nil
}

// escalate applies the escalation action configured on the current step.
func escalate(o *outcome, step *model.Step, cmd *command, now time.Time) error {
	next := o.instance
	if !step.EscalationAction.IsValid() {
		return model.NewIllegalTransition(next.ID, cmd.action, "step %d has no escalation action", step.Order)
	}
	o.escalation = step.EscalationAction
	o.record(model.ActionEscalate, cmd.actorID, now, Payload{Comment: string(step.EscalationAction)})
	marker := next.CurrentStepDeadlineAt
	switch step.EscalationAction {
	case model.EscalationNotifyAlternate:
	case model.EscalationEscalateUp:
		next.EscalationLevel++
		next.Status = model.StatusEscalated
		next.CurrentStepStartedAt = now
		next.CurrentStepDeadlineAt = step.Deadline(now)
		next.SLAStatus = model.SLAOnTrack
		next.StepApprovals = nil
		o.entered = true
	case model.EscalationAutoApprove:
		system := &command{action: model.ActionApprove, actorID: model.SystemActor, system: true}
		if err := approve(o, step, system, &facts{}, now); err != nil {
			return err
		}
	case model.EscalationAutoReject:
		system := &command{action: model.ActionReject, actorID: model.SystemActor, system: true}
		if err := reject(o, step, system, now); err != nil {
			return err
		}
	case model.EscalationTerminate:
		complete(next, model.StatusCancelled, model.FinalTerminate, now)
	}
	if marker != nil && !next.IsTerminal() && next.CurrentStepOrder == o.previous.CurrentStepOrder {
		next.LastEscalatedDeadline = cloneTime(marker)
	}
	return nil
}

// autoTerminate cancels an instance that outlived its template ceiling.
func autoTerminate(current *model.Instance, now time.Time) (*outcome, error) {
	if current.IsTerminal() || !current.AutoTerminateDue(now) {
		return nil, errNothingDue
	}
	o := newOutcome(current)
	comment := fmt.Sprintf("auto-terminated after %d hours", *current.AutoTerminateHours)
	o.record(model.ActionCancel, model.SystemActor, now, Payload{Comment: comment})
	complete(o.instance, model.StatusCancelled, model.FinalTerminate, now)
	o.terminated = true
	return o, nil
}

// tick applies every clock-driven change due at now: auto-termination, SLA
// status refresh and deadline escalation.
func tick(current *model.Instance, now time.Time) (*outcome, error) {
	if o, err := autoTerminate(current, now); err == nil {
		return o, nil
	}
	if current.IsTerminal() {
		return nil, errNothingDue
	}
	step := current.CurrentStep()
	if step == nil {
		return nil, errNothingDue
	}
	var ret *outcome
	if sla := step.SLAStatus(now.Sub(current.CurrentStepStartedAt)); sla != current.SLAStatus {
		ret = newOutcome(current)
		ret.instance.SLAStatus = sla
		ret.slaChanged = true
	}
	if !current.Overdue(now) || current.EscalatedForDeadline() || !step.EscalationAction.IsValid() {
		if ret == nil {
			return nil, errNothingDue
		}
		return ret, nil
	}
	escalated, err := transition(current, &command{action: model.ActionEscalate, actorID: model.SystemActor, system: true}, &facts{}, now)
	if err != nil {
		return nil, err
	}
	if ret != nil && escalated.instance.CurrentStepOrder == current.CurrentStepOrder && !escalated.entered && !escalated.instance.IsTerminal() {
		escalated.instance.SLAStatus = ret.instance.SLAStatus
		escalated.slaChanged = true
	}
	return escalated, nil
}

// enter moves the instance onto order and restarts the step clock.
func enter(instance *model.Instance, order int, now time.Time) {
	instance.CurrentStepOrder = order
	instance.Status = model.StatusInProgress
	instance.CurrentStepStartedAt = now
	instance.CurrentStepDeadlineAt = instance.Step(order).Deadline(now)
	instance.SLAStatus = model.SLAOnTrack
	instance.EscalationLevel = 0
	instance.LastEscalatedDeadline = nil
	instance.StepApprovals = nil
}

func complete(instance *model.Instance, status model.Status, final model.FinalAction, now time.Time) {
	instance.Status = status
	instance.FinalAction = final
	instance.CompletedAt = &now
	instance.CurrentStepDeadlineAt = nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	ret := *t
	return &ret
}
