package model

// Category classifies the business transaction a workflow template governs.
type Category string

const (
	CategoryHire         Category = "hire"
	CategoryConfirmation Category = "confirmation"
	CategoryPromotion    Category = "promotion"
	CategoryTransfer     Category = "transfer"
	CategoryTermination  Category = "termination"
	CategorySalaryChange Category = "salary_change"
	CategoryLeaveRequest Category = "leave_request"
	CategoryExpenseClaim Category = "expense_claim"
	CategoryAppraisal    Category = "appraisal"
	CategoryDisciplinary Category = "disciplinary"
	CategoryLoanRequest  Category = "loan_request"
	CategoryGeneral      Category = "general"
)

// Categories lists every known category.
var Categories = []Category{
	CategoryHire, CategoryConfirmation, CategoryPromotion, CategoryTransfer,
	CategoryTermination, CategorySalaryChange, CategoryLeaveRequest, CategoryExpenseClaim,
	CategoryAppraisal, CategoryDisciplinary, CategoryLoanRequest, CategoryGeneral,
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	for _, candidate := range Categories {
		if c == candidate {
			return true
		}
	}
	return false
}

// ApproverType selects how the approvers of a step are resolved.
type ApproverType string

const (
	ApproverManager        ApproverType = "manager"
	ApproverHR             ApproverType = "hr"
	ApproverPosition       ApproverType = "position"
	ApproverWorkflowRole   ApproverType = "workflow_role"
	ApproverRole           ApproverType = "role"
	ApproverGovernanceBody ApproverType = "governance_body"
	ApproverSpecificUser   ApproverType = "specific_user"
)

// ApproverTypes lists every approver type.
var ApproverTypes = []ApproverType{
	ApproverManager, ApproverHR, ApproverPosition, ApproverWorkflowRole,
	ApproverRole, ApproverGovernanceBody, ApproverSpecificUser,
}

// IsValid reports whether t is a known approver type.
func (t ApproverType) IsValid() bool {
	for _, candidate := range ApproverTypes {
		if t == candidate {
			return true
		}
	}
	return false
}

// RequiresTarget reports whether the approver type is meaningless without an
// ApproverTarget.
func (t ApproverType) RequiresTarget() bool {
	switch t {
	case ApproverPosition, ApproverSpecificUser, ApproverWorkflowRole, ApproverRole, ApproverGovernanceBody:
		return true
	}
	return false
}

// EscalationAction is what happens when a step deadline passes without action.
type EscalationAction string

const (
	EscalationNotifyAlternate EscalationAction = "notify_alternate"
	EscalationEscalateUp      EscalationAction = "escalate_up"
	EscalationAutoApprove     EscalationAction = "auto_approve"
	EscalationAutoReject      EscalationAction = "auto_reject"
	EscalationTerminate       EscalationAction = "terminate"
)

// EscalationActions lists every escalation action.
var EscalationActions = []EscalationAction{
	EscalationNotifyAlternate, EscalationEscalateUp, EscalationAutoApprove,
	EscalationAutoReject, EscalationTerminate,
}

// IsValid reports whether a is a known escalation action.
func (a EscalationAction) IsValid() bool {
	for _, candidate := range EscalationActions {
		if a == candidate {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an instance.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusReturned   Status = "returned"
	StatusEscalated  Status = "escalated"
	StatusCancelled  Status = "cancelled"
)

// ActiveStatuses lists the non-terminal statuses an instance may rest in.
var ActiveStatuses = []Status{StatusPending, StatusInProgress, StatusReturned, StatusEscalated}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// SLAStatus is the derived severity of the time spent on the current step.
type SLAStatus string

const (
	SLAOnTrack  SLAStatus = "on_track"
	SLAWarning  SLAStatus = "warning"
	SLACritical SLAStatus = "critical"
	SLABreached SLAStatus = "breached"
)

// Severity orders SLA statuses, on_track being the lowest.
func (s SLAStatus) Severity() int {
	switch s {
	case SLAWarning:
		return 1
	case SLACritical:
		return 2
	case SLABreached:
		return 3
	}
	return 0
}

// ActionType is the kind of a recorded step action.
type ActionType string

const (
	ActionApprove  ActionType = "approve"
	ActionReject   ActionType = "reject"
	ActionReturn   ActionType = "return"
	ActionDelegate ActionType = "delegate"
	ActionEscalate ActionType = "escalate"
	ActionComment  ActionType = "comment"
	ActionCancel   ActionType = "cancel"
)

// ActionTypes lists every action type.
var ActionTypes = []ActionType{
	ActionApprove, ActionReject, ActionReturn, ActionDelegate, ActionEscalate, ActionComment, ActionCancel,
}

// IsValid reports whether a is a known action type.
func (a ActionType) IsValid() bool {
	for _, candidate := range ActionTypes {
		if a == candidate {
			return true
		}
	}
	return false
}

// FinalAction records how a terminal instance ended.
type FinalAction string

const (
	FinalApprove   FinalAction = "approve"
	FinalReject    FinalAction = "reject"
	FinalTerminate FinalAction = "terminate"
	FinalCancel    FinalAction = "cancel"
)
