package validator

import "github.com/viant/approvalflow/model"

// Relation is the ordering constraint a rule places on a phase.
type Relation string

const (
	// First requires the phase to be the first one when present.
	First Relation = "first"
	// Last requires the phase to be the last one when present.
	Last Relation = "last"
	// Before requires the phase to precede Other when both are present.
	Before Relation = "before"
	// After requires the phase to follow Other when both are present.
	After Relation = "after"
)

// Rule is one edge of the appraisal phase precedence graph.
type Rule struct {
	Phase    model.PhaseType
	Relation Relation
	Other    model.PhaseType
}

// PhaseRules is the fixed precedence graph for appraisal cycles. Adding a
// rule here is all that is needed to enforce it.
var PhaseRules = []Rule{
	{Phase: model.PhaseGoalSetting, Relation: First},
	{Phase: model.PhaseSelfAssessment, Relation: Before, Other: model.PhaseManagerReview},
	{Phase: model.PhaseFeedback360, Relation: Before, Other: model.PhaseCalibration},
	{Phase: model.PhaseCalibration, Relation: After, Other: model.PhaseManagerReview},
	{Phase: model.PhaseHRReview, Relation: After, Other: model.PhaseCalibration},
	{Phase: model.PhaseHRReview, Relation: Before, Other: model.PhaseFinalization},
	{Phase: model.PhaseFinalization, Relation: After, Other: model.PhaseCalibration},
	{Phase: model.PhaseEmployeeAcknowledgment, Relation: Last},
}

// check returns the issue text when the rule is violated by the given phase
// positions, or "" when it holds or does not apply.
func (r Rule) check(positions map[model.PhaseType]int, count int) string {
	pos, ok := positions[r.Phase]
	if !ok {
		return ""
	}
	switch r.Relation {
	case First:
		if pos != 0 {
			return r.Phase.Label() + " must be the first phase in the workflow"
		}
	case Last:
		if pos != count-1 {
			return r.Phase.Label() + " must be the last phase in the workflow"
		}
	case Before:
		if other, ok := positions[r.Other]; ok && pos > other {
			return r.Phase.Label() + " must come before " + r.Other.Label() + " in the workflow"
		}
	case After:
		if other, ok := positions[r.Other]; ok && pos < other {
			return r.Phase.Label() + " must come after " + r.Other.Label() + " in the workflow"
		}
	}
	return ""
}
