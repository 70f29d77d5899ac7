package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/approvalflow/model"
)

func TestValidateSteps(t *testing.T) {
	testCases := []struct {
		name   string
		steps  []*model.Step
		expect []string
	}{
		{
			name: "valid",
			steps: []*model.Step{
				{Order: 1, Name: "manager", ApproverType: model.ApproverManager, EscalationHours: model.Hours(24), EscalationAction: model.EscalationAutoApprove},
				{Order: 2, Name: "hr", ApproverType: model.ApproverHR},
			},
			expect: []string{},
		},
		{
			name:   "empty",
			expect: []string{"Template must have at least one step"},
		},
		{
			name: "gap in orders",
			steps: []*model.Step{
				{Order: 1, Name: "a", ApproverType: model.ApproverManager},
				{Order: 3, Name: "b", ApproverType: model.ApproverHR},
			},
			expect: []string{"Step orders must be contiguous starting at 1"},
		},
		{
			name: "duplicate orders",
			steps: []*model.Step{
				{Order: 1, Name: "a", ApproverType: model.ApproverManager},
				{Order: 1, Name: "b", ApproverType: model.ApproverHR},
			},
			expect: []string{"Step order 1 is used more than once"},
		},
		{
			name: "escalation hours without action",
			steps: []*model.Step{
				{Order: 1, Name: "a", ApproverType: model.ApproverManager, EscalationHours: model.Hours(4)},
			},
			expect: []string{"Step 1 (a): escalation action is required when escalation hours are set"},
		},
		{
			name: "missing target",
			steps: []*model.Step{
				{Order: 1, Name: "board", ApproverType: model.ApproverGovernanceBody},
			},
			expect: []string{"Step 1 (board): approver type governance_body requires a target"},
		},
		{
			name: "thresholds out of order",
			steps: []*model.Step{
				{Order: 1, Name: "a", ApproverType: model.ApproverManager, SLAWarningHours: model.Hours(10), SLACriticalHours: model.Hours(8),
					EscalationHours: model.Hours(6), EscalationAction: model.EscalationNotifyAlternate},
			},
			expect: []string{
				"Step 1 (a): SLA warning hours must be less than critical hours",
				"Step 1 (a): SLA critical hours must be less than escalation hours",
			},
		},
		{
			name: "unknown variants",
			steps: []*model.Step{
				{Order: 1, Name: "a", ApproverType: "boss", EscalationAction: "panic"},
			},
			expect: []string{
				`Step 1 (a): unknown approver type "boss"`,
				`Step 1 (a): unknown escalation action "panic"`,
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateSteps(tc.steps)
			assert.Equal(t, len(tc.expect) == 0, result.Valid)
			assert.Equal(t, tc.expect, result.Issues)
		})
	}
}

func TestValidateWorkflow(t *testing.T) {
	tpl := &model.WorkflowTemplate{Category: "bogus", AutoTerminateHours: model.Hours(0)}
	result := ValidateWorkflow(tpl)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{
		"Template name is required",
		`Unknown category "bogus"`,
		"Auto terminate hours must be positive",
		"Template must have at least one step",
	}, result.Issues)
}
