package validator

import (
	"fmt"
	"sort"

	"github.com/viant/approvalflow/model"
)

// ValidateSteps checks a workflow step list for structural legality.
func ValidateSteps(steps []*model.Step) *Result {
	c := &collector{}
	if len(steps) == 0 {
		c.add("Template must have at least one step")
		return c.result()
	}
	checkStepOrders(c, steps)
	for _, step := range steps {
		checkStep(c, step)
	}
	return c.result()
}

// ValidateWorkflow validates a workflow template.
func ValidateWorkflow(t *model.WorkflowTemplate) *Result {
	c := &collector{}
	if t.Name == "" {
		c.add("Template name is required")
	}
	if t.Category != "" && !t.Category.IsValid() {
		c.add("Unknown category %q", t.Category)
	}
	if t.AutoTerminateHours != nil && *t.AutoTerminateHours <= 0 {
		c.add("Auto terminate hours must be positive")
	}
	return Merge(c.result(), ValidateSteps(t.Steps))
}

func checkStepOrders(c *collector, steps []*model.Step) {
	counts := map[int]int{}
	for _, step := range steps {
		counts[step.Order]++
	}
	orders := make([]int, 0, len(counts))
	for order := range counts {
		orders = append(orders, order)
	}
	sort.Ints(orders)
	for _, order := range orders {
		if counts[order] > 1 {
			c.add("Step order %d is used more than once", order)
		}
	}
	for i, order := range orders {
		if order != i+1 {
			c.add("Step orders must be contiguous starting at 1")
			break
		}
	}
}

func checkStep(c *collector, step *model.Step) {
	label := fmt.Sprintf("Step %d (%s)", step.Order, step.Name)
	if !step.ApproverType.IsValid() {
		c.add("%s: unknown approver type %q", label, step.ApproverType)
	} else if step.ApproverType.RequiresTarget() && step.ApproverTarget == "" {
		c.add("%s: approver type %s requires a target", label, step.ApproverType)
	}
	if step.EscalationAction != "" && !step.EscalationAction.IsValid() {
		c.add("%s: unknown escalation action %q", label, step.EscalationAction)
	}
	if step.EscalationHours != nil {
		if step.EscalationAction == "" {
			c.add("%s: escalation action is required when escalation hours are set", label)
		}
		if *step.EscalationHours <= 0 {
			c.add("%s: escalation hours must be positive", label)
		}
	}
	checkThreshold(c, label, "SLA warning", step.SLAWarningHours, "critical", step.SLACriticalHours)
	checkThreshold(c, label, "SLA critical", step.SLACriticalHours, "escalation", step.EscalationHours)
	if step.SLACriticalHours == nil {
		checkThreshold(c, label, "SLA warning", step.SLAWarningHours, "escalation", step.EscalationHours)
	}
}

func checkThreshold(c *collector, label, name string, lower *int, upperName string, upper *int) {
	if lower == nil || upper == nil {
		return
	}
	if *lower >= *upper {
		c.add("%s: %s hours must be less than %s hours", label, name, upperName)
	}
}
