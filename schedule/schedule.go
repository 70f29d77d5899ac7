// Package schedule turns a validated appraisal phase template into concrete
// calendar dates for one cycle.
package schedule

import (
	"time"

	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/validator"
)

// PhaseDates is the calendar window of one phase. End is exclusive.
type PhaseDates struct {
	Phase               *model.Phase `json:"phase"`
	CalculatedStartDate time.Time    `json:"calculatedStartDate"`
	CalculatedEndDate   time.Time    `json:"calculatedEndDate"`
}

// CalculateDates offsets every phase from cycleStart, preserving input order.
// It is a pure function; callers are expected to pass phases that already
// passed validation.
func CalculateDates(phases []*model.Phase, cycleStart time.Time) []PhaseDates {
	ret := make([]PhaseDates, 0, len(phases))
	for _, phase := range phases {
		start := cycleStart.AddDate(0, 0, phase.StartOffsetDays)
		ret = append(ret, PhaseDates{
			Phase:               phase,
			CalculatedStartDate: start,
			CalculatedEndDate:   start.AddDate(0, 0, phase.DurationDays),
		})
	}
	return ret
}

// TotalDuration returns the length of the cycle in days.
func TotalDuration(phases []*model.Phase) int {
	total := 0
	for _, phase := range phases {
		if end := phase.EndOffsetDays(); end > total {
			total = end
		}
	}
	return total
}

// Plan is a scheduled appraisal cycle.
type Plan struct {
	TemplateID string       `json:"templateId"`
	CycleStart time.Time    `json:"cycleStart"`
	CycleEnd   time.Time    `json:"cycleEnd"`
	TotalDays  int          `json:"totalDays"`
	Phases     []PhaseDates `json:"phases"`
}

// ForTemplate validates the template and schedules it. A template with
// issues yields a *model.ValidationError.
func ForTemplate(t *model.AppraisalTemplate, cycleStart time.Time) (*Plan, error) {
	if result := validator.ValidateAppraisal(t); !result.Valid {
		return nil, &model.ValidationError{TemplateID: t.ID, Issues: result.Issues}
	}
	total := TotalDuration(t.Phases)
	return &Plan{
		TemplateID: t.ID,
		CycleStart: cycleStart,
		CycleEnd:   cycleStart.AddDate(0, 0, total),
		TotalDays:  total,
		Phases:     CalculateDates(t.Phases, cycleStart),
	}, nil
}
