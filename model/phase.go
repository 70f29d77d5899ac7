package model

import "time"

// PhaseType identifies a stage of an appraisal cycle.
type PhaseType string

const (
	PhaseGoalSetting            PhaseType = "goal_setting"
	PhaseSelfAssessment         PhaseType = "self_assessment"
	PhaseFeedback360            PhaseType = "360_collection"
	PhaseManagerReview          PhaseType = "manager_review"
	PhaseCalibration            PhaseType = "calibration"
	PhaseHRReview               PhaseType = "hr_review"
	PhaseRatingRelease          PhaseType = "rating_release"
	PhaseFinalization           PhaseType = "finalization"
	PhaseEmployeeAcknowledgment PhaseType = "employee_acknowledgment"
)

// PhaseTypes lists every phase type in canonical order.
var PhaseTypes = []PhaseType{
	PhaseGoalSetting, PhaseSelfAssessment, PhaseFeedback360, PhaseManagerReview,
	PhaseCalibration, PhaseHRReview, PhaseRatingRelease, PhaseFinalization,
	PhaseEmployeeAcknowledgment,
}

var phaseLabels = map[PhaseType]string{
	PhaseGoalSetting:            "Goal Setting",
	PhaseSelfAssessment:         "Self Assessment",
	PhaseFeedback360:            "360 Feedback Collection",
	PhaseManagerReview:          "Manager Review",
	PhaseCalibration:            "Calibration",
	PhaseHRReview:               "HR Review",
	PhaseRatingRelease:          "Rating Release",
	PhaseFinalization:           "Finalization",
	PhaseEmployeeAcknowledgment: "Employee Acknowledgment",
}

// IsValid reports whether p is a known phase type.
func (p PhaseType) IsValid() bool {
	_, ok := phaseLabels[p]
	return ok
}

// Label returns the human-readable phase name.
func (p PhaseType) Label() string {
	if label, ok := phaseLabels[p]; ok {
		return label
	}
	return string(p)
}

// AppraisalTemplate is a declarative set of scheduled phases for an
// appraisal cycle.
type AppraisalTemplate struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Version     int        `json:"version" yaml:"version"`
	Phases      []*Phase   `json:"phases" yaml:"phases"`
	IsActive    bool       `json:"isActive" yaml:"isActive"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt,omitempty"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty" yaml:"activatedAt,omitempty"`
}

// Clone returns a deep copy of the template.
func (t *AppraisalTemplate) Clone() *AppraisalTemplate {
	if t == nil {
		return nil
	}
	ret := *t
	ret.ActivatedAt = cloneTime(t.ActivatedAt)
	ret.Phases = make([]*Phase, 0, len(t.Phases))
	for _, phase := range t.Phases {
		clone := *phase
		ret.Phases = append(ret.Phases, &clone)
	}
	return &ret
}

// Phase is one scheduled stage of an appraisal template.
type Phase struct {
	ID               string    `json:"id" yaml:"id"`
	TemplateID       string    `json:"templateId,omitempty" yaml:"templateId,omitempty"`
	Name             string    `json:"name,omitempty" yaml:"name,omitempty"`
	PhaseType        PhaseType `json:"phaseType" yaml:"phaseType"`
	DisplayOrder     int       `json:"displayOrder" yaml:"displayOrder"`
	StartOffsetDays  int       `json:"startOffsetDays" yaml:"startOffsetDays"`
	DurationDays     int       `json:"durationDays" yaml:"durationDays"`
	IsMandatory      bool      `json:"isMandatory" yaml:"isMandatory"`
	AllowParallel    bool      `json:"allowParallel" yaml:"allowParallel"`
	DependsOnPhaseID string    `json:"dependsOnPhaseId,omitempty" yaml:"dependsOnPhaseId,omitempty"`
}

// Title returns the phase name, falling back to its type label.
func (p *Phase) Title() string {
	if p.Name != "" {
		return p.Name
	}
	return p.PhaseType.Label()
}

// EndOffsetDays returns the exclusive end of the phase in days from cycle start.
func (p *Phase) EndOffsetDays() int {
	return p.StartOffsetDays + p.DurationDays
}
