package progress

import (
	"sync"

	"github.com/viant/approvalflow/model"
)

// View summarises how far an instance has moved through its steps.
type View struct {
	InstanceID     string          `json:"instanceId"`
	Status         model.Status    `json:"status"`
	SLAStatus      model.SLAStatus `json:"slaStatus"`
	TotalSteps     int             `json:"totalSteps"`
	CurrentStep    int             `json:"currentStep"`
	CompletedSteps int             `json:"completedSteps"`
	Percent        int             `json:"percent"`
}

// Of builds a progress view for the instance.
func Of(instance *model.Instance) View {
	ret := View{
		InstanceID:  instance.ID,
		Status:      instance.Status,
		SLAStatus:   instance.SLAStatus,
		TotalSteps:  len(instance.Steps),
		CurrentStep: instance.CurrentStepOrder,
	}
	switch {
	case instance.Status == model.StatusApproved:
		ret.CompletedSteps = ret.TotalSteps
	case instance.CurrentStepOrder > 0:
		ret.CompletedSteps = instance.CurrentStepOrder - 1
	}
	if ret.TotalSteps > 0 {
		ret.Percent = ret.CompletedSteps * 100 / ret.TotalSteps
	}
	return ret
}

// Delta represents an incremental counter change emitted by the engine.
type Delta struct {
	Active    int
	Approved  int
	Rejected  int
	Cancelled int
	Escalated int
}

// Progress keeps aggregated instance counters. It is safe for concurrent use.
type Progress struct {
	ActiveInstances    int
	ApprovedInstances  int
	RejectedInstances  int
	CancelledInstances int
	Escalations        int

	sync.Mutex
	onChange func(Progress)
}

// Update applies the supplied delta. The onChange callback, if any, receives
// a copy outside the critical section.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.Lock()
	p.ActiveInstances += d.Active
	p.ApprovedInstances += d.Approved
	p.RejectedInstances += d.Rejected
	p.CancelledInstances += d.Cancelled
	p.Escalations += d.Escalated
	snapshot := p.copy()
	cb := p.onChange
	p.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters suitable for read-only inspection.
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.Lock()
	defer p.Unlock()
	return p.copy()
}

// OnChange registers a callback invoked after every Update. Passing nil
// disables the callback.
func (p *Progress) OnChange(cb func(Progress)) {
	if p == nil {
		return
	}
	p.Lock()
	p.onChange = cb
	p.Unlock()
}

func (p *Progress) copy() Progress {
	return Progress{
		ActiveInstances:    p.ActiveInstances,
		ApprovedInstances:  p.ApprovedInstances,
		RejectedInstances:  p.RejectedInstances,
		CancelledInstances: p.CancelledInstances,
		Escalations:        p.Escalations,
	}
}

// Completion returns the delta that moves one active instance into the
// bucket of its terminal status.
func Completion(status model.Status) Delta {
	switch status {
	case model.StatusApproved:
		return Delta{Active: -1, Approved: 1}
	case model.StatusRejected:
		return Delta{Active: -1, Rejected: 1}
	case model.StatusCancelled:
		return Delta{Active: -1, Cancelled: 1}
	}
	return Delta{}
}
