package template

import (
	"fmt"

	"github.com/viant/approvalflow/model"
	"gopkg.in/yaml.v3"
)

// Definition is a decoded template document. Exactly one of Workflow and
// Appraisal is set: documents with phases describe appraisal cycles, the rest
// describe approval workflows.
type Definition struct {
	Workflow  *model.WorkflowTemplate
	Appraisal *model.AppraisalTemplate
}

type document struct {
	model.WorkflowTemplate `yaml:",inline"`
	Phases                 []*model.Phase `yaml:"phases"`
}

// DecodeYAML decodes a template definition. ${env.KEY} expressions are
// expanded before decoding.
func DecodeYAML(encoded []byte) (*Definition, error) {
	var doc document
	if err := yaml.Unmarshal([]byte(expandEnvExpr(string(encoded))), &doc); err != nil {
		return nil, err
	}
	switch {
	case len(doc.Phases) > 0 && len(doc.Steps) > 0:
		return nil, fmt.Errorf("template %v defines both steps and phases", doc.Name)
	case len(doc.Phases) > 0:
		return &Definition{Appraisal: &model.AppraisalTemplate{
			ID:          doc.ID,
			Name:        doc.Name,
			Description: doc.Description,
			Version:     doc.Version,
			Phases:      doc.Phases,
		}}, nil
	case len(doc.Steps) > 0:
		workflow := doc.WorkflowTemplate
		workflow.IsActive = false
		workflow.ActivatedAt = nil
		return &Definition{Workflow: &workflow}, nil
	}
	return nil, fmt.Errorf("template %v defines neither steps nor phases", doc.Name)
}

// ID returns the template identifier.
func (d *Definition) ID() string {
	if d.Workflow != nil {
		return d.Workflow.ID
	}
	return d.Appraisal.ID
}

func (d *Definition) applyDefaults(name string) {
	if workflow := d.Workflow; workflow != nil {
		if workflow.ID == "" {
			workflow.ID = name
		}
		if workflow.Name == "" {
			workflow.Name = name
		}
		if workflow.Version == 0 {
			workflow.Version = 1
		}
		if workflow.Category == "" {
			workflow.Category = model.CategoryGeneral
		}
		workflow.SortSteps()
		for _, step := range workflow.Steps {
			step.TemplateID = workflow.ID
			if step.ID == "" {
				step.ID = fmt.Sprintf("%s-step-%d", workflow.ID, step.Order)
			}
		}
	}
	if appraisal := d.Appraisal; appraisal != nil {
		if appraisal.ID == "" {
			appraisal.ID = name
		}
		if appraisal.Name == "" {
			appraisal.Name = name
		}
		if appraisal.Version == 0 {
			appraisal.Version = 1
		}
		for i, phase := range appraisal.Phases {
			phase.TemplateID = appraisal.ID
			if phase.ID == "" {
				phase.ID = fmt.Sprintf("%s-phase-%d", appraisal.ID, i+1)
			}
		}
	}
}
