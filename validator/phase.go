package validator

import (
	"sort"

	"github.com/viant/approvalflow/model"
)

// ValidatePhases checks an appraisal phase list: field sanity, dependency
// references and cycles, the precedence rules and overlap of mandatory,
// non-parallel phases.
func ValidatePhases(phases []*model.Phase) *Result {
	c := &collector{}
	if len(phases) == 0 {
		c.add("Template must have at least one phase")
		return c.result()
	}
	checkPhaseFields(c, phases)
	checkCycles(c, phases)
	checkPrecedence(c, ordered(phases))
	checkOverlaps(c, ordered(phases))
	return c.result()
}

// ValidateAppraisal validates an appraisal template.
func ValidateAppraisal(t *model.AppraisalTemplate) *Result {
	c := &collector{}
	if t.Name == "" {
		c.add("Template name is required")
	}
	return Merge(c.result(), ValidatePhases(t.Phases))
}

func checkPhaseFields(c *collector, phases []*model.Phase) {
	seen := map[string]bool{}
	for _, phase := range phases {
		if !phase.PhaseType.IsValid() {
			c.add("Unknown phase type %q", phase.PhaseType)
		}
		if phase.ID != "" {
			if seen[phase.ID] {
				c.add("Duplicate phase id %s", phase.ID)
			}
			seen[phase.ID] = true
		}
		if phase.StartOffsetDays < 0 {
			c.add("%s has a negative start offset", phase.Title())
		}
		if phase.DurationDays < 0 {
			c.add("%s has a negative duration", phase.Title())
		}
	}
	for _, phase := range phases {
		if dep := phase.DependsOnPhaseID; dep != "" && !seen[dep] {
			c.add("%s depends on unknown phase %s", phase.Title(), dep)
		}
	}
}

// checkCycles walks the dependsOn relation depth first, keeping the current
// path on a recursion stack; reaching a node that is still on the stack
// closes a cycle.
func checkCycles(c *collector, phases []*model.Phase) {
	byID := make(map[string]*model.Phase, len(phases))
	for _, phase := range phases {
		if phase.ID != "" {
			if _, ok := byID[phase.ID]; !ok {
				byID[phase.ID] = phase
			}
		}
	}
	visited := map[string]bool{}
	onStack := map[string]bool{}

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		onStack[id] = true
		if dep := byID[id].DependsOnPhaseID; dep != "" {
			if _, known := byID[dep]; known {
				switch {
				case onStack[dep]:
					c.add("Circular dependency involving %s", byID[dep].Title())
				case !visited[dep]:
					visit(dep)
				}
			}
		}
		onStack[id] = false
	}

	for _, phase := range phases {
		if phase.ID == "" || visited[phase.ID] {
			continue
		}
		visit(phase.ID)
	}
}

func checkPrecedence(c *collector, phases []*model.Phase) {
	positions := map[model.PhaseType]int{}
	for i, phase := range phases {
		if _, ok := positions[phase.PhaseType]; !ok {
			positions[phase.PhaseType] = i
		}
	}
	for _, rule := range PhaseRules {
		if issue := rule.check(positions, len(phases)); issue != "" {
			c.add("%s", issue)
		}
	}
}

func checkOverlaps(c *collector, phases []*model.Phase) {
	for i := 0; i < len(phases); i++ {
		a := phases[i]
		if !exclusive(a) {
			continue
		}
		for j := i + 1; j < len(phases); j++ {
			b := phases[j]
			if !exclusive(b) {
				continue
			}
			if a.StartOffsetDays < b.EndOffsetDays() && b.StartOffsetDays < a.EndOffsetDays() {
				c.add("Phases %s and %s overlap (days %d-%d and %d-%d)",
					a.Title(), b.Title(),
					a.StartOffsetDays, a.EndOffsetDays(),
					b.StartOffsetDays, b.EndOffsetDays())
			}
		}
	}
}

// exclusive reports whether a phase takes part in the overlap rule.
func exclusive(p *model.Phase) bool {
	return p.IsMandatory && !p.AllowParallel && p.DurationDays > 0
}

// ordered returns phases sorted by display order without touching the input.
func ordered(phases []*model.Phase) []*model.Phase {
	ret := append([]*model.Phase(nil), phases...)
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].DisplayOrder < ret[j].DisplayOrder })
	return ret
}
