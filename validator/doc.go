// Package validator checks workflow steps and appraisal phases for legality
// before a template may be activated: dependency cycles, the fixed phase
// precedence graph, illegal overlaps and step-level structural rules.
//
// All functions are pure. They never mutate their input, never stop at the
// first problem and return every issue found in a deterministic order.
package validator
