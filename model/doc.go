// Package model defines the approval-workflow domain: workflow templates and
// their steps, appraisal templates and their phases, running instances, the
// append-only step-action log and the error taxonomy shared by all services.
//
// Every enumerated concept is a closed string variant with an explicit list
// of values so that switches over them can be checked for exhaustiveness.
package model
