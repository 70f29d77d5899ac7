// Package engine drives workflow instances through their approval steps.
//
// Every state change is computed by one pure transition function from the
// current instance, the requested action and the resolved approvers, then
// committed against the version it was computed from. Clock-driven changes
// (SLA status, deadline escalation, auto termination) go through Tick.
package engine
