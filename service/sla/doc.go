// Package sla periodically sweeps active instances and applies the
// clock-driven transitions due on them: SLA status refresh, deadline
// escalation and auto termination.
package sla
