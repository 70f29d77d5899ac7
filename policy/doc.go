// Package policy provides pluggable decision rules for governance-body steps,
// where a committee or board must approve rather than a single actor.
package policy
