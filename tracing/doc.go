// Package tracing wraps OpenTelemetry so engine transitions and SLA sweeps
// can be traced without the rest of the code importing the SDK directly.
package tracing
