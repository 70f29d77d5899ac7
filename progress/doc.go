// Package progress exposes read-only progress views of approval instances
// and aggregated counters for the instances handled by an engine.
package progress
