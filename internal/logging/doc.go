// Package logging assembles structured slog loggers and formatting helpers used
// across livecap.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so capture code automatically
// tags log lines with the task name, attempt number, backend, and run ID. Task
// loggers can tee into a per-task log file, and the progress sampler keeps
// capture-tool progress chatter out of INFO output.
//
// Prefer these constructors over hand-rolled slog setup so new components
// emit data with the same shape and routing guarantees as the rest of the
// system.
package logging
