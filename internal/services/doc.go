// Package services defines shared utilities consumed by the capture loop and
// its collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp task names, attempt numbers, backends, and
//     run identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper, so probe, capture, and
//     naming failures can be classified with errors.Is and mapped onto run
//     history outcomes.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across tasks.
package services
