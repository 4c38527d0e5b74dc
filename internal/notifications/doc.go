// Package notifications delivers capture events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Individual event classes can be muted in
// the [notifications] config section.
package notifications
