// Package history persists capture run results in a SQLite database.
//
// Every terminated capture loop writes one row: which task ran, against which
// URL and backend, how many attempts and segments it took, and how it ended.
// The CLI reads the same table to render recent activity.
package history
