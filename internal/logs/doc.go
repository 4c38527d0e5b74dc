// Package logs reads livecap log files for the CLI.
//
// It returns the last lines of a file with bounded memory and follows a file
// as the daemon or a recorder appends to it. Only complete lines are emitted;
// a partially written line waits for its newline.
package logs
