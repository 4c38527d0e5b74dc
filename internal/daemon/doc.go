// Package daemon coordinates the long-running livecap process.
//
// It runs one capture loop per configured streamer, restarting a loop after
// the configured interval whenever it terminates on its own, and uses
// flock-based locking to prevent multiple daemon instances as well as two
// recorders writing the same streamer. Individual capture behavior lives in
// the recorder package; the daemon only handles startup, shutdown, and
// supervision.
package daemon
