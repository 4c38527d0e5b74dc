// Package recorder runs the capture loop for one streamer.
//
// Each attempt probes the source, captures through the configured backend
// and renames the finished `.part` file. After every attempt an explicit
// state machine decides whether to capture again, wait and retry, keep
// polling through the end-of-stream grace window, or stop. Once the loop
// stops the cover is fetched, hooks run, and the run is stored in history.
package recorder
