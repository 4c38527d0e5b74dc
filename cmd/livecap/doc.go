// Package main hosts the livecap CLI entrypoint and command graph.
//
// The Cobra-based command tree runs single capture loops in the foreground,
// starts and stops the multi-streamer daemon, probes streamers, previews
// output names, and reads run history. Capture behavior lives in the internal
// packages; commands here only resolve configuration and render results.
package main
