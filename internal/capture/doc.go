// Package capture selects and runs the backend that pulls a live stream into
// a `.part` file.
//
// Three strategies exist: the in-process native downloader, a streamlink to
// ffmpeg relay pipeline, and a single ffmpeg process reading the URL
// directly. Every strategy applies the same output cutoff derived from the
// task's segment policy.
package capture
