// Package nativedl is the in-process stream downloader behind the native
// capture backend.
//
// Progressive HTTP streams (FLV, MPEG-TS) are copied straight to disk. HLS
// playlists are polled and their media segments appended in sequence order;
// master playlists resolve to the highest-bandwidth variant. A download ends
// at the configured size or duration cutoff, at the end of the playlist, or
// when the upstream closes; each of those is a successful capture.
package nativedl
