// Package textutil provides text helpers for turning stream titles and
// streamer names into safe file names and path segments.
package textutil
