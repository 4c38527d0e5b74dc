// Package deps checks that the external programs used by the capture
// backends are installed.
package deps
