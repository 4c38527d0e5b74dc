// Package naming turns file name templates into capture file names.
//
// Placeholders are substituted first, the result is sanitized to a safe
// alphabet, and strftime directives expand last against the attempt's start
// time, so a time directive can never introduce an unsafe character.
package naming
