package capture

import (
	"net/url"
	"strings"

	"livecap/internal/config"
)

// PartSuffix marks an output file that is still being written.
const PartSuffix = ".part"

// Request describes one capture attempt.
type Request struct {
	Backend   string
	StreamURL string
	Headers   map[string]string
	// Output is the destination path without container extension.
	Output    string
	Suffix    string
	Segment   config.SegmentPolicy
	ExtraArgs []string
}

// FinalPath is the path the capture is renamed to once the attempt ends.
func (r Request) FinalPath() string {
	return r.Output + "." + r.Suffix
}

// PartPath is the in-progress output path every backend writes to.
func (r Request) PartPath() string {
	return r.FinalPath() + PartSuffix
}

// pathHas reports whether the URL path (not the query) contains ext.
func pathHas(rawURL, ext string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(rawURL, ext)
	}
	return strings.Contains(u.Path, ext)
}
