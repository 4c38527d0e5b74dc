package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SegmentPolicy is the cutoff that ends one capture attempt. At most one of
// Duration and Size is set; the zero value means "use the backend default".
type SegmentPolicy struct {
	Duration time.Duration
	Size     int64
}

// IsZero reports whether neither cutoff is configured.
func (p SegmentPolicy) IsZero() bool {
	return p.Duration <= 0 && p.Size <= 0
}

// DefaultSegmentSize returns the size cutoff applied by a backend when no
// policy is configured.
func DefaultSegmentSize(backend string) int64 {
	if backend == BackendNative {
		return defaultNativeSegmentSize
	}
	return defaultExternalSegmentSize
}

// SegmentPolicy resolves the segment policy for the named streamer. Streamer
// overrides replace the [download] values as a pair. When both a duration and
// a size are configured the duration wins.
func (c *Config) SegmentPolicy(name string) SegmentPolicy {
	segmentTime, fileSize := c.Download.SegmentTime, c.Download.FileSize
	if s, ok := c.Streamers[name]; ok && (s.SegmentTime != "" || s.FileSize > 0) {
		segmentTime, fileSize = s.SegmentTime, s.FileSize
	}
	if segmentTime != "" {
		if d, err := ParseClock(segmentTime); err == nil && d > 0 {
			return SegmentPolicy{Duration: d}
		}
	}
	if fileSize > 0 {
		return SegmentPolicy{Size: fileSize}
	}
	return SegmentPolicy{}
}

// ParseClock parses an HH:MM:SS value into a duration. Hours are unbounded.
func ParseClock(value string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("clock value %q: expected HH:MM:SS", value)
	}
	var fields [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("clock value %q: invalid field %q", value, part)
		}
		if i > 0 && n > 59 {
			return 0, fmt.Errorf("clock value %q: field %q out of range", value, part)
		}
		fields[i] = n
	}
	return time.Duration(fields[0])*time.Hour +
		time.Duration(fields[1])*time.Minute +
		time.Duration(fields[2])*time.Second, nil
}

// FormatClock renders a duration as HH:MM:SS, truncating sub-second parts.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
