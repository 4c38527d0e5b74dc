package process

import (
	"bufio"
	"bytes"
	"io"
	"iter"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const maxLineBytes = 1024 * 1024

// Lines yields the non-empty lines of r as they arrive. Both '\n' and '\r'
// terminate a line so carriage-return progress updates surface one by one.
// Iteration stops at EOF or the first read error.
func Lines(r io.Reader) iter.Seq[string] {
	return func(yield func(string) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		scanner.Split(scanTerminalLines)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
}

func scanTerminalLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Progress is one parsed capture-tool status line.
type Progress struct {
	Position time.Duration
	Size     int64
}

var progressPattern = regexp.MustCompile(`size=\s*(\d+)\s*([kKMG]i?B)?\s+time=\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// ParseProgress extracts the captured size and media position from an
// ffmpeg status line such as "size=  1024kB time=00:01:02.50 bitrate=...".
func ParseProgress(line string) (Progress, bool) {
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}
	size, _ := strconv.ParseInt(m[1], 10, 64)
	switch strings.ToLower(strings.TrimSuffix(strings.TrimSuffix(m[2], "B"), "i")) {
	case "k":
		size *= 1024
	case "m":
		size *= 1024 * 1024
	case "g":
		size *= 1024 * 1024 * 1024
	}
	hours, _ := strconv.Atoi(m[3])
	minutes, _ := strconv.Atoi(m[4])
	seconds, _ := strconv.ParseFloat(m[5], 64)
	position := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return Progress{Position: position, Size: size}, true
}
