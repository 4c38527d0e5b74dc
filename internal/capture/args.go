package capture

import (
	"sort"
	"strconv"
	"strings"

	"livecap/internal/config"
)

// rwTimeout is ffmpeg's network read timeout in microseconds.
const rwTimeout = "20000000"

// OutputArgs returns the cutoff arguments shared by the external backends:
// AAC bitstream normalization followed by exactly one of a duration or a
// size cutoff.
func OutputArgs(policy config.SegmentPolicy) []string {
	args := []string{"-bsf:a", "aac_adtstoasc"}
	switch {
	case policy.Duration > 0:
		args = append(args, "-to", config.FormatClock(policy.Duration))
	case policy.Size > 0:
		args = append(args, "-fs", strconv.FormatInt(policy.Size, 10))
	default:
		args = append(args, "-fs", strconv.FormatInt(config.DefaultSegmentSize(config.BackendFFmpeg), 10))
	}
	return args
}

// HeaderArg renders request headers as ffmpeg's -headers value, in key order.
func HeaderArg(headers map[string]string) string {
	var b strings.Builder
	for _, k := range sortedKeys(headers) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(headers[k])
		b.WriteString("\r\n")
	}
	return b.String()
}

// FFmpegArgs builds the direct single-process capture command line.
func FFmpegArgs(req Request) []string {
	args := []string{"-y"}
	if len(req.Headers) > 0 {
		args = append(args, "-headers", HeaderArg(req.Headers))
	}
	args = append(args, "-rw_timeout", rwTimeout)
	if pathHas(req.StreamURL, ".m3u8") {
		args = append(args, "-max_reload", "1000")
	}
	args = append(args, "-i", req.StreamURL)
	return append(args, tail(req)...)
}

// StreamlinkArgs builds the relay's upstream command line; it writes the best
// quality stream to stdout.
func StreamlinkArgs(req Request) []string {
	args := []string{"--stream-segment-threads", "3", "--hls-playlist-reload-attempts", "1"}
	for _, k := range sortedKeys(req.Headers) {
		args = append(args, "--http-header", k+"="+req.Headers[k])
	}
	return append(args, req.StreamURL, "best", "-O")
}

// RelayArgs builds the relay's downstream ffmpeg command line reading stdin.
func RelayArgs(req Request) []string {
	args := []string{"-re", "-i", "pipe:0", "-y", "-rw_timeout", rwTimeout}
	return append(args, tail(req)...)
}

func tail(req Request) []string {
	args := OutputArgs(req.Segment)
	args = append(args, req.ExtraArgs...)
	return append(args, "-c", "copy", "-f", muxer(req.Suffix), req.PartPath())
}

// muxer maps a container suffix to the ffmpeg muxer name.
func muxer(suffix string) string {
	switch suffix {
	case "ts":
		return "mpegts"
	case "mkv":
		return "matroska"
	default:
		return suffix
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
