package deps

import (
	"slices"

	"livecap/internal/config"
)

// Requirements lists the programs needed by the backends the configuration
// uses. Programs only needed by unused backends are reported as optional.
func Requirements(cfg *config.Config) []Requirement {
	backends := cfg.Backends()
	external := slices.Contains(backends, config.BackendFFmpeg) || slices.Contains(backends, config.BackendStreamlink)
	relay := slices.Contains(backends, config.BackendStreamlink)
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Remuxes captures for the ffmpeg and streamlink backends",
			Optional:    !external,
			VersionArg:  "-version",
		},
		{
			Name:        "Streamlink",
			Command:     cfg.StreamlinkBinary(),
			Description: "Fetches HLS segments for the streamlink backend",
			Optional:    !relay,
			VersionArg:  "--version",
		},
	}
}
