package process

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"livecap/internal/config"
)

// MirrorWriter resolves the console mirror mode to a writer, or nil when
// output should not be mirrored. "auto" mirrors only when stderr is a terminal.
func MirrorWriter(mode string) io.Writer {
	switch mode {
	case config.MirrorAlways:
		return os.Stderr
	case config.MirrorNever:
		return nil
	default:
		fd := os.Stderr.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			return os.Stderr
		}
		return nil
	}
}
