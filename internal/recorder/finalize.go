package recorder

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"livecap/internal/capture"
	"livecap/internal/logging"
)

// Finalize renames a capture's `.part` file to its final name. A missing
// source is not an error. When the rename fails because the target is in
// the way, the stale target is removed and the rename retried once. Other
// failures are logged and swallowed; the returned path is empty unless the
// rename succeeded.
func Finalize(logger *slog.Logger, partPath string) string {
	if logger == nil {
		logger = logging.NewNop()
	}
	final := strings.TrimSuffix(partPath, capture.PartSuffix)
	err := os.Rename(partPath, final)
	if err == nil {
		logger.Debug("capture finalized", logging.String("path", final))
		return final
	}
	if errors.Is(err, fs.ErrNotExist) {
		if _, statErr := os.Stat(partPath); errors.Is(statErr, fs.ErrNotExist) {
			logger.Debug("no partial file to finalize", logging.String("path", partPath))
			return ""
		}
	}
	_ = os.Remove(final)
	if err := os.Rename(partPath, final); err != nil {
		logging.WarnWithContext(logger, "finalize capture failed", "finalize_failed",
			logging.String("path", partPath),
			logging.String(logging.FieldImpact, "recording left with .part suffix"),
			logging.Error(err),
		)
		return ""
	}
	logger.Debug("capture finalized after replacing existing file", logging.String("path", final))
	return final
}
