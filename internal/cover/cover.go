// Package cover downloads a stream's cover image next to its recordings.
package cover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"livecap/internal/logging"
	"livecap/internal/nativedl"
	"livecap/internal/services"
	"livecap/internal/textutil"
)

const defaultTimeout = 30 * time.Second

// Request describes one cover download.
type Request struct {
	URL      string
	Platform string
	Task     string
	// Name is the formatted capture name the cover file is named after.
	Name    string
	Headers map[string]string
}

// Fetcher stores cover images under Dir/{platform}/{task}/.
type Fetcher struct {
	Dir     string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New returns a fetcher rooted at dir. A non-positive timeout selects the
// default.
func New(dir string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fetcher{Dir: dir, client: &http.Client{}, timeout: timeout, logger: logger}
}

// Extension returns the image extension for a cover URL: jpg or png.
func Extension(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "cover", "extension", "parse url", err)
	}
	// CDNs append resize directives after the extension (a.jpg@320w, a.png/dy1).
	p := strings.ToLower(u.Path)
	switch {
	case strings.Contains(p, ".jpg"), strings.Contains(p, ".jpeg"):
		return "jpg", nil
	case strings.Contains(p, ".png"):
		return "png", nil
	}
	return "", services.Wrap(services.ErrUnsupportedFormat, "cover", "extension", fmt.Sprintf("cover %q is not jpg or png", u.Path), nil)
}

// Target returns the path the cover for req is stored at.
func (f *Fetcher) Target(req Request) (string, error) {
	ext, err := Extension(req.URL)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.Dir, textutil.SanitizeToken(req.Platform), req.Task, req.Name+"."+ext), nil
}

// Fetch downloads the cover once. An existing file at the target path is
// reused. Errors are returned for logging; callers treat them as non-fatal.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (string, error) {
	target, err := f.Target(req)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); err == nil {
		f.logger.Debug("cover already present", logging.String("path", target))
		return target, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", services.Wrap(services.ErrCapture, "cover", "stat", target, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", services.Wrap(services.ErrCapture, "cover", "prepare", "create cover directory", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "cover", "request", "build request", err)
	}
	nativedl.SetHeaders(httpReq, req.Headers)
	resp, err := f.client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "cover", "fetch", req.URL, err)
		}
		return "", services.Wrap(services.ErrTransient, "cover", "fetch", req.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", services.Wrap(services.ErrTransient, "cover", "fetch", req.URL, &nativedl.StatusError{URL: req.URL, Code: resp.StatusCode})
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".cover-*")
	if err != nil {
		return "", services.Wrap(services.ErrCapture, "cover", "write", "create temp file", err)
	}
	tmpName := tmp.Name()
	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(tmpName)
		return "", services.Wrap(services.ErrTransient, "cover", "write", req.URL, copyErr)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", services.Wrap(services.ErrCapture, "cover", "write", "rename cover", err)
	}
	f.logger.Info("cover saved", logging.String("path", target))
	return target, nil
}
