package nativedl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"livecap/internal/config"
	"livecap/internal/logging"
	"livecap/internal/services"
)

const defaultReadTimeout = 20 * time.Second

var errReadTimeout = errors.New("read timed out")

// StopReason explains why a download finished successfully.
type StopReason string

const (
	StopSize     StopReason = "size"
	StopDuration StopReason = "duration"
	StopEnded    StopReason = "ended"
)

// Request describes one native download.
type Request struct {
	URL     string
	Headers map[string]string
	// Path is the output file, normally the capture's .part path.
	Path    string
	Segment config.SegmentPolicy
}

// Result summarizes a finished download.
type Result struct {
	Bytes    int64
	Duration time.Duration
	Reason   StopReason
}

// Downloader fetches streams over HTTP without an external process.
type Downloader struct {
	client      *http.Client
	logger      *slog.Logger
	readTimeout time.Duration
	sampler     *logging.ProgressSampler
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithClient overrides the HTTP client.
func WithClient(c *http.Client) Option {
	return func(d *Downloader) {
		if c != nil {
			d.client = c
		}
	}
}

// WithLogger sets the progress logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithReadTimeout bounds how long a single read may stall.
func WithReadTimeout(timeout time.Duration) Option {
	return func(d *Downloader) {
		if timeout > 0 {
			d.readTimeout = timeout
		}
	}
}

// New constructs a Downloader.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		client:      &http.Client{},
		logger:      logging.NewNop(),
		readTimeout: defaultReadTimeout,
		sampler:     logging.NewProgressSampler(time.Minute),
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewFromConfig constructs a Downloader using the configured read timeout.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Downloader {
	timeout := defaultReadTimeout
	if cfg != nil && cfg.Download.ReadTimeout > 0 {
		timeout = time.Duration(cfg.Download.ReadTimeout) * time.Second
	}
	return New(WithLogger(logger), WithReadTimeout(timeout))
}

// Download captures req.URL into req.Path until a cutoff or the end of the
// stream. Cancellation of ctx is returned as an error; the partial file is
// left in place.
func (d *Downloader) Download(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.URL) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "nativedl", "download", "stream url is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(req.Path), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrCapture, "nativedl", "prepare", "create output directory", err)
	}
	file, err := os.Create(req.Path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrCapture, "nativedl", "prepare", "create output file", err)
	}
	defer file.Close()

	d.sampler.Reset()
	out := &meter{w: file, start: d.now(), d: d}
	var result Result
	if IsPlaylist(req.URL) {
		result, err = d.downloadHLS(ctx, req, out)
	} else {
		result, err = d.downloadProgressive(ctx, req, out)
	}
	result.Bytes = out.n
	if result.Duration == 0 {
		result.Duration = d.now().Sub(out.start)
	}
	if err != nil {
		return result, err
	}
	d.logger.Info("native capture finished",
		logging.String("reason", string(result.Reason)),
		logging.String("size", humanize.IBytes(uint64(result.Bytes))),
		logging.Duration("elapsed", result.Duration),
	)
	return result, nil
}

// IsPlaylist reports whether the URL path names an HLS playlist.
func IsPlaylist(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(rawURL, ".m3u8")
	}
	return strings.Contains(u.Path, ".m3u8")
}

// fetch is an in-flight GET whose body reads are guarded by the read
// timeout.
type fetch struct {
	resp   *http.Response
	ctx    context.Context
	dog    *time.Timer
	cancel context.CancelCauseFunc
}

func (f *fetch) close() {
	f.dog.Stop()
	f.resp.Body.Close()
	f.cancel(nil)
}

// err classifies a body read failure.
func (f *fetch) err(parent context.Context, rawURL string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(context.Cause(f.ctx), errReadTimeout) {
		return services.Wrap(services.ErrTimeout, "nativedl", "read", rawURL, errReadTimeout)
	}
	return services.Wrap(services.ErrTransient, "nativedl", "read", rawURL, err)
}

func (d *Downloader) get(ctx context.Context, rawURL string, headers map[string]string) (*fetch, error) {
	reqCtx, cancel := context.WithCancelCause(ctx)
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel(nil)
		return nil, services.Wrap(services.ErrValidation, "nativedl", "request", "build request", err)
	}
	SetHeaders(httpReq, headers)
	dog := time.AfterFunc(d.readTimeout, func() { cancel(errReadTimeout) })
	resp, err := d.client.Do(httpReq)
	if err != nil {
		dog.Stop()
		f := &fetch{ctx: reqCtx, cancel: cancel}
		cancel(nil)
		return nil, f.err(ctx, rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		dog.Stop()
		resp.Body.Close()
		cancel(nil)
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	resp.Body = &watchedBody{ReadCloser: resp.Body, dog: dog, timeout: d.readTimeout}
	return &fetch{resp: resp, ctx: reqCtx, dog: dog, cancel: cancel}, nil
}

// SetHeaders copies headers onto req. Accept-Encoding is left to the
// transport so compressed playlists are decoded transparently.
func SetHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		if strings.EqualFold(k, "Accept-Encoding") {
			continue
		}
		req.Header.Set(k, v)
	}
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

type watchedBody struct {
	io.ReadCloser
	dog     *time.Timer
	timeout time.Duration
}

func (b *watchedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.dog.Reset(b.timeout)
	}
	return n, err
}

// meter counts bytes written to the output and reports sampled progress.
type meter struct {
	w     io.Writer
	n     int64
	start time.Time
	d     *Downloader
}

func (m *meter) Write(p []byte) (int, error) {
	n, err := m.w.Write(p)
	m.n += int64(n)
	if err != nil {
		return n, &outputError{err: err}
	}
	elapsed := m.d.now().Sub(m.start)
	if m.d.sampler.ShouldLog(elapsed, "native") {
		m.d.logger.Info("capture progress",
			logging.Duration("elapsed", elapsed.Truncate(time.Second)),
			logging.String("size", humanize.IBytes(uint64(m.n))),
		)
	}
	return n, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
