package nativedl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"livecap/internal/config"
	"livecap/internal/services"
)

func newTestDownloader(opts ...Option) *Downloader {
	d := New(opts...)
	d.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return d
}

func outputPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "capture", "alpha.flv.part")
}

func readOutput(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return data
}

func TestProgressiveStopsAtSizeCutoff(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 256*1024)
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	path := outputPath(t)
	res, err := newTestDownloader().Download(context.Background(), Request{
		URL:     srv.URL + "/live/alpha.flv",
		Headers: map[string]string{"User-Agent": "livecap-test", "Accept-Encoding": "gzip, deflate"},
		Path:    path,
		Segment: config.SegmentPolicy{Size: 1000},
	})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if res.Reason != StopSize || res.Bytes != 1000 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := len(readOutput(t, path)); got != 1000 {
		t.Fatalf("unexpected file size %d", got)
	}
	if gotUA != "livecap-test" {
		t.Fatalf("headers not forwarded, user agent %q", gotUA)
	}
}

func TestProgressiveEndsWithUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("short stream"))
	}))
	defer srv.Close()

	path := outputPath(t)
	res, err := newTestDownloader().Download(context.Background(), Request{URL: srv.URL + "/a.flv", Path: path})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if res.Reason != StopEnded {
		t.Fatalf("unexpected reason %q", res.Reason)
	}
	if string(readOutput(t, path)) != "short stream" {
		t.Fatal("unexpected output contents")
	}
}

func TestProgressiveStopsAtDurationCutoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("y"), 1<<20))
	}))
	defer srv.Close()

	d := newTestDownloader()
	base := time.Now()
	var ticks atomic.Int64
	d.now = func() time.Time { return base.Add(time.Duration(ticks.Add(1)) * time.Second) }

	res, err := d.Download(context.Background(), Request{
		URL:     srv.URL + "/a.flv",
		Path:    outputPath(t),
		Segment: config.SegmentPolicy{Duration: 5 * time.Second, Size: 10},
	})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if res.Reason != StopDuration {
		t.Fatalf("expected duration cutoff, got %+v", res)
	}
	if res.Bytes <= 10 {
		t.Fatalf("size cutoff should be ignored when a duration is set, wrote %d bytes", res.Bytes)
	}
}

func TestProgressiveReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestDownloader().Download(context.Background(), Request{URL: srv.URL + "/a.flv", Path: outputPath(t)})
	var status *StatusError
	if !errors.As(err, &status) || status.Code != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
}

func TestProgressiveReadTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("head"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	d := newTestDownloader(WithReadTimeout(100 * time.Millisecond))
	_, err := d.Download(context.Background(), Request{URL: srv.URL + "/a.flv", Path: outputPath(t)})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestDownloadReturnsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("head"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err := newTestDownloader().Download(ctx, Request{URL: srv.URL + "/a.flv", Path: outputPath(t)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDownloadRejectsEmptyURL(t *testing.T) {
	_, err := newTestDownloader().Download(context.Background(), Request{Path: outputPath(t)})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// hlsServer serves a master playlist, a sequence of media playlist
// revisions, and numbered segments.
type hlsServer struct {
	mu        sync.Mutex
	revisions []string
	fetches   int
}

func (h *hlsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/master.m3u8":
		fmt.Fprint(w, "#EXTM3U\n"+
			"#EXT-X-STREAM-INF:BANDWIDTH=800000\nlow/index.m3u8\n"+
			"#EXT-X-STREAM-INF:BANDWIDTH=2800000\nhigh/index.m3u8\n")
	case r.URL.Path == "/high/index.m3u8":
		h.mu.Lock()
		idx := min(h.fetches, len(h.revisions)-1)
		h.fetches++
		body := h.revisions[idx]
		h.mu.Unlock()
		fmt.Fprint(w, body)
	case strings.HasPrefix(r.URL.Path, "/high/seg"):
		fmt.Fprint(w, strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/high/"), ".ts")+";")
	default:
		http.NotFound(w, r)
	}
}

func mediaPlaylist(seq int, segments []string, closed bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:2\n#EXT-X-MEDIA-SEQUENCE:%d\n", seq)
	for _, s := range segments {
		fmt.Fprintf(&b, "#EXTINF:2.000,\n%s\n", s)
	}
	if closed {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return b.String()
}

func TestHLSFollowsBestVariantUntilEndList(t *testing.T) {
	h := &hlsServer{revisions: []string{
		mediaPlaylist(0, []string{"seg0.ts", "seg1.ts"}, false),
		mediaPlaylist(1, []string{"seg1.ts", "seg2.ts"}, true),
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	path := outputPath(t)
	res, err := newTestDownloader().Download(context.Background(), Request{URL: srv.URL + "/master.m3u8", Path: path})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if res.Reason != StopEnded {
		t.Fatalf("unexpected reason %q", res.Reason)
	}
	if got := string(readOutput(t, path)); got != "seg0;seg1;seg2;" {
		t.Fatalf("unexpected segment order %q", got)
	}
	if res.Duration != 6*time.Second {
		t.Fatalf("unexpected captured duration %v", res.Duration)
	}
}

func TestHLSStopsAtDurationCutoff(t *testing.T) {
	h := &hlsServer{revisions: []string{
		mediaPlaylist(0, []string{"seg0.ts", "seg1.ts", "seg2.ts", "seg3.ts"}, false),
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	path := outputPath(t)
	res, err := newTestDownloader().Download(context.Background(), Request{
		URL:     srv.URL + "/high/index.m3u8",
		Path:    path,
		Segment: config.SegmentPolicy{Duration: 4 * time.Second},
	})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if res.Reason != StopDuration {
		t.Fatalf("unexpected reason %q", res.Reason)
	}
	if got := string(readOutput(t, path)); got != "seg0;seg1;" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestHLSPlaylistGoneAfterStartIsEnd(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/live.m3u8" && calls.Add(1) == 1:
			fmt.Fprint(w, mediaPlaylist(7, []string{"seg7.ts"}, false))
		case r.URL.Path == "/seg7.ts":
			fmt.Fprint(w, "seven")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res, err := newTestDownloader().Download(context.Background(), Request{URL: srv.URL + "/live.m3u8", Path: outputPath(t)})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if res.Reason != StopEnded || res.Bytes != int64(len("seven")) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestPollInterval(t *testing.T) {
	if got := pollInterval(6); got != 3*time.Second {
		t.Fatalf("pollInterval(6) = %v", got)
	}
	if got := pollInterval(0); got != minPollInterval {
		t.Fatalf("pollInterval(0) = %v", got)
	}
}

func TestIsPlaylist(t *testing.T) {
	if !IsPlaylist("https://cdn.example.com/live/index.m3u8?token=1") {
		t.Fatal("expected playlist")
	}
	if IsPlaylist("https://cdn.example.com/live.flv?next=a.m3u8") {
		t.Fatal("query string must not count")
	}
}
