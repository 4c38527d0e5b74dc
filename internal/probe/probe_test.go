package probe_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"testing"

	"livecap/internal/probe"
	"livecap/internal/services"
)

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/redirect.flv":
			http.Redirect(w, r, "/live.flv", http.StatusFound)
		case "/live.flv":
			if r.Header.Get("Referer") != "https://example.com" {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			_, _ = w.Write([]byte("FLV"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := probe.NewHTTP(srv.Client())
	headers := map[string]string{"Referer": "https://example.com"}

	stream, err := p.Probe(context.Background(), probe.Target{Name: "alpha", URL: srv.URL + "/redirect.flv", Headers: headers})
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if stream.URL != srv.URL+"/live.flv" {
		t.Fatalf("expected redirect target, got %q", stream.URL)
	}

	_, err = p.Probe(context.Background(), probe.Target{Name: "alpha", URL: srv.URL + "/offline.flv"})
	if !errors.Is(err, services.ErrProbe) {
		t.Fatalf("expected probe error, got %v", err)
	}
	if err := probe.Release(p); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

const master = "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=100000\nlow.m3u8\n#EXT-X-STREAM-INF:BANDWIDTH=900000\nhigh.m3u8\n"

func media(closed bool, segments int) string {
	body := "#EXTM3U\n#EXT-X-TARGETDURATION:2\n#EXT-X-MEDIA-SEQUENCE:0\n"
	for i := range segments {
		body += fmt.Sprintf("#EXTINF:2.0,\nseg%d.ts\n", i)
	}
	if closed {
		body += "#EXT-X-ENDLIST\n"
	}
	return body
}

func hlsServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/master.m3u8":
			fmt.Fprint(w, master)
		case "/high.m3u8":
			fmt.Fprint(w, media(false, 3))
		case "/low.m3u8":
			fmt.Fprint(w, media(false, 1))
		case "/vod.m3u8":
			fmt.Fprint(w, media(true, 2))
		case "/empty.m3u8":
			fmt.Fprint(w, media(false, 0))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHLSProber(t *testing.T) {
	srv := hlsServer(t)
	p := probe.NewHLS(srv.Client())

	stream, err := p.Probe(context.Background(), probe.Target{URL: srv.URL + "/master.m3u8"})
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if stream.URL != srv.URL+"/high.m3u8" {
		t.Fatalf("expected highest bandwidth variant, got %q", stream.URL)
	}

	tests := []struct {
		name     string
		path     string
		download bool
		offline  bool
	}{
		{"ended live stream", "/vod.m3u8", false, true},
		{"ended stream in download mode", "/vod.m3u8", true, false},
		{"no segments", "/empty.m3u8", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Probe(context.Background(), probe.Target{URL: srv.URL + tt.path, DownloadMode: tt.download})
			if tt.offline && !errors.Is(err, probe.ErrOffline) {
				t.Fatalf("expected offline, got %v", err)
			}
			if !tt.offline && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

type countingProber struct{ calls int }

func (c *countingProber) Name() string { return "custom" }

func (c *countingProber) Probe(_ context.Context, t probe.Target) (probe.Stream, error) {
	c.calls++
	if t.Name == "down" {
		return probe.Stream{}, probe.ErrOffline
	}
	return probe.Stream{URL: t.URL}, nil
}

func TestRegistryLive(t *testing.T) {
	srv := hlsServer(t)
	reg := probe.Default(srv.Client())
	custom := &countingProber{}
	reg.Register(custom)

	targets := []probe.Target{
		{Name: "a", URL: srv.URL + "/master.m3u8", Platform: "hls"},
		{Name: "b", URL: srv.URL + "/vod.m3u8", Platform: "hls"},
		{Name: "c", URL: srv.URL + "/high.m3u8", Platform: "hls"},
		{Name: "up", URL: "x", Platform: "custom"},
		{Name: "down", URL: "y", Platform: "custom"},
		{Name: "z", URL: "z", Platform: "unknown"},
	}
	var live []string
	for tgt := range reg.Live(context.Background(), targets) {
		live = append(live, tgt.Name)
	}
	sort.Strings(live)
	if !slices.Equal(live, []string{"a", "c", "up"}) {
		t.Fatalf("unexpected live set %v", live)
	}
	if custom.calls != 2 {
		t.Fatalf("expected sequential fallback to probe each target, got %d calls", custom.calls)
	}
	if got := reg.Platforms(); !slices.Equal(got, []string{"custom", "hls", "http"}) {
		t.Fatalf("unexpected platforms %v", got)
	}
	if _, err := reg.Lookup("unknown"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRegistryLiveStopsEarly(t *testing.T) {
	srv := hlsServer(t)
	reg := probe.Default(srv.Client())
	targets := []probe.Target{
		{Name: "a", URL: srv.URL + "/high.m3u8", Platform: "hls"},
		{Name: "b", URL: srv.URL + "/low.m3u8", Platform: "hls"},
		{Name: "c", URL: srv.URL + "/master.m3u8", Platform: "hls"},
	}
	count := 0
	for range reg.Live(context.Background(), targets) {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected to stop after one target, got %d", count)
	}
}
