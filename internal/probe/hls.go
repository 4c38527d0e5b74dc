package probe

import (
	"context"
	"errors"
	"iter"
	"net/http"

	"livecap/internal/nativedl"
	"livecap/internal/services"
)

// HLSProber fetches an HLS playlist. A source is live when its (best
// variant) media playlist has segments and no end tag; in download mode a
// finished playlist also counts.
type HLSProber struct {
	client *http.Client
}

// NewHLS returns an HLS prober.
func NewHLS(client *http.Client) *HLSProber {
	if client == nil {
		client = &http.Client{Timeout: defaultProbeTimeout}
	}
	return &HLSProber{client: client}
}

func (p *HLSProber) Name() string { return "hls" }

func (p *HLSProber) Probe(ctx context.Context, target Target) (Stream, error) {
	playlist, err := nativedl.FetchPlaylist(ctx, p.client, target.URL, target.Headers)
	if err != nil {
		if ctx.Err() != nil {
			return Stream{}, ctx.Err()
		}
		if errors.Is(err, services.ErrProbe) {
			return Stream{}, err
		}
		return Stream{}, services.Wrap(services.ErrProbe, "probe", "hls", target.URL, err)
	}
	if len(playlist.Segments()) == 0 {
		return Stream{}, services.Wrap(services.ErrProbe, "probe", "hls", "playlist has no segments", ErrOffline)
	}
	if playlist.Media.Closed && !target.DownloadMode {
		return Stream{}, services.Wrap(services.ErrProbe, "probe", "hls", "playlist has ended", ErrOffline)
	}
	return Stream{URL: playlist.URL.String(), Title: target.Name}, nil
}

// BatchProbe checks targets concurrently.
func (p *HLSProber) BatchProbe(ctx context.Context, targets []Target) iter.Seq[Target] {
	return concurrentProbe(ctx, p, targets)
}

// Close releases idle connections held by the client.
func (p *HLSProber) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
