package nativedl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/grafov/m3u8"

	"livecap/internal/logging"
	"livecap/internal/services"
)

const (
	minPollInterval = time.Second
	// stallPolls is how many target durations may pass without a new segment
	// before a live playlist is treated as ended.
	stallPolls = 10
)

// Playlist is a decoded media playlist together with the URL it was read
// from, for resolving relative segment URIs.
type Playlist struct {
	URL   *url.URL
	Media *m3u8.MediaPlaylist
}

// FetchPlaylist loads rawURL and follows a master playlist to its
// highest-bandwidth variant.
func FetchPlaylist(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) (Playlist, error) {
	for range 2 {
		base, err := url.Parse(rawURL)
		if err != nil {
			return Playlist{}, services.Wrap(services.ErrValidation, "nativedl", "playlist", "parse url", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return Playlist{}, services.Wrap(services.ErrValidation, "nativedl", "playlist", "build request", err)
		}
		SetHeaders(req, headers)
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return Playlist{}, ctx.Err()
			}
			return Playlist{}, services.Wrap(services.ErrTransient, "nativedl", "playlist", rawURL, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return Playlist{}, &StatusError{URL: rawURL, Code: resp.StatusCode}
		}
		decoded, kind, err := m3u8.DecodeFrom(resp.Body, false)
		resp.Body.Close()
		if err != nil {
			return Playlist{}, services.Wrap(services.ErrUnsupportedFormat, "nativedl", "playlist", "decode "+rawURL, err)
		}
		switch kind {
		case m3u8.MEDIA:
			media, _ := decoded.(*m3u8.MediaPlaylist)
			return Playlist{URL: base, Media: media}, nil
		case m3u8.MASTER:
			master, _ := decoded.(*m3u8.MasterPlaylist)
			variant := BestVariant(master)
			if variant == nil {
				return Playlist{}, services.Wrap(services.ErrProbe, "nativedl", "playlist", "master playlist has no variants", nil)
			}
			ref, err := base.Parse(variant.URI)
			if err != nil {
				return Playlist{}, services.Wrap(services.ErrValidation, "nativedl", "playlist", "variant uri", err)
			}
			rawURL = ref.String()
		}
	}
	return Playlist{}, services.Wrap(services.ErrUnsupportedFormat, "nativedl", "playlist", "nested master playlists", nil)
}

// BestVariant returns the variant with the highest declared bandwidth.
func BestVariant(master *m3u8.MasterPlaylist) *m3u8.Variant {
	if master == nil {
		return nil
	}
	var best *m3u8.Variant
	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best
}

// Segments returns the non-nil segments of a media playlist in order.
func (p Playlist) Segments() []*m3u8.MediaSegment {
	if p.Media == nil {
		return nil
	}
	out := make([]*m3u8.MediaSegment, 0, len(p.Media.Segments))
	for _, seg := range p.Media.Segments {
		if seg == nil {
			break
		}
		out = append(out, seg)
	}
	return out
}

func (d *Downloader) downloadHLS(ctx context.Context, req Request, out *meter) (Result, error) {
	var (
		next     uint64
		started  bool
		captured time.Duration
		lastNew  = d.now()
	)
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, d.readTimeout)
		playlist, err := FetchPlaylist(fetchCtx, d.client, req.URL, req.Headers)
		cancel()
		if err != nil {
			var status *StatusError
			if started && errors.As(err, &status) {
				return Result{Reason: StopEnded, Duration: captured}, nil
			}
			return Result{Duration: captured}, err
		}
		media := playlist.Media
		for i, seg := range playlist.Segments() {
			seq := media.SeqNo + uint64(i)
			if started && seq < next {
				continue
			}
			segURL, err := playlist.URL.Parse(seg.URI)
			if err != nil {
				return Result{Duration: captured}, services.Wrap(services.ErrValidation, "nativedl", "segment", "segment uri", err)
			}
			if err := d.copySegment(ctx, segURL.String(), req.Headers, out); err != nil {
				return Result{Duration: captured}, err
			}
			started = true
			next = seq + 1
			lastNew = d.now()
			captured += time.Duration(seg.Duration * float64(time.Second))
			if req.Segment.Duration > 0 && captured >= req.Segment.Duration {
				return Result{Reason: StopDuration, Duration: captured}, nil
			}
			if req.Segment.Duration <= 0 && req.Segment.Size > 0 && out.n >= req.Segment.Size {
				return Result{Reason: StopSize, Duration: captured}, nil
			}
		}
		if media.Closed {
			return Result{Reason: StopEnded, Duration: captured}, nil
		}
		interval := pollInterval(media.TargetDuration)
		if started && d.now().Sub(lastNew) > stallPolls*interval*2 {
			d.logger.Info("playlist stopped advancing", logging.String("url", req.URL))
			return Result{Reason: StopEnded, Duration: captured}, nil
		}
		if err := d.sleep(ctx, interval); err != nil {
			return Result{Duration: captured}, err
		}
	}
}

func (d *Downloader) copySegment(ctx context.Context, rawURL string, headers map[string]string, out io.Writer) error {
	f, err := d.get(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	defer f.close()
	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(out, f.resp.Body, buf); err != nil {
		var werr *outputError
		if errors.As(err, &werr) {
			return writeError(werr.err)
		}
		return f.err(ctx, rawURL, err)
	}
	return nil
}

// pollInterval is half the target duration, bounded below.
func pollInterval(target float64) time.Duration {
	interval := time.Duration(target * float64(time.Second) / 2)
	if interval < minPollInterval {
		return minPollInterval
	}
	return interval
}

type outputError struct{ err error }

func (e *outputError) Error() string { return fmt.Sprintf("write output: %v", e.err) }
func (e *outputError) Unwrap() error { return e.err }

func writeError(err error) error {
	return services.Wrap(services.ErrCapture, "nativedl", "write", "write output", err)
}
