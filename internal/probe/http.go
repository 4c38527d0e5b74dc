package probe

import (
	"context"
	"iter"
	"net/http"
	"sync"
	"time"

	"livecap/internal/nativedl"
	"livecap/internal/services"
)

const (
	defaultProbeTimeout = 15 * time.Second
	batchConcurrency    = 4
)

// HTTPProber treats the source URL as a progressive stream; it is live when
// a GET answers 2xx.
type HTTPProber struct {
	client *http.Client
}

// NewHTTP returns a progressive-stream prober. A nil client gets a default
// with a bounded timeout.
func NewHTTP(client *http.Client) *HTTPProber {
	if client == nil {
		client = &http.Client{Timeout: defaultProbeTimeout}
	}
	return &HTTPProber{client: client}
}

func (p *HTTPProber) Name() string { return "http" }

func (p *HTTPProber) Probe(ctx context.Context, target Target) (Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return Stream{}, services.Wrap(services.ErrValidation, "probe", "http", "build request", err)
	}
	nativedl.SetHeaders(req, target.Headers)
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Stream{}, ctx.Err()
		}
		return Stream{}, services.Wrap(services.ErrProbe, "probe", "http", target.URL, err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Stream{}, services.Wrap(services.ErrProbe, "probe", "http", target.URL, &nativedl.StatusError{URL: target.URL, Code: resp.StatusCode})
	}
	return Stream{URL: resp.Request.URL.String(), Title: target.Name}, nil
}

// BatchProbe checks targets concurrently and yields the live ones in
// completion order.
func (p *HTTPProber) BatchProbe(ctx context.Context, targets []Target) iter.Seq[Target] {
	return concurrentProbe(ctx, p, targets)
}

// Close releases idle connections held by the client.
func (p *HTTPProber) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func concurrentProbe(ctx context.Context, p Prober, targets []Target) iter.Seq[Target] {
	return func(yield func(Target) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		live := make(chan Target)
		sem := make(chan struct{}, batchConcurrency)
		var wg sync.WaitGroup
		for _, t := range targets {
			wg.Go(func() {
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-sem }()
				if _, err := p.Probe(ctx, t); err != nil {
					return
				}
				select {
				case live <- t:
				case <-ctx.Done():
				}
			})
		}
		go func() {
			wg.Wait()
			close(live)
		}()
		for t := range live {
			if !yield(t) {
				cancel()
				for range live {
				}
				return
			}
		}
	}
}
