package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sort"
	"sync"

	"livecap/internal/services"
)

// ErrOffline reports that a source answered but is not currently live.
var ErrOffline = errors.New("stream offline")

// Target identifies a source to probe.
type Target struct {
	Name         string
	URL          string
	Platform     string
	Headers      map[string]string
	DownloadMode bool
}

// Stream is a successful probe result.
type Stream struct {
	URL      string
	Title    string
	CoverURL string
}

// Prober checks a single source.
type Prober interface {
	Name() string
	Probe(ctx context.Context, target Target) (Stream, error)
}

// BatchProber checks many sources at once and yields the live ones.
type BatchProber interface {
	BatchProbe(ctx context.Context, targets []Target) iter.Seq[Target]
}

// Registry maps platform names to probers.
type Registry struct {
	mu      sync.RWMutex
	probers map[string]Prober
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{probers: map[string]Prober{}}
}

// Default returns a registry holding the built-in http and hls probers.
func Default(client *http.Client) *Registry {
	r := NewRegistry()
	r.Register(NewHTTP(client))
	r.Register(NewHLS(client))
	return r
}

// Register adds or replaces the prober for p.Name().
func (r *Registry) Register(p Prober) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probers[p.Name()] = p
}

// Lookup returns the prober registered for platform.
func (r *Registry) Lookup(platform string) (Prober, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.probers[platform]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "probe", "lookup", fmt.Sprintf("no prober for platform %q", platform), nil)
	}
	return p, nil
}

// Platforms lists registered platform names.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.probers))
	for name := range r.probers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Live yields the targets that are currently live, grouping them by platform
// and using batch probing where the platform supports it. Targets whose
// platform has no prober are skipped.
func (r *Registry) Live(ctx context.Context, targets []Target) iter.Seq[Target] {
	return func(yield func(Target) bool) {
		groups := map[string][]Target{}
		var order []string
		for _, t := range targets {
			if _, seen := groups[t.Platform]; !seen {
				order = append(order, t.Platform)
			}
			groups[t.Platform] = append(groups[t.Platform], t)
		}
		for _, platform := range order {
			p, err := r.Lookup(platform)
			if err != nil {
				continue
			}
			batch, ok := p.(BatchProber)
			if !ok {
				batch = sequential{p}
			}
			for t := range batch.BatchProbe(ctx, groups[platform]) {
				if !yield(t) {
					return
				}
			}
		}
	}
}

// Release calls Close on p if it holds releasable resources.
func Release(p Prober) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type sequential struct{ p Prober }

func (s sequential) BatchProbe(ctx context.Context, targets []Target) iter.Seq[Target] {
	return func(yield func(Target) bool) {
		for _, t := range targets {
			if ctx.Err() != nil {
				return
			}
			if _, err := s.p.Probe(ctx, t); err != nil {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}
