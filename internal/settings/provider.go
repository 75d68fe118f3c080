package settings

import (
	"context"
	"sync"
)

// CachedProvider serves the last cascade read from a source provider and
// re-reads it on Refresh. It is the refresh signal handed to an Updater.
type CachedProvider struct {
	source SnapshotProvider

	mu     sync.RWMutex
	cached *Cascade
	subs   []func(Cascade)
}

// NewCachedProvider wraps source.
func NewCachedProvider(source SnapshotProvider) *CachedProvider {
	return &CachedProvider{source: source}
}

// Snapshot returns the cached cascade, loading it on first use.
func (p *CachedProvider) Snapshot(ctx context.Context) (Cascade, error) {
	p.mu.RLock()
	c := p.cached
	p.mu.RUnlock()
	if c != nil {
		return *c, nil
	}
	if err := p.Refresh(ctx); err != nil {
		return Cascade{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return *p.cached, nil
}

// Refresh re-reads the cascade from the source and notifies subscribers.
// On error the previous snapshot is kept.
func (p *CachedProvider) Refresh(ctx context.Context) error {
	c, err := p.source.Snapshot(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.cached = &c
	subs := append([]func(Cascade){}, p.subs...)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(c)
	}
	return nil
}

// Subscribe registers fn to be called with every refreshed cascade.
func (p *CachedProvider) Subscribe(fn func(Cascade)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}
