package activation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/agentx-labs/exthost/internal/extension"
	"github.com/agentx-labs/exthost/internal/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrHostClosed is returned by Activate after Close.
var ErrHostClosed = errors.New("extension host closed")

// DefaultConcurrency bounds ActivateAll when no limit is configured.
const DefaultConcurrency = 4

// Host keeps one RPC client per active extension.
type Host struct {
	factory     *Factory
	logger      *zap.Logger
	concurrency int

	group singleflight.Group
	wg    sync.WaitGroup

	mu     sync.Mutex
	active map[string]*rpc.Client
	closed bool
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithConcurrency bounds how many activations ActivateAll runs at once.
func WithConcurrency(n int) HostOption {
	return func(h *Host) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// WithHostLogger sets the host logger, also handed to RPC clients.
func WithHostLogger(l *zap.Logger) HostOption {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHost returns a Host activating extensions through factory.
func NewHost(factory *Factory, opts ...HostOption) *Host {
	h := &Host{
		factory:     factory,
		logger:      zap.NewNop(),
		concurrency: DefaultConcurrency,
		active:      make(map[string]*rpc.Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Activate returns the client for ext, launching it if it is not running.
// Concurrent calls for the same id share one activation.
func (h *Host) Activate(ctx context.Context, ext extension.ConfiguredExtension) (*rpc.Client, error) {
	v, err, _ := h.group.Do(ext.ID, func() (any, error) {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return nil, ErrHostClosed
		}
		if c, ok := h.active[ext.ID]; ok {
			h.mu.Unlock()
			return c, nil
		}
		h.mu.Unlock()

		handle, err := h.factory.CreateTransport(ctx, ext)
		if err != nil {
			return nil, err
		}
		c := rpc.NewClient(handle, rpc.WithLogger(h.logger.With(zap.String("extension", ext.ID))))

		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			_ = c.Close()
			return nil, ErrHostClosed
		}
		h.active[ext.ID] = c
		h.wg.Add(1)
		h.mu.Unlock()

		go h.watch(ext.ID, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rpc.Client), nil
}

// watch forgets an extension whose runtime stopped on its own.
func (h *Host) watch(id string, c *rpc.Client) {
	defer h.wg.Done()
	<-c.Done()

	h.mu.Lock()
	forget := h.active[id] == c
	if forget {
		delete(h.active, id)
	}
	h.mu.Unlock()

	if forget {
		h.logger.Info("extension stopped", zap.String("extension", id))
		_ = c.Close()
	}
}

// ActivateAll activates every extension with bounded concurrency. One
// failure doesn't stop the others; all failures are joined.
func (h *Host) ActivateAll(ctx context.Context, exts []extension.ConfiguredExtension) error {
	var g errgroup.Group
	g.SetLimit(h.concurrency)

	var (
		mu   sync.Mutex
		errs []error
	)
	for _, ext := range exts {
		ext := ext
		g.Go(func() error {
			if _, err := h.Activate(ctx, ext); err != nil {
				h.logger.Warn("extension activation failed", zap.String("extension", ext.ID), zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Deactivate stops the extension and disposes its runtime. Unknown ids are a
// no-op.
func (h *Host) Deactivate(id string) error {
	h.mu.Lock()
	c, ok := h.active[id]
	delete(h.active, id)
	h.mu.Unlock()
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("deactivating %s: %w", id, err)
	}
	return nil
}

// Active returns the ids of running extensions, sorted.
func (h *Host) Active() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.active))
	for id := range h.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close deactivates every extension and refuses further activations.
func (h *Host) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := h.active
	h.active = make(map[string]*rpc.Client)
	h.mu.Unlock()

	var errs []error
	for id, c := range clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("deactivating %s: %w", id, err))
		}
	}
	h.wg.Wait()
	return errors.Join(errs...)
}
