package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agentx-labs/exthost/internal/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrShutdownTimeout is returned by Dispose when the context did not stop in
// time. The context is abandoned; its transport is closed either way.
var ErrShutdownTimeout = errors.New("extension runtime did not stop before shutdown timeout")

// Handle owns one isolated execution context and its transport. Dispose must
// be called on every exit path; it is idempotent.
type Handle struct {
	ID      string
	Runtime string

	pipe    *transport.Pipe
	exited  chan struct{}
	stop    func() // set by the launcher before the context starts
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	runErr error
	once   sync.Once
	disErr error
}

func newHandle(runtime string, pipe *transport.Pipe, opts Options) *Handle {
	id := uuid.NewString()
	return &Handle{
		ID:      id,
		Runtime: runtime,
		pipe:    pipe,
		exited:  make(chan struct{}),
		stop:    func() {},
		timeout: opts.ShutdownTimeout,
		logger:  opts.Logger.With(zap.String("handle", id), zap.String("runtime", runtime)),
	}
}

// Transport returns the host end of the message channel.
func (h *Handle) Transport() *transport.Pipe {
	return h.pipe
}

// Done is closed when the execution context has stopped, either on its own
// or after Dispose.
func (h *Handle) Done() <-chan struct{} {
	return h.exited
}

// Err returns the error the context stopped with, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runErr
}

// exit records the outcome of the runtime goroutine. Called exactly once.
func (h *Handle) exit(err error) {
	h.mu.Lock()
	h.runErr = err
	h.mu.Unlock()
	if err != nil {
		h.logger.Warn("extension runtime stopped with error", zap.Error(err))
	} else {
		h.logger.Debug("extension runtime stopped")
	}
	close(h.exited)
}

// Dispose closes the transport, terminates the execution context and waits
// for it to stop.
func (h *Handle) Dispose() error {
	h.once.Do(func() {
		h.disErr = h.dispose()
	})
	return h.disErr
}

func (h *Handle) dispose() error {
	_ = h.pipe.Close()
	h.stop()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	// Draining unblocks a context stuck writing to a full buffer.
	drainErr := h.pipe.Drain(ctx)

	select {
	case <-h.exited:
	case <-ctx.Done():
		drainErr = ctx.Err()
	}

	if drainErr != nil {
		h.logger.Warn("extension runtime shutdown timed out", zap.Duration("timeout", h.timeout))
		return ErrShutdownTimeout
	}
	h.logger.Debug("extension runtime disposed")
	return nil
}
