// Package transport provides the bidirectional message channel between the
// host and an isolated extension runtime. Messages are opaque JSON documents.
package transport

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned when sending on a closed transport.
var ErrClosed = errors.New("transport closed")

// Pipe is the host end of a transport. The extension end is the pair of
// channels returned by NewPipe.
type Pipe struct {
	toExt   chan []byte
	fromExt chan []byte

	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
}

// Endpoint is the extension end of a Pipe. The runtime reads In until it is
// closed and writes replies to Out; the runtime closes Out when the extension
// stops.
type Endpoint struct {
	In  <-chan []byte
	Out chan<- []byte
	// Done is closed when the host closes the pipe; runtimes select on it
	// so a blocked send can't outlive the host.
	Done <-chan struct{}
}

// NewPipe returns a connected host Pipe and extension Endpoint with the given
// per-direction buffer size.
func NewPipe(buffer int) (*Pipe, Endpoint) {
	p := &Pipe{
		toExt:   make(chan []byte, buffer),
		fromExt: make(chan []byte, buffer),
		done:    make(chan struct{}),
	}
	return p, Endpoint{In: p.toExt, Out: p.fromExt, Done: p.done}
}

// Send delivers msg to the extension.
func (p *Pipe) Send(ctx context.Context, msg []byte) error {
	// The read lock keeps Close from closing toExt under an in-flight send;
	// selecting on done lets Close reclaim the lock promptly.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.toExt <- msg:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next message from the extension. It returns io.EOF
// once the extension has stopped and every queued message was read.
func (p *Pipe) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-p.fromExt:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops delivery to the extension. Messages already queued from the
// extension can still be received. Close is idempotent.
func (p *Pipe) Close() error {
	p.doneOnce.Do(func() { close(p.done) })

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.toExt)
	return nil
}

// Done is closed once Close has been called.
func (p *Pipe) Done() <-chan struct{} {
	return p.done
}

// Drain discards messages from the extension until its side is closed or ctx
// ends. It unblocks an extension stuck writing to a full buffer.
func (p *Pipe) Drain(ctx context.Context) error {
	for {
		select {
		case _, ok := <-p.fromExt:
			if !ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Post sends msg from the extension side, giving up when the host closes the
// pipe. It reports whether the message was queued.
func (e Endpoint) Post(msg []byte) bool {
	select {
	case e.Out <- msg:
		return true
	case <-e.Done:
		return false
	}
}
