package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/agentx-labs/exthost/internal/runtime"
	"github.com/agentx-labs/exthost/internal/transport"
	"go.uber.org/zap"
)

const version = "2.0"

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// MethodWindowLog is the notification extensions send to write to the host log.
const MethodWindowLog = "window/log"

// ErrClientClosed is returned by calls made on, or pending at, a closed client.
var ErrClientClosed = errors.New("rpc client closed")

// Error is a JSON-RPC error object returned by the extension.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// message covers requests, notifications and responses.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type logParams struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type response struct {
	result json.RawMessage
	err    error
}

// Client speaks JSON-RPC 2.0 over a runtime handle. It owns the handle.
type Client struct {
	handle *runtime.Handle
	logger *zap.Logger
	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan response
	closed  bool

	stopRead  context.CancelFunc
	readDone  chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for extension log output and protocol warnings.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient starts reading from h's transport. The client takes ownership of
// h; Close disposes it.
func NewClient(h *runtime.Handle, opts ...Option) *Client {
	c := &Client{
		handle:   h,
		logger:   zap.NewNop(),
		pending:  make(map[int64]chan response),
		readDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("handle", h.ID))

	ctx, cancel := context.WithCancel(context.Background())
	c.stopRead = cancel
	go c.readLoop(ctx)
	return c
}

// Call sends a request and waits for its response. result may be nil.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}

	id := c.nextID.Add(1)
	ch := make(chan response, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(ctx, message{JSONRPC: version, ID: &id, Method: method, Params: raw}); err != nil {
		return sendError(method, err)
	}

	select {
	case resp := <-ch:
		if resp.err != nil {
			return resp.err
		}
		if result == nil || len(resp.result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.result, result); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify sends a notification; no response is expected.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClientClosed
	}
	if err := c.send(ctx, message{JSONRPC: version, Method: method, Params: raw}); err != nil {
		return sendError(method, err)
	}
	return nil
}

// Done is closed when the extension side of the transport has ended.
func (c *Client) Done() <-chan struct{} {
	return c.readDone
}

// Close disposes the handle and fails every pending call. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.closeErr = c.handle.Dispose()
		// A runtime that outlived Dispose never closes its side.
		c.stopRead()
		<-c.readDone
	})
	return c.closeErr
}

func (c *Client) send(ctx context.Context, m message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.handle.Transport().Send(ctx, data)
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.readDone)

	var err error
	for {
		var data []byte
		data, err = c.handle.Transport().Receive(ctx)
		if err != nil {
			break
		}
		c.dispatch(data)
	}

	switch {
	case errors.Is(err, context.Canceled):
		err = ErrClientClosed
	case errors.Is(err, io.EOF):
		err = ErrClientClosed
		if runErr := c.handle.Err(); runErr != nil {
			err = fmt.Errorf("%w: extension stopped: %v", ErrClientClosed, runErr)
		}
	}

	c.mu.Lock()
	c.closed = true
	for id, ch := range c.pending {
		ch <- response{err: err}
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

// dispatch routes one inbound message.
func (c *Client) dispatch(data []byte) {
	var m message
	if err := json.Unmarshal(data, &m); err != nil || m.JSONRPC != version {
		c.logger.Warn("dropping malformed message from extension", zap.ByteString("data", data))
		return
	}

	switch {
	case m.Method == "" && m.ID != nil:
		c.deliver(m)
	case m.Method == MethodWindowLog && m.ID == nil:
		c.logFromExtension(m.Params)
	case m.Method != "" && m.ID != nil:
		c.reply(*m.ID, &Error{Code: CodeMethodNotFound, Message: "method not found: " + m.Method})
	case m.Method != "":
		c.logger.Debug("ignoring notification from extension", zap.String("method", m.Method))
	default:
		c.logger.Warn("dropping message without id or method", zap.ByteString("data", data))
	}
}

func (c *Client) deliver(m message) {
	c.mu.Lock()
	ch, ok := c.pending[*m.ID]
	if ok {
		delete(c.pending, *m.ID)
	}
	c.mu.Unlock()
	if !ok {
		c.logger.Warn("response for unknown request", zap.Int64("id", *m.ID))
		return
	}

	if m.Error != nil {
		ch <- response{err: m.Error}
		return
	}
	ch <- response{result: m.Result}
}

// reply is sent from the read loop; Send gives up once the handle is disposed.
func (c *Client) reply(id int64, rpcErr *Error) {
	if err := c.send(context.Background(), message{JSONRPC: version, ID: &id, Error: rpcErr}); err != nil {
		c.logger.Debug("could not reply to extension", zap.Error(err))
	}
}

func (c *Client) logFromExtension(raw json.RawMessage) {
	var p logParams
	if err := json.Unmarshal(raw, &p); err != nil {
		c.logger.Warn("malformed window/log params", zap.Error(err))
		return
	}
	switch p.Level {
	case "error":
		c.logger.Error(p.Message, zap.String("source", "extension"))
	case "warn", "warning":
		c.logger.Warn(p.Message, zap.String("source", "extension"))
	case "debug":
		c.logger.Debug(p.Message, zap.String("source", "extension"))
	default:
		c.logger.Info(p.Message, zap.String("source", "extension"))
	}
}

func sendError(method string, err error) error {
	if errors.Is(err, transport.ErrClosed) {
		return ErrClientClosed
	}
	return fmt.Errorf("sending %s: %w", method, err)
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}
	return raw, nil
}
