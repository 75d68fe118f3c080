package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentx-labs/exthost/internal/branding"
	"go.uber.org/zap"
)

// Defaults applied by New.
const (
	DefaultMaxBytes int64 = 10 << 20
	DefaultTimeout        = 30 * time.Second
)

// ErrTooLarge is the cause of a FetchError when the body exceeds the
// configured ceiling.
var ErrTooLarge = errors.New("bundle exceeds size limit")

// FetchError describes a failed bundle retrieval. StatusText holds the
// response body of a non-200 response verbatim; Cause is set when no usable
// response was received.
type FetchError struct {
	URL        string
	StatusCode int
	StatusText string
	Cause      error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("loading bundle from %s failed: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("loading bundle from %s failed (status %d): %s", e.URL, e.StatusCode, e.StatusText)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Fetcher downloads bundle source text.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
	timeout    time.Duration
	logger     *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithMaxBytes caps the accepted body size. Zero disables the cap.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		f.maxBytes = n
	}
}

// WithTimeout bounds a single fetch. Zero leaves timing to the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Fetcher with the given options.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: http.DefaultClient,
		maxBytes:   DefaultMaxBytes,
		timeout:    DefaultTimeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a GET on url and returns the body as text on a 200 status.
// Any other status fails with a *FetchError carrying the body as StatusText;
// transport failures fail with a *FetchError carrying the cause.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Cause: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", branding.UserAgent())

	f.logger.Debug("fetching bundle", zap.String("url", url))

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	body, err := f.readBody(resp)
	if err != nil {
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode, Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		f.logger.Debug("bundle fetch rejected",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode, StatusText: body}
	}

	f.logger.Debug("bundle fetched",
		zap.String("url", url),
		zap.Int("bytes", len(body)))
	return body, nil
}

// readBody reads the whole body, enforcing the size ceiling when set.
func (f *Fetcher) readBody(resp *http.Response) (string, error) {
	if f.maxBytes <= 0 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("reading response body: %w", err)
		}
		return string(data), nil
	}

	if resp.ContentLength > f.maxBytes {
		return "", fmt.Errorf("%w: content length %d > %d", ErrTooLarge, resp.ContentLength, f.maxBytes)
	}

	// Read one byte past the limit to detect overflow without trusting headers.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	return string(data), nil
}
