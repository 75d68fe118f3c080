package activation

import (
	"context"
	"errors"

	"github.com/agentx-labs/exthost/internal/extension"
	"github.com/agentx-labs/exthost/internal/manifest"
	"github.com/agentx-labs/exthost/internal/runtime"
	"go.uber.org/zap"
)

// Fetcher retrieves bundle source. *bundle.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// LauncherFunc selects the launcher for a manifest's runtime identifier.
type LauncherFunc func(runtimeName string) runtime.Launcher

// Factory creates message transports for extensions.
type Factory struct {
	fetcher        Fetcher
	launcher       LauncherFunc
	defaultRuntime string
	logger         *zap.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithRuntimeOptions launches bundles with runtime.Dispatch and opts.
func WithRuntimeOptions(opts runtime.Options) FactoryOption {
	return func(f *Factory) {
		f.launcher = func(name string) runtime.Launcher {
			return runtime.Dispatch(name, opts)
		}
	}
}

// WithLauncher replaces launcher selection entirely.
func WithLauncher(fn LauncherFunc) FactoryOption {
	return func(f *Factory) {
		if fn != nil {
			f.launcher = fn
		}
	}
}

// WithDefaultRuntime sets the runtime used when a manifest names none.
func WithDefaultRuntime(name string) FactoryOption {
	return func(f *Factory) {
		if name != "" {
			f.defaultRuntime = name
		}
	}
}

// WithLogger sets the factory logger.
func WithLogger(l *zap.Logger) FactoryOption {
	return func(f *Factory) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFactory returns a Factory fetching bundles with fetcher.
func NewFactory(fetcher Fetcher, opts ...FactoryOption) *Factory {
	f := &Factory{
		fetcher:        fetcher,
		defaultRuntime: runtime.RuntimeJS,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.launcher == nil {
		f.launcher = func(name string) runtime.Launcher {
			return runtime.Dispatch(name, runtime.Options{Logger: f.logger})
		}
	}
	return f
}

// CreateTransport resolves ext's manifest, fetches its bundle and launches
// it. The returned handle belongs to the caller. Every failure is an *Error.
func (f *Factory) CreateTransport(ctx context.Context, ext extension.ConfiguredExtension) (*runtime.Handle, error) {
	res := extension.ResolveManifest(ext)
	switch res.Kind {
	case extension.NoManifest:
		return nil, &Error{Kind: NoManifest, ExtensionID: ext.ID}
	case extension.InvalidManifest:
		if errors.Is(res.Err, manifest.ErrMissingURL) {
			return nil, &Error{Kind: NoBundleURL, ExtensionID: ext.ID, Err: res.Err}
		}
		return nil, &Error{Kind: InvalidManifest, ExtensionID: ext.ID, Message: res.Message}
	}

	logger := f.logger.With(zap.String("extension", ext.ID), zap.String("url", res.URL))

	logger.Debug("fetching extension bundle")
	source, err := f.fetcher.Fetch(ctx, res.URL)
	if err != nil {
		return nil, &Error{Kind: FetchFailed, ExtensionID: ext.ID, URL: res.URL, Err: err}
	}

	name := res.Manifest.RuntimeOr(f.defaultRuntime)
	h, err := f.launcher(name).Launch(ctx, source)
	if err != nil {
		return nil, &Error{Kind: LaunchFailed, ExtensionID: ext.ID, URL: res.URL, Err: err}
	}

	logger.Info("extension launched", zap.String("runtime", name), zap.String("handle", h.ID))
	return h, nil
}
