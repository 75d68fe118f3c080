package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentx-labs/exthost/internal/logging"
	"go.uber.org/zap"
)

// Launcher starts an isolated execution context from bundle source.
type Launcher interface {
	// Launch evaluates source in a fresh context and returns a handle owning
	// it. A returned error means nothing is left running.
	Launch(ctx context.Context, source string) (*Handle, error)
}

// Supported runtime identifiers.
const (
	RuntimeJS = "js"
	RuntimeGo = "go"
)

// ErrUnknownRuntime is returned by the launcher for unrecognized runtimes.
var ErrUnknownRuntime = errors.New("unknown runtime")

// Options tune every launcher.
type Options struct {
	// Buffer is the per-direction transport buffer.
	Buffer int
	// ShutdownTimeout bounds how long Dispose waits for the context to stop.
	ShutdownTimeout time.Duration
	// AllowedPackages overrides the Go runtime import allowlist.
	AllowedPackages []string
	Logger          *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Buffer < 0 {
		o.Buffer = 0
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 2 * time.Second
	}
	o.Logger = logging.OrNop(o.Logger)
	if o.AllowedPackages == nil {
		o.AllowedPackages = DefaultAllowedPackages
	}
	return o
}

// Dispatch returns the Launcher for the given runtime identifier. Unknown
// identifiers get a launcher that always fails.
func Dispatch(runtime string, opts Options) Launcher {
	opts = opts.withDefaults()
	switch runtime {
	case RuntimeJS:
		return &JSLauncher{opts: opts}
	case RuntimeGo:
		return &GoLauncher{opts: opts}
	default:
		return &unknownLauncher{name: runtime}
	}
}

// unknownLauncher is returned when the runtime identifier is not recognized.
type unknownLauncher struct {
	name string
}

func (u *unknownLauncher) Launch(_ context.Context, _ string) (*Handle, error) {
	return nil, fmt.Errorf("%w %q: supported runtimes are %q and %q", ErrUnknownRuntime, u.name, RuntimeJS, RuntimeGo)
}
