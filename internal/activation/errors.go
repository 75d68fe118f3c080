package activation

import (
	"errors"
	"fmt"
)

// Kind classifies an activation failure.
type Kind int

const (
	NoManifest Kind = iota + 1
	InvalidManifest
	NoBundleURL
	FetchFailed
	LaunchFailed
)

func (k Kind) String() string {
	switch k {
	case NoManifest:
		return "no manifest"
	case InvalidManifest:
		return "invalid manifest"
	case NoBundleURL:
		return "no bundle url"
	case FetchFailed:
		return "fetch failed"
	case LaunchFailed:
		return "launch failed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels matched by errors.Is against *Error.
var (
	ErrNoManifest      = errors.New("extension has no manifest")
	ErrInvalidManifest = errors.New("extension manifest is invalid")
	ErrNoBundleURL     = errors.New("extension manifest has no bundle url")
	ErrFetchFailed     = errors.New("fetching extension bundle failed")
	ErrLaunchFailed    = errors.New("launching extension failed")
)

var kindSentinels = map[Kind]error{
	NoManifest:      ErrNoManifest,
	InvalidManifest: ErrInvalidManifest,
	NoBundleURL:     ErrNoBundleURL,
	FetchFailed:     ErrFetchFailed,
	LaunchFailed:    ErrLaunchFailed,
}

// Error is returned for every failed activation attempt. Nothing is left
// running when it is returned.
type Error struct {
	Kind        Kind
	ExtensionID string
	URL         string // FetchFailed and LaunchFailed only
	Message     string // InvalidManifest only
	Err         error
}

func (e *Error) Error() string {
	switch e.Kind {
	case NoManifest:
		return fmt.Sprintf("extension %s: no manifest found", e.ExtensionID)
	case InvalidManifest:
		return fmt.Sprintf("extension %s: invalid manifest: %s", e.ExtensionID, e.Message)
	case NoBundleURL:
		return fmt.Sprintf("extension %s: no url in manifest", e.ExtensionID)
	case FetchFailed:
		return fmt.Sprintf("extension %s: fetching bundle %s: %v", e.ExtensionID, e.URL, e.Err)
	case LaunchFailed:
		return fmt.Sprintf("extension %s: launching bundle from %s: %v", e.ExtensionID, e.URL, e.Err)
	default:
		return fmt.Sprintf("extension %s: activation failed: %v", e.ExtensionID, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}
