package extension

import (
	"fmt"

	"github.com/agentx-labs/exthost/internal/manifest"
)

// ConfiguredExtension is an extension known to the registry. Manifest is nil
// when the registry has no manifest for it.
type ConfiguredExtension struct {
	ID                string
	Manifest          manifest.Manifest
	RegistryExtension *RegistryExtension
}

// RegistryExtension holds registry metadata.
type RegistryExtension struct {
	URL     string // details page
	Version string // release the manifest came from
}

// Title returns the manifest title, falling back to the id.
func (e *ConfiguredExtension) Title() string {
	if v, ok := e.Manifest.(*manifest.Valid); ok && v != nil && v.Title != "" {
		return v.Title
	}
	return e.ID
}

// Listing pairs an extension with its state in the merged settings cascade.
type Listing struct {
	Extension ConfiguredExtension
	// Configured is true when the merged settings mention the extension at
	// all, Enabled only when the value is true.
	Configured bool
	Enabled    bool
}

// Status renders the listing state for tables.
func (l Listing) Status() string {
	switch {
	case l.Enabled:
		return "enabled"
	case l.Configured:
		return "disabled"
	default:
		return "available"
	}
}

// Kind is the tag of a Resolution.
type Kind int

const (
	NoManifest Kind = iota
	InvalidManifest
	ValidManifest
)

func (k Kind) String() string {
	switch k {
	case NoManifest:
		return "no manifest"
	case InvalidManifest:
		return "invalid manifest"
	case ValidManifest:
		return "valid manifest"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Resolution is the outcome of resolving an extension's manifest. URL is set
// only for ValidManifest; Message only for InvalidManifest.
type Resolution struct {
	Kind     Kind
	URL      string
	Message  string
	Manifest *manifest.Valid
	// Err is manifest.ErrMissingURL when an otherwise valid manifest has no url.
	Err error
}

// ResolveManifest reduces ext to exactly one of NoManifest, InvalidManifest or
// ValidManifest. A structurally valid manifest without a url is
// InvalidManifest, since there is no bundle to activate.
func ResolveManifest(ext ConfiguredExtension) Resolution {
	switch m := ext.Manifest.(type) {
	case nil:
		return Resolution{Kind: NoManifest}
	case *manifest.Invalid:
		if m == nil {
			return Resolution{Kind: NoManifest}
		}
		return Resolution{Kind: InvalidManifest, Message: m.Message}
	case *manifest.Valid:
		if m == nil {
			return Resolution{Kind: NoManifest}
		}
		if m.URL == "" {
			return Resolution{
				Kind:     InvalidManifest,
				Message:  manifest.ErrMissingURL.Error(),
				Manifest: m,
				Err:      manifest.ErrMissingURL,
			}
		}
		return Resolution{Kind: ValidManifest, URL: m.URL, Manifest: m}
	default:
		return Resolution{Kind: InvalidManifest, Message: fmt.Sprintf("unsupported manifest type %T", m)}
	}
}
