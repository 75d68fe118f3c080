package manifest

import "errors"

// Manifest is the sealed sum of *Valid and *Invalid.
type Manifest interface {
	isManifest()
}

// Valid is a structurally valid manifest.
type Valid struct {
	Title            string   `yaml:"title,omitempty" json:"title,omitempty"`
	Description      string   `yaml:"description,omitempty" json:"description,omitempty"`
	URL              string   `yaml:"url,omitempty" json:"url,omitempty"`
	Runtime          string   `yaml:"runtime,omitempty" json:"runtime,omitempty"`
	Version          string   `yaml:"version,omitempty" json:"version,omitempty"`
	ActivationEvents []string `yaml:"activationEvents,omitempty" json:"activationEvents,omitempty"`
}

// Invalid records why a manifest could not be parsed or validated.
type Invalid struct {
	Message string
}

func (*Valid) isManifest()   {}
func (*Invalid) isManifest() {}

// Error makes an Invalid manifest usable wherever an error is expected.
func (i *Invalid) Error() string { return i.Message }

// Runtime identifiers accepted in the manifest "runtime" field.
const (
	RuntimeJS = "js"
	RuntimeGo = "go"
)

// ErrMissingURL is reported for a valid manifest that has no bundle url.
var ErrMissingURL = errors.New(`no "url" property in manifest`)

// RuntimeOr returns the manifest runtime, or fallback when none is declared.
func (v *Valid) RuntimeOr(fallback string) string {
	if v.Runtime != "" {
		return v.Runtime
	}
	return fallback
}
