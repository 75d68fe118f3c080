package registry

// File is the on-disk registry index.
type File struct {
	Extensions []Entry `yaml:"extensions"`
}

// Entry is one extension in the index.
type Entry struct {
	ID          string    `yaml:"id"`
	URL         string    `yaml:"url,omitempty"` // details page
	Description string    `yaml:"description,omitempty"`
	Tags        []string  `yaml:"tags,omitempty"`
	Releases    []Release `yaml:"releases,omitempty"`
}

// Release is a published manifest. Manifest holds the raw manifest text
// (JSON or YAML) and may be empty.
type Release struct {
	Version  string `yaml:"version"`
	Manifest string `yaml:"manifest,omitempty"`
}
