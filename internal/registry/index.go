package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/agentx-labs/exthost/internal/extension"
	"github.com/agentx-labs/exthost/internal/manifest"
	"github.com/agentx-labs/exthost/internal/settings"
	"github.com/agentx-labs/exthost/internal/userdata"
	"go.yaml.in/yaml/v3"
)

// ErrNotFound is returned when an extension id is not in the index.
var ErrNotFound = errors.New("extension not found in registry")

// Index is a loaded registry.
type Index struct {
	entries map[string]Entry
}

// Load reads one index file.
func Load(path string) (*Index, error) {
	return LoadAll(path)
}

// LoadAll reads several index files. An id found in an earlier file takes
// priority; later duplicates are skipped. Missing files are skipped unless
// none exist.
func LoadAll(paths ...string) (*Index, error) {
	idx := &Index{entries: make(map[string]Entry)}
	found := 0
	for _, p := range paths {
		f, err := readFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found++
		for _, e := range f.Extensions {
			if _, dup := idx.entries[e.ID]; !dup {
				idx.entries[e.ID] = e
			}
		}
	}
	if found == 0 && len(paths) > 0 {
		return nil, fmt.Errorf("reading registry %s: %w", paths[0], os.ErrNotExist)
	}
	return idx, nil
}

func readFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}
	for i, e := range f.Extensions {
		if e.ID == "" {
			return nil, fmt.Errorf("parsing registry %s: extension %d has no id", path, i)
		}
	}
	return &f, nil
}

// Len returns the number of extensions.
func (x *Index) Len() int { return len(x.entries) }

// Lookup returns the extension with its newest release's manifest.
func (x *Index) Lookup(id string) (extension.ConfiguredExtension, error) {
	e, ok := x.entries[id]
	if !ok {
		return extension.ConfiguredExtension{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return toConfigured(e), nil
}

// Extensions returns every extension, sorted by id.
func (x *Index) Extensions() []extension.ConfiguredExtension {
	ids := make([]string, 0, len(x.entries))
	for id := range x.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]extension.ConfiguredExtension, 0, len(ids))
	for _, id := range ids {
		out = append(out, toConfigured(x.entries[id]))
	}
	return out
}

// Configured pairs every extension with its state in merged settings.
func (x *Index) Configured(merged map[string]any) []extension.Listing {
	exts := x.Extensions()
	out := make([]extension.Listing, 0, len(exts))
	for _, e := range exts {
		configured, enabled := settings.ExtensionState(merged, e.ID)
		out = append(out, extension.Listing{Extension: e, Configured: configured, Enabled: enabled})
	}
	return out
}

// Search matches query against ids, titles, descriptions and tags
// (case-insensitive substring). An empty query matches everything.
func (x *Index) Search(query string) []extension.ConfiguredExtension {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []extension.ConfiguredExtension
	for _, e := range x.Extensions() {
		if q == "" || matches(x.entries[e.ID], e, q) {
			out = append(out, e)
		}
	}
	return out
}

func matches(entry Entry, e extension.ConfiguredExtension, q string) bool {
	fields := []string{entry.ID, e.Title(), entry.Description}
	if v, ok := e.Manifest.(*manifest.Valid); ok && v != nil {
		fields = append(fields, v.Description)
	}
	fields = append(fields, entry.Tags...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func toConfigured(e Entry) extension.ConfiguredExtension {
	ce := extension.ConfiguredExtension{ID: e.ID}
	rel, ok := newest(e.Releases)
	if e.URL != "" || ok {
		ce.RegistryExtension = &extension.RegistryExtension{URL: e.URL, Version: rel.Version}
	}
	if ok {
		ce.Manifest = manifest.Parse([]byte(rel.Manifest))
	}
	return ce
}

// newest picks the highest semver release. Releases with unparsable
// versions rank below every parsable one, in file order.
func newest(releases []Release) (Release, bool) {
	if len(releases) == 0 {
		return Release{}, false
	}
	best := -1
	var bestVer *semver.Version
	for i, r := range releases {
		v, err := parseVersion(r.Version)
		if err != nil {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			best, bestVer = i, v
		}
	}
	if best < 0 {
		return releases[len(releases)-1], true
	}
	return releases[best], true
}

func parseVersion(s string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(s, "v"))
}

// Publish adds a release to the index file at path, creating the file and
// entry as needed. Publishing an existing version replaces its manifest.
func Publish(path, id, detailsURL string, rel Release) error {
	if _, err := parseVersion(rel.Version); err != nil {
		return fmt.Errorf("invalid version %q: %w", rel.Version, err)
	}

	f, err := readFile(path)
	if errors.Is(err, os.ErrNotExist) {
		f, err = &File{}, nil
	}
	if err != nil {
		return err
	}

	i := -1
	for j, e := range f.Extensions {
		if e.ID == id {
			i = j
			break
		}
	}
	if i < 0 {
		f.Extensions = append(f.Extensions, Entry{ID: id})
		i = len(f.Extensions) - 1
	}
	entry := &f.Extensions[i]
	if detailsURL != "" {
		entry.URL = detailsURL
	}

	replaced := false
	for j := range entry.Releases {
		if entry.Releases[j].Version == rel.Version {
			entry.Releases[j] = rel
			replaced = true
		}
	}
	if !replaced {
		entry.Releases = append(entry.Releases, rel)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), userdata.DirPermNormal); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	return nil
}
