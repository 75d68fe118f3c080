package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentx-labs/exthost/internal/extension"
	"github.com/agentx-labs/exthost/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIndex = `extensions:
  - id: acme/hello
    url: https://registry.example.com/acme/hello
    description: Says hello
    tags: [greeting, demo]
    releases:
      - version: 1.2.0
        manifest: |
          title: Hello 1.2
          url: https://cdn.example.com/hello-1.2.js
      - version: v1.10.0
        manifest: |
          {"title": "Hello 1.10", "url": "https://cdn.example.com/hello-1.10.js"}
      - version: 1.9.3
        manifest: |
          title: Hello 1.9
          url: https://cdn.example.com/hello-1.9.js
  - id: acme/broken
    releases:
      - version: 0.1.0
        manifest: "{not json"
  - id: acme/bare
    url: https://registry.example.com/acme/bare
  - id: acme/nourl
    releases:
      - version: 2.0.0
        manifest: "title: No URL"
`

func writeIndex(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLookup_NewestRelease(t *testing.T) {
	idx, err := Load(writeIndex(t, t.TempDir(), testIndex))
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())

	ext, err := idx.Lookup("acme/hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello 1.10", ext.Title())
	require.NotNil(t, ext.RegistryExtension)
	assert.Equal(t, "v1.10.0", ext.RegistryExtension.Version)
	assert.Equal(t, "https://registry.example.com/acme/hello", ext.RegistryExtension.URL)

	res := extension.ResolveManifest(ext)
	assert.Equal(t, extension.ValidManifest, res.Kind)
	assert.Equal(t, "https://cdn.example.com/hello-1.10.js", res.URL)
}

func TestLookup_ManifestOutcomes(t *testing.T) {
	idx, err := Load(writeIndex(t, t.TempDir(), testIndex))
	require.NoError(t, err)

	tests := []struct {
		id   string
		want extension.Kind
	}{
		{"acme/broken", extension.InvalidManifest},
		{"acme/bare", extension.NoManifest},
		{"acme/nourl", extension.InvalidManifest},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			ext, err := idx.Lookup(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, extension.ResolveManifest(ext).Kind)
		})
	}

	nourl, _ := idx.Lookup("acme/nourl")
	assert.ErrorIs(t, extension.ResolveManifest(nourl).Err, manifest.ErrMissingURL)

	_, err = idx.Lookup("acme/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfigured(t *testing.T) {
	idx, err := Load(writeIndex(t, t.TempDir(), testIndex))
	require.NoError(t, err)

	merged := map[string]any{"extensions": map[string]any{"acme/hello": true, "acme/broken": false}}
	got := map[string]string{}
	for _, l := range idx.Configured(merged) {
		got[l.Extension.ID] = l.Status()
	}
	assert.Equal(t, map[string]string{
		"acme/hello":  "enabled",
		"acme/broken": "disabled",
		"acme/bare":   "available",
		"acme/nourl":  "available",
	}, got)
}

func TestSearch(t *testing.T) {
	idx, err := Load(writeIndex(t, t.TempDir(), testIndex))
	require.NoError(t, err)

	ids := func(exts []extension.ConfiguredExtension) []string {
		var out []string
		for _, e := range exts {
			out = append(out, e.ID)
		}
		return out
	}
	assert.Equal(t, []string{"acme/hello"}, ids(idx.Search("GREETING")))
	assert.Equal(t, []string{"acme/hello"}, ids(idx.Search("says")))
	assert.Len(t, idx.Search(""), 4)
	assert.Empty(t, idx.Search("zzz"))
}

func TestLoadAll_EarlierWins(t *testing.T) {
	first := writeIndex(t, t.TempDir(), `extensions:
  - id: acme/hello
    description: local override
`)
	second := writeIndex(t, t.TempDir(), testIndex)

	idx, err := LoadAll(first, filepath.Join(t.TempDir(), "missing.yaml"), second)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.Len(t, idx.Search("local override"), 1)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeIndex(t, t.TempDir(), "extensions:\n  - url: x\n"))
	assert.ErrorContains(t, err, "has no id")

	_, err = Load(writeIndex(t, t.TempDir(), "extensions: [\n"))
	assert.ErrorContains(t, err, "parsing registry")
}

func TestPublish(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "registry.yaml")

	require.NoError(t, Publish(path, "me/ext", "https://example.com/me/ext", Release{Version: "0.1.0", Manifest: "url: https://x/0.1.js\n"}))
	require.NoError(t, Publish(path, "me/ext", "", Release{Version: "0.2.0", Manifest: "url: https://x/0.2.js\n"}))
	require.NoError(t, Publish(path, "me/ext", "", Release{Version: "0.2.0", Manifest: "url: https://x/0.2b.js\n"}))
	require.NoError(t, Publish(path, "me/other", "", Release{Version: "1.0.0"}))

	idx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	ext, err := idx.Lookup("me/ext")
	require.NoError(t, err)
	assert.Equal(t, "https://x/0.2b.js", extension.ResolveManifest(ext).URL)
	assert.Equal(t, "https://example.com/me/ext", ext.RegistryExtension.URL)

	assert.Error(t, Publish(path, "me/ext", "", Release{Version: "latest"}))
}

func TestNewest(t *testing.T) {
	rel, ok := newest([]Release{{Version: "junk"}, {Version: "0.0.1"}, {Version: "other"}})
	require.True(t, ok)
	assert.Equal(t, "0.0.1", rel.Version)

	rel, ok = newest([]Release{{Version: "a"}, {Version: "b"}})
	require.True(t, ok)
	assert.Equal(t, "b", rel.Version)

	_, ok = newest(nil)
	assert.False(t, ok)
}
