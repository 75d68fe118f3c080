package scaffold

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/agentx-labs/exthost/internal/extension"
	"github.com/agentx-labs/exthost/internal/manifest"
	"github.com/agentx-labs/exthost/internal/rpc"
	"github.com/agentx-labs/exthost/internal/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScaffoldData(t *testing.T) {
	d := NewScaffoldData("acme/word-count", "js", "")
	assert.Equal(t, "word-count", d.Name)
	assert.Equal(t, "Word Count", d.Title)
	assert.Equal(t, "bundle.js", d.BundleFile)
	assert.Equal(t, "http://localhost:8080/bundle.js", d.URL)
	assert.Equal(t, "0.1.0", d.Version)
	assert.NotZero(t, d.Year)

	d = NewScaffoldData("solo", "go", "https://cdn.example.com/solo/")
	assert.Equal(t, "Solo", d.Title)
	assert.Equal(t, "https://cdn.example.com/solo/bundle.go", d.URL)
}

func TestGenerate(t *testing.T) {
	for _, rt := range []string{runtime.RuntimeJS, runtime.RuntimeGo} {
		t.Run(rt, func(t *testing.T) {
			outDir := filepath.Join(t.TempDir(), "word-count")
			data := NewScaffoldData("acme/word-count", rt, "")

			result, err := Generate(data, outDir)
			require.NoError(t, err)
			assert.Empty(t, result.Warnings)

			files := append([]string(nil), result.Files...)
			sort.Strings(files)
			assert.Equal(t, []string{"README.md", "bundle." + rt, "manifest.yaml"}, files)

			m, err := manifest.ParseFile(filepath.Join(outDir, ManifestFile))
			require.NoError(t, err)
			res := extension.ResolveManifest(extension.ConfiguredExtension{ID: data.ID, Manifest: m})
			assert.Equal(t, extension.ValidManifest, res.Kind)
			assert.Equal(t, data.URL, res.URL)
			assert.Equal(t, rt, res.Manifest.Runtime)
		})
	}
}

// The starter bundles answer "hello" once launched.
func TestGenerate_BundlesRun(t *testing.T) {
	for _, rt := range []string{runtime.RuntimeJS, runtime.RuntimeGo} {
		t.Run(rt, func(t *testing.T) {
			outDir := filepath.Join(t.TempDir(), "hello")
			_, err := Generate(NewScaffoldData("acme/hello", rt, ""), outDir)
			require.NoError(t, err)

			src, err := os.ReadFile(filepath.Join(outDir, "bundle."+rt))
			require.NoError(t, err)

			h, err := runtime.Dispatch(rt, runtime.Options{}).Launch(context.Background(), string(src))
			require.NoError(t, err)
			c := rpc.NewClient(h)
			defer c.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			var got string
			require.NoError(t, c.Call(ctx, "hello", map[string]string{"name": "tester"}, &got))
			assert.Equal(t, "Hello, tester!", got)

			var rpcErr *rpc.Error
			require.ErrorAs(t, c.Call(ctx, "nope", nil, nil), &rpcErr)
			assert.Equal(t, rpc.CodeMethodNotFound, rpcErr.Code)
		})
	}
}

func TestGenerate_NonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0644))

	_, err := Generate(NewScaffoldData("acme/x", "js", ""), dir)
	assert.ErrorContains(t, err, "not empty")
}

func TestGenerate_UnknownRuntime(t *testing.T) {
	_, err := Generate(NewScaffoldData("acme/x", "wasm", ""), t.TempDir())
	assert.ErrorIs(t, err, runtime.ErrUnknownRuntime)
}
