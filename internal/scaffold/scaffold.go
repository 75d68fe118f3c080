package scaffold

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/agentx-labs/exthost/internal/manifest"
	"github.com/agentx-labs/exthost/internal/runtime"
)

// DefaultBaseURL is where a freshly scaffolded bundle is expected to be served.
const DefaultBaseURL = "http://localhost:8080"

// ManifestFile is the manifest written by Generate.
const ManifestFile = "manifest.yaml"

// ScaffoldData holds all template variables available to scaffold templates.
type ScaffoldData struct {
	ID          string // e.g., "acme/word-count"
	Name        string // last id segment, e.g., "word-count"
	Title       string // e.g., "Word Count"
	Description string
	Version     string // Semver, e.g., "0.1.0"
	Runtime     string // "js" or "go"
	BundleFile  string // "bundle.js" or "bundle.go"
	URL         string // where the bundle will be served
	Year        int
}

// Result holds the outcome of a scaffold generation.
type Result struct {
	OutputDir string
	Files     []string
	Warnings  []string
}

// NewScaffoldData creates a ScaffoldData with derived fields populated. An
// empty baseURL uses DefaultBaseURL.
func NewScaffoldData(id, rt, baseURL string) *ScaffoldData {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	name := path.Base(id)
	d := &ScaffoldData{
		ID:      id,
		Name:    name,
		Title:   titleFromName(name),
		Version: "0.1.0",
		Runtime: rt,
		Year:    time.Now().Year(),
	}
	d.Description = fmt.Sprintf("%s extension", d.Title)
	d.BundleFile = "bundle." + rt
	d.URL = strings.TrimSuffix(baseURL, "/") + "/" + d.BundleFile
	return d
}

// titleFromName turns "word-count" into "Word Count".
func titleFromName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' || r == '.' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Generate creates a new extension from scaffolding templates.
func Generate(data *ScaffoldData, outputDir string) (*Result, error) {
	if data.Runtime != runtime.RuntimeJS && data.Runtime != runtime.RuntimeGo {
		return nil, fmt.Errorf("%w %q", runtime.ErrUnknownRuntime, data.Runtime)
	}
	templatesDir := path.Join("scaffolds", data.Runtime)

	entries, err := fs.ReadDir(scaffoldFS, templatesDir)
	if err != nil {
		return nil, fmt.Errorf("template set %q not found: %w", data.Runtime, err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	// Check for existing files to prevent accidental overwrites.
	existingEntries, err := os.ReadDir(outputDir)
	if err == nil && len(existingEntries) > 0 {
		return nil, fmt.Errorf("output directory %s is not empty; remove existing files first", outputDir)
	}

	result := &Result{OutputDir: outputDir}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		tmplPath := path.Join(templatesDir, entry.Name())
		tmplBytes, err := fs.ReadFile(scaffoldFS, tmplPath)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", tmplPath, err)
		}

		outName := strings.TrimSuffix(entry.Name(), ".tmpl")
		outPath := filepath.Join(outputDir, outName)

		tmpl, err := template.New(entry.Name()).Parse(string(tmplBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", entry.Name(), err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("executing template %s: %w", entry.Name(), err)
		}

		if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", outPath, err)
		}

		result.Files = append(result.Files, outName)
	}

	result.Warnings = checkManifest(filepath.Join(outputDir, ManifestFile))
	return result, nil
}

// checkManifest reports schema problems in a generated manifest as warnings;
// a template bug must not lose the files already written.
func checkManifest(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("could not read manifest: %v", err)}
	}
	res, err := manifest.Validate(data)
	if err != nil {
		return []string{fmt.Sprintf("could not validate manifest: %v", err)}
	}
	warnings := make([]string, 0, len(res.Issues))
	for _, issue := range res.Issues {
		warnings = append(warnings, issue.String())
	}
	return warnings
}
