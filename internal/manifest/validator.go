package manifest

import (
	_ "embed"
	"fmt"

	"github.com/agentx-labs/exthost/internal/schema"
	"go.yaml.in/yaml/v3"
)

//go:embed schema/manifest.schema.json
var schemaBytes []byte

var manifestSchema = schema.New("manifest.schema.json", schemaBytes)

// ValidationIssue is one schema failure, e.g. Path "/runtime" with Keyword
// "enum".
type ValidationIssue = schema.Issue

// ValidationResult contains the outcome of a schema validation.
type ValidationResult struct {
	Valid  bool
	Issues []ValidationIssue
}

// Summary joins all issues into a single line, e.g.
// "invalid manifest: /runtime: value must be one of 'js', 'go'".
func (r *ValidationResult) Summary() string {
	if r.Valid {
		return ""
	}
	return "invalid manifest: " + schema.Join(r.Issues)
}

// Validate checks raw manifest text (JSON or YAML) against the manifest
// schema. The error return is for parse or schema compilation failures;
// validation issues are returned in the ValidationResult.
func Validate(data []byte) (*ValidationResult, error) {
	// JSON is a subset of YAML, so one decoder covers both.
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	issues, err := manifestSchema.Check(normalizeYAML(raw))
	if err != nil {
		return nil, fmt.Errorf("validating manifest: %w", err)
	}
	return &ValidationResult{Valid: len(issues) == 0, Issues: issues}, nil
}

// normalizeYAML converts YAML-decoded values to JSON-compatible types.
// Non-string mapping keys are stringified.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, v := range val {
			m[k] = normalizeYAML(v)
		}
		return m
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, v := range val {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case []interface{}:
		a := make([]interface{}, len(val))
		for i, v := range val {
			a[i] = normalizeYAML(v)
		}
		return a
	default:
		return val
	}
}
