package manifest

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Parse turns raw manifest text (JSON or YAML) into a Manifest. Empty input
// yields nil, meaning "no manifest". Any parse or schema failure yields
// *Invalid; Parse itself never fails.
func Parse(data []byte) Manifest {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	result, err := Validate(data)
	if err != nil {
		return &Invalid{Message: err.Error()}
	}
	if !result.Valid {
		return &Invalid{Message: result.Summary()}
	}

	var m Valid
	if err := yaml.Unmarshal(data, &m); err != nil {
		return &Invalid{Message: fmt.Sprintf("parsing manifest: %v", err)}
	}
	return &m
}

// ParseFile reads a manifest file and parses it. The error return is for I/O
// failures only.
func ParseFile(path string) (Manifest, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data), nil
}

// Marshal renders a valid manifest as YAML.
func Marshal(m *Valid) ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling manifest: %w", err)
	}
	return data, nil
}

// readFile reads the contents of a file at the given path.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}
