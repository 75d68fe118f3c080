package settings

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/agentx-labs/exthost/internal/schema"
)

//go:embed schema/settings.schema.json
var schemaBytes []byte

var settingsSchema = schema.New("settings.schema.json", schemaBytes)

// ErrInvalidSettings is returned when edited contents fail schema validation.
var ErrInvalidSettings = errors.New("invalid settings")

// ValidateContents checks settings contents against the embedded schema.
func ValidateContents(contents map[string]any) error {
	issues, err := settingsSchema.Check(contents)
	if err != nil {
		return fmt.Errorf("validating settings: %w", err)
	}
	if len(issues) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, schema.Join(issues))
	}
	return nil
}
