// Package config loads and validates the keyops.yaml definition file.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	kerrors "github.com/systmms/keyops/internal/errors"
	"github.com/systmms/keyops/internal/logging"
)

//go:embed schema.json
var schemaJSON []byte

// Config holds the runtime configuration.
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the keyops.yaml structure.
type Definition struct {
	Version int                    `yaml:"version" json:"version"`
	Stores  map[string]StoreConfig `yaml:"stores" json:"stores"`
}

// StoreConfig holds store-specific configuration. All keys other than
// type pass through to the store builder unchanged.
type StoreConfig struct {
	Type   string                 `yaml:"type" json:"type"`
	Config map[string]interface{} `yaml:",inline" json:"-"`
}

// Load reads and parses the keyops.yaml file, validating it against the
// embedded schema.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return kerrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create a keyops.yaml with a 'stores:' section, or pass --config",
			}
		}
		return kerrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return kerrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if err := validateWithSchema(&def); err != nil {
		return kerrors.ConfigError{
			Message:    err.Error(),
			Suggestion: "Compare your keyops.yaml against the documented format",
		}
	}

	if def.Version != 0 {
		return kerrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your keyops.yaml file",
		}
	}

	c.Definition = &def
	return nil
}

// validateWithSchema checks the parsed definition against the embedded
// JSON schema. Inline store keys are folded back in so the schema sees
// the full shape.
func validateWithSchema(def *Definition) error {
	doc := map[string]interface{}{
		"version": def.Version,
		"stores":  map[string]interface{}{},
	}
	stores := doc["stores"].(map[string]interface{})
	for name, store := range def.Stores {
		entry := map[string]interface{}{"type": store.Type}
		for k, v := range store.Config {
			entry[k] = v
		}
		stores[name] = entry
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("schema validation failed:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}
	return nil
}

// GetStore returns the configuration for a named store.
func (c *Config) GetStore(name string) (StoreConfig, error) {
	if c.Definition == nil {
		return StoreConfig{}, kerrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}

	store, ok := c.Definition.Stores[name]
	if !ok {
		suggestion := "Add the store to the 'stores:' section of your keyops.yaml"
		if names := c.StoreNames(); len(names) > 0 {
			suggestion = fmt.Sprintf("Available stores: %s. %s", strings.Join(names, ", "), suggestion)
		}
		return StoreConfig{}, kerrors.ConfigError{
			Field:      "store",
			Value:      name,
			Message:    "store not found in configuration",
			Suggestion: suggestion,
		}
	}

	return store, nil
}

// StoreNames returns the configured store names in sorted order.
func (c *Config) StoreNames() []string {
	if c.Definition == nil {
		return nil
	}
	names := make([]string, 0, len(c.Definition.Stores))
	for name := range c.Definition.Stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
