package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchema string

// VerifyAgainstEmbeddedSchema checks enum-restricted values of the config against the embedded JSON schema
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	var schema jsonschema.Schema
	if err := json.Unmarshal([]byte(embeddedSchema), &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	storage, ok := schema.Definitions["StorageConfig"]
	if !ok || storage.Properties == nil {
		return fmt.Errorf("schema has no storage definition")
	}
	prop, ok := storage.Properties.Get("type")
	if !ok {
		return fmt.Errorf("schema has no storage.type property")
	}
	if len(prop.Enum) > 0 && !slices.Contains(prop.Enum, any(cfg.Storage.Type)) {
		return fmt.Errorf("storage.type %q is not one of %v", cfg.Storage.Type, prop.Enum)
	}
	return nil
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&Config{}), nil
}
