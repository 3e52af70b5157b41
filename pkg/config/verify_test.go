package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyAgainstEmbeddedSchema(t *testing.T) {
	tests := []struct {
		name    string
		storage string
		wantErr bool
	}{
		{name: "sqlite", storage: "sqlite"},
		{name: "json", storage: "json"},
		{name: "unknown backend", storage: "postgres", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Storage: StorageConfig{Type: tt.storage}}
			err := VerifyAgainstEmbeddedSchema(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "storage.type")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema()
	require.NoError(t, err)
	require.NotNil(t, schema)

	data, err := json.Marshal(schema)
	require.NoError(t, err)

	var generated map[string]any
	require.NoError(t, json.Unmarshal(data, &generated))
	defs, ok := generated["$defs"].(map[string]any)
	require.True(t, ok)
	for _, name := range []string{"Config", "ServerConfig", "StorageConfig", "ScheduleConfig", "FetchConfig",
		"MatchesConfig", "NotifyConfig", "WebhookConfig", "TelegramConfig"} {
		assert.Contains(t, defs, name)
	}

	// embedded schema is in sync with the config structure
	var embedded map[string]any
	require.NoError(t, json.Unmarshal([]byte(embeddedSchema), &embedded))
	embeddedDefs, ok := embedded["$defs"].(map[string]any)
	require.True(t, ok)
	for name := range defs {
		assert.Contains(t, embeddedDefs, name)
	}
}
