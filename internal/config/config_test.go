package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/keyops/internal/config"
	kerrors "github.com/systmms/keyops/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keyops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigLoad(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Path: writeConfig(t, `
version: 0
stores:
  production:
    type: aws.secretsmanager
    region: us-east-1
    prefix: keyring/
    kms_key_id: alias/keyring
  local:
    type: filesystem
    directory: /tmp/keys
`)}

	require.NoError(t, cfg.Load())
	assert.Equal(t, []string{"local", "production"}, cfg.StoreNames())

	store, err := cfg.GetStore("production")
	require.NoError(t, err)
	assert.Equal(t, "aws.secretsmanager", store.Type)
	assert.Equal(t, "us-east-1", store.Config["region"])
	assert.Equal(t, "keyring/", store.Config["prefix"])
	assert.Equal(t, "alias/keyring", store.Config["kms_key_id"])
}

func TestConfigLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Path: filepath.Join(t.TempDir(), "missing.yaml")}
	err := cfg.Load()
	require.Error(t, err)

	var cerr kerrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Message, "not found")
}

func TestConfigLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Path: writeConfig(t, "stores: [unbalanced")}
	err := cfg.Load()
	require.Error(t, err)

	var cerr kerrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Message, "invalid YAML")
}

func TestConfigLoadSchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{
			name: "unknown_store_type",
			content: `
version: 0
stores:
  prod:
    type: hashicorp.vault
`,
		},
		{
			name:    "missing_stores",
			content: "version: 0\n",
		},
		{
			name: "store_without_type",
			content: `
version: 0
stores:
  prod:
    region: us-east-1
`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &config.Config{Path: writeConfig(t, tt.content)}
			err := cfg.Load()
			require.Error(t, err)

			var cerr kerrors.ConfigError
			assert.ErrorAs(t, err, &cerr)
		})
	}
}

func TestConfigLoadUnsupportedVersion(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Path: writeConfig(t, `
version: 7
stores:
  prod:
    type: filesystem
`)}
	err := cfg.Load()
	require.Error(t, err)

	var cerr kerrors.ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestGetStoreUnknownName(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Path: writeConfig(t, `
version: 0
stores:
  production:
    type: filesystem
    directory: /tmp/keys
`)}
	require.NoError(t, cfg.Load())

	_, err := cfg.GetStore("staging")
	require.Error(t, err)

	var cerr kerrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Suggestion, "production")
}
