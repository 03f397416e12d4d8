package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsMemoryBackend(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestParseDiskBackend(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
[storage]
backend = "disk"
path = "/tmp/kvsql.log"
compact_on_open = true
`))
	require.NoError(t, err)
	assert.Equal(t, "disk", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/kvsql.log", cfg.Storage.Path)
	assert.True(t, cfg.Storage.CompactOnOpen)
	assert.NoError(t, cfg.Validate())
}

func TestParseEmptyDocumentDefaultsToMemory(t *testing.T) {
	cfg, err := Parse(strings.NewReader(``))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestValidateDiskBackendRequiresPath(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Backend: "disk"}}
	assert.Error(t, cfg.Validate())
}

func TestValidateUnknownBackendIsAnError(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Backend: "postgres"}}
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/kvsql.toml")
	assert.Error(t, err)
}
