package modes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.DefaultProvider)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modes.yaml"), []byte(`
min_version: "0.1.0"
default_provider: local
providers:
  local:
    base_url: http://localhost:11434/v1
    format: instruct
    timeout_seconds: 60
  hosted:
    base_url: https://api.openai.com/v1
    format: chat
    api_key_env: OPENAI_API_KEY
    rate_limit: 2
modes:
  default:
    provider: local
    model: llama3.1
    options:
      max_tokens: 1024
      temperature: 0.5
  research:
    provider: hosted
    model: gpt-4o
    options:
      max_tokens: 8192
      temperature: 0.2
`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.DefaultProvider)
	assert.Equal(t, "0.1.0", cfg.MinVersion)
	assert.Len(t, cfg.Providers, 2)

	spec, err := NewResolver(cfg).Resolve("research")
	require.NoError(t, err)
	assert.Equal(t, "hosted", spec.Provider)
	assert.Equal(t, "gpt-4o", spec.Model)
	assert.Equal(t, 8192, spec.Options.MaxTokens)

	hosted, ok := cfg.Provider("hosted")
	require.True(t, ok)
	assert.InDelta(t, 2.0, hosted.RateLimit, 0.001)
	assert.Equal(t, "OPENAI_API_KEY", hosted.APIKeyEnv)
}

func TestLoad_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modes.yaml"), []byte(`
default_provider: ghost
providers:
  local:
    base_url: http://localhost:11434/v1
    format: instruct
modes:
  default:
    provider: local
    model: llama3.1
`), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}
