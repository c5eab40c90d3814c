package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_ExactMatchWins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(TemplateConfig{
		Name:         "ollama-chat",
		Provider:     "ollama",
		Mode:         "chat",
		SystemPrompt: "ollama chat prompt",
	}))
	require.NoError(t, r.Register(TemplateConfig{
		Name:         "ollama-any",
		Provider:     "ollama",
		Mode:         "default",
		SystemPrompt: "ollama fallback prompt",
	}))

	tmpl, err := r.Lookup("ollama", "chat")
	require.NoError(t, err)
	assert.Equal(t, "ollama-chat", tmpl.Name)
}

func TestLookup_FallbackChain(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(TemplateConfig{
		Name:         "ollama-any",
		Provider:     "ollama",
		Mode:         "default",
		SystemPrompt: "ollama fallback prompt",
	}))
	require.NoError(t, r.Register(TemplateConfig{
		Name:         "any-coding",
		Provider:     "default",
		Mode:         "coding",
		SystemPrompt: "shared coding prompt",
	}))

	// Provider default before shared mode template.
	tmpl, err := r.Lookup("ollama", "coding")
	require.NoError(t, err)
	assert.Equal(t, "ollama-any", tmpl.Name)

	// Shared mode template for providers without their own default.
	tmpl, err = r.Lookup("openai", "coding")
	require.NoError(t, err)
	assert.Equal(t, "any-coding", tmpl.Name)

	// Grand default catches everything else.
	tmpl, err = r.Lookup("openai", "unheard-of")
	require.NoError(t, err)
	assert.Equal(t, "default", tmpl.Name)
}

func TestLookup_NotFound(t *testing.T) {
	r := &Registry{templates: map[string]*Template{}}

	_, err := r.Lookup("openai", "chat")
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestRegister_Validation(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(TemplateConfig{Name: "no-provider", Mode: "chat", SystemPrompt: "x"}))
	assert.Error(t, r.Register(TemplateConfig{Name: "no-body", Provider: "ollama", Mode: "chat"}))
	assert.Error(t, r.Register(TemplateConfig{
		Name:         "bad-template",
		Provider:     "ollama",
		Mode:         "chat",
		SystemPrompt: "{{.Unclosed",
	}))
}

func TestLoadDir_OverridesBuiltins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "prompts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts", "default.yaml"), []byte(
		"name: custom-default\n"+
			"version: \"2\"\n"+
			"provider: default\n"+
			"mode: default\n"+
			"system_prompt: |\n"+
			"  Custom assistant prompt at {{.Timestamp}}.\n"), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadDir(dir, "prompts"))

	tmpl, err := r.Lookup("anything", "anything")
	require.NoError(t, err)
	assert.Equal(t, "custom-default", tmpl.Name)
	assert.Equal(t, "2", tmpl.Version)
}
