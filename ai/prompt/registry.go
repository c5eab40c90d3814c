package prompt

import (
	"fmt"
	"text/template"

	"github.com/pkg/errors"

	"github.com/hrygo/famulus/ai/configloader"
)

// ErrTemplateNotFound is returned when no template is registered for a
// (provider, mode) pair, including all fallbacks.
var ErrTemplateNotFound = errors.New("prompt template not found")

// fallbackKey is the provider/mode wildcard used in the fallback chain.
const fallbackKey = "default"

// TemplateConfig is the on-disk YAML shape of one prompt template.
type TemplateConfig struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	Provider     string `yaml:"provider"`
	Mode         string `yaml:"mode"`
	SystemPrompt string `yaml:"system_prompt"`
}

// Template is a parsed, registered prompt template. The parsed template is
// shared between renders but never mutated, so renders are safe to run
// concurrently.
type Template struct {
	Name     string
	Version  string
	Provider string
	Mode     string
	tmpl     *template.Template
}

// Registry maps (provider, mode) pairs to templates.
//
// Registration happens during startup only; the registry is read-only once
// the server starts serving and therefore needs no locking.
type Registry struct {
	templates map[string]*Template
}

// NewRegistry creates a registry seeded with the built-in default templates.
func NewRegistry() *Registry {
	r := &Registry{
		templates: make(map[string]*Template),
	}
	for _, cfg := range builtinTemplates {
		// Built-in templates are compiled in; a parse failure is a bug.
		if err := r.Register(cfg); err != nil {
			panic(fmt.Sprintf("builtin prompt template %q: %v", cfg.Name, err))
		}
	}
	return r
}

// Register parses and stores a template. Registering the same
// (provider, mode) pair twice replaces the earlier template, so user
// configs override built-ins.
func (r *Registry) Register(cfg TemplateConfig) error {
	if cfg.Provider == "" || cfg.Mode == "" {
		return errors.Errorf("prompt template %q: provider and mode are required", cfg.Name)
	}
	if cfg.SystemPrompt == "" {
		return errors.Errorf("prompt template %q: system_prompt is required", cfg.Name)
	}

	tmpl, err := template.New(cfg.Provider + "/" + cfg.Mode).Parse(cfg.SystemPrompt)
	if err != nil {
		return errors.Wrapf(err, "parse prompt template %q", cfg.Name)
	}

	r.templates[templateKey(cfg.Provider, cfg.Mode)] = &Template{
		Name:     cfg.Name,
		Version:  cfg.Version,
		Provider: cfg.Provider,
		Mode:     cfg.Mode,
		tmpl:     tmpl,
	}
	return nil
}

// LoadDir loads every template YAML below baseDir/subDir into the registry.
func (r *Registry) LoadDir(baseDir, subDir string) error {
	loader := configloader.NewLoader(baseDir)
	loaded, err := loader.LoadDir(subDir, func(string) (any, error) {
		return &TemplateConfig{}, nil
	})
	if err != nil {
		return errors.Wrap(err, "load prompt templates")
	}

	for path, target := range loaded {
		cfg, ok := target.(*TemplateConfig)
		if !ok {
			return errors.Errorf("unexpected template config type for %s", path)
		}
		if err := r.Register(*cfg); err != nil {
			return err
		}
	}
	return nil
}

// Lookup resolves the template for a (provider, mode) pair. A missing exact
// match falls back to the provider's default template, then to the shared
// template for the mode, then to the grand default.
func (r *Registry) Lookup(provider, mode string) (*Template, error) {
	for _, key := range []string{
		templateKey(provider, mode),
		templateKey(provider, fallbackKey),
		templateKey(fallbackKey, mode),
		templateKey(fallbackKey, fallbackKey),
	} {
		if t, ok := r.templates[key]; ok {
			return t, nil
		}
	}
	return nil, errors.Wrapf(ErrTemplateNotFound, "provider %q mode %q", provider, mode)
}

func templateKey(provider, mode string) string {
	return provider + "/" + mode
}
