// Package modes holds the static mode mapping table and the resolver that
// turns a symbolic mode name into a concrete (provider, model, options)
// triple. The table is loaded once at startup and read-only afterwards.
package modes

import (
	"github.com/pkg/errors"

	"github.com/hrygo/famulus/ai/llm"
	"github.com/hrygo/famulus/ai/prompt"
)

// ProviderSpec describes one backing model provider.
type ProviderSpec struct {
	BaseURL string `yaml:"base_url"`

	// Format is the prompt serialization strategy this provider family
	// understands (instruct or chat).
	Format prompt.Format `yaml:"format"`

	// APIKeyEnv names the environment variable holding the provider's API
	// key. Empty for unauthenticated local runtimes.
	APIKeyEnv string `yaml:"api_key_env"`

	// RateLimit caps outbound requests per second. 0 means unlimited.
	RateLimit float64 `yaml:"rate_limit"`

	// TimeoutSeconds bounds each backend call. 0 falls back to the global
	// default.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// ModeSpec is the resolved execution triple for one mode.
type ModeSpec struct {
	Provider string      `yaml:"provider"`
	Model    string      `yaml:"model"`
	Options  llm.Options `yaml:"options"`
}

// Config is the full mode mapping table plus the provider registry.
type Config struct {
	// MinVersion is the lowest gateway version this table is written for.
	// Empty means any version. Checked at startup, not here, because the
	// running version is not known to the table.
	MinVersion string `yaml:"min_version"`

	DefaultProvider string                  `yaml:"default_provider"`
	Providers       map[string]ProviderSpec `yaml:"providers"`
	Modes           map[string]ModeSpec     `yaml:"modes"`
}

// DefaultMode is the mode assumed when a request names none.
const DefaultMode = "default"

// Validate checks internal consistency of the table.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("modes config: at least one provider is required")
	}
	if c.DefaultProvider == "" {
		return errors.New("modes config: default_provider is required")
	}
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return errors.Errorf("modes config: default_provider %q is not a configured provider", c.DefaultProvider)
	}
	for name, p := range c.Providers {
		if !p.Format.Valid() {
			return errors.Errorf("modes config: provider %q has unknown format %q", name, p.Format)
		}
	}
	if _, ok := c.Modes[DefaultMode]; !ok {
		return errors.Errorf("modes config: mode %q is required", DefaultMode)
	}
	for name, m := range c.Modes {
		if m.Model == "" {
			return errors.Errorf("modes config: mode %q has no model", name)
		}
		if _, ok := c.Providers[m.Provider]; !ok {
			return errors.Errorf("modes config: mode %q references unknown provider %q", name, m.Provider)
		}
	}
	return nil
}

// Provider returns the spec for a provider name.
func (c *Config) Provider(name string) (ProviderSpec, bool) {
	p, ok := c.Providers[name]
	return p, ok
}

// ProviderNames returns all configured provider names.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	return names
}
