package modes

import (
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/hrygo/famulus/ai/configloader"
	"github.com/hrygo/famulus/ai/llm"
	"github.com/hrygo/famulus/ai/prompt"
)

// configFile is the mode table file name below the config directory.
const configFile = "modes.yaml"

// DefaultConfig returns the built-in table: a local ollama runtime as the
// default provider plus a hosted API, and a single default mode. Useful for
// development and as the fallback when no config directory exists.
func DefaultConfig() *Config {
	return &Config{
		DefaultProvider: "ollama",
		Providers: map[string]ProviderSpec{
			"ollama": {
				BaseURL:        "http://localhost:11434/v1",
				Format:         prompt.FormatInstruct,
				TimeoutSeconds: 120,
			},
			"openai": {
				BaseURL:        "https://api.openai.com/v1",
				Format:         prompt.FormatChat,
				APIKeyEnv:      "OPENAI_API_KEY",
				TimeoutSeconds: 120,
			},
		},
		Modes: map[string]ModeSpec{
			DefaultMode: {
				Provider: "ollama",
				Model:    "llama3.1",
				Options:  llm.Options{MaxTokens: 2048, Temperature: 0.7},
			},
			"chat": {
				Provider: "openai",
				Model:    "gpt-4o",
				Options:  llm.Options{MaxTokens: 4096, Temperature: 0.7},
			},
		},
	}
}

// Load reads the mode table from baseDir/modes.yaml. A missing file falls
// back to the built-in default table; any other error is fatal.
func Load(baseDir string) (*Config, error) {
	loader := configloader.NewLoader(baseDir)

	cfg := &Config{}
	if err := loader.Load(configFile, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("modes config not found, using built-in defaults", "dir", baseDir)
			return DefaultConfig(), nil
		}
		return nil, errors.Wrap(err, "load modes config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("modes config loaded",
		"providers", len(cfg.Providers),
		"modes", len(cfg.Modes),
		"default_provider", cfg.DefaultProvider,
	)
	return cfg, nil
}
