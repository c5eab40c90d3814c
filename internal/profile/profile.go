package profile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is configuration to start the gateway server. It is built once in
// main from flags and environment and immutable afterwards.
type Profile struct {
	// Mode can be "prod", "dev", or "demo".
	Mode string

	// Addr is the binding address of the server.
	Addr string

	// Port is the binding port of the server.
	Port int

	// ConfigDir holds modes.yaml and the prompts/ template directory.
	// Empty means built-in defaults only.
	ConfigDir string

	// TaskRetention is how long terminal task results stay pollable.
	TaskRetention time.Duration

	// LLMTimeout bounds each backend call for providers without their own
	// timeout.
	LLMTimeout time.Duration

	// Version is the current gateway version.
	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables. Values already set
// from flags win over the environment.
func (p *Profile) FromEnv() {
	if p.ConfigDir == "" {
		p.ConfigDir = getEnvOrDefault("FAMULUS_CONFIG_DIR", "")
	}
	if p.TaskRetention == 0 {
		p.TaskRetention = time.Duration(getEnvOrDefaultInt("FAMULUS_TASK_RETENTION_SECONDS", 3600)) * time.Second
	}
	if p.LLMTimeout == 0 {
		p.LLMTimeout = time.Duration(getEnvOrDefaultInt("FAMULUS_LLM_TIMEOUT_SECONDS", 120)) * time.Second
	}
}

func checkConfigDir(configDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(configDir) {
		absDir, err := filepath.Abs(configDir)
		if err != nil {
			return "", err
		}
		configDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	configDir = strings.TrimRight(configDir, "\\/")
	if _, err := os.Stat(configDir); err != nil {
		return "", errors.Wrapf(err, "unable to access config folder %s", configDir)
	}
	return configDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Port <= 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}

	if p.ConfigDir != "" {
		configDir, err := checkConfigDir(p.ConfigDir)
		if err != nil {
			return err
		}
		p.ConfigDir = configDir
	}

	if p.TaskRetention <= 0 {
		return errors.New("task retention must be positive")
	}
	if p.LLMTimeout <= 0 {
		return errors.New("LLM timeout must be positive")
	}
	return nil
}
