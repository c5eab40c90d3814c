package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/famulus/ai/dispatch"
	"github.com/hrygo/famulus/ai/llm"
	"github.com/hrygo/famulus/ai/modes"
	"github.com/hrygo/famulus/ai/prompt"
	"github.com/hrygo/famulus/internal/profile"
	"github.com/hrygo/famulus/internal/version"
	"github.com/hrygo/famulus/server"
)

var rootCmd = &cobra.Command{
	Use:   "famulus",
	Short: `An LLM gateway for the personal-assistant mesh. Resolves modes to providers and dispatches completion requests asynchronously.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Only load .env for direct binary execution (not when running as systemd service)
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:          viper.GetString("mode"),
			Addr:          viper.GetString("addr"),
			Port:          viper.GetInt("port"),
			ConfigDir:     viper.GetString("config-dir"),
			TaskRetention: viper.GetDuration("task-retention"),
			LLMTimeout:    viper.GetDuration("llm-timeout"),
			Version:       version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			panic(err)
		}

		if instanceProfile.IsDev() {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		modesCfg, err := loadModesConfig(instanceProfile)
		if err != nil {
			slog.Error("failed to load modes config", "error", err)
			return
		}

		registry := prompt.NewRegistry()
		if instanceProfile.ConfigDir != "" {
			if err := registry.LoadDir(instanceProfile.ConfigDir, "prompts"); err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					slog.Error("failed to load prompt templates", "error", err)
					return
				}
				slog.Warn("no prompt template directory, using built-ins",
					"dir", instanceProfile.ConfigDir)
			}
		}

		providers, err := buildProviders(modesCfg, instanceProfile)
		if err != nil {
			slog.Error("failed to initialize providers", "error", err)
			return
		}

		metrics := dispatch.NewMetrics(nil)
		dispatcher := dispatch.New(providers, dispatch.Config{
			Retention:      instanceProfile.TaskRetention,
			DefaultTimeout: instanceProfile.LLMTimeout,
		}, metrics)
		dispatcher.Start(ctx)

		warmupDefaultProvider(modesCfg, providers)

		s := server.NewServer(
			instanceProfile,
			modesCfg,
			modes.NewResolver(modesCfg),
			prompt.NewBuilder(registry),
			dispatcher,
			metrics,
		)

		c := make(chan os.Signal, 1)
		// Trigger graceful shutdown on SIGINT or SIGTERM.
		signal.Notify(c, terminationSignals...)

		go func() {
			if err := s.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("failed to start server", "error", err)
				cancel()
			}
		}()

		printGreetings(instanceProfile)

		go func() {
			<-c
			s.Shutdown(ctx)
			dispatcher.Stop()
			cancel()
		}()

		<-ctx.Done()
	},
}

func loadModesConfig(p *profile.Profile) (*modes.Config, error) {
	if p.ConfigDir == "" {
		slog.Info("no config directory set, using built-in mode table")
		return modes.DefaultConfig(), nil
	}
	cfg, err := modes.Load(p.ConfigDir)
	if err != nil {
		return nil, err
	}
	if cfg.MinVersion != "" && !version.IsVersionGreaterOrEqualThan(p.Version, cfg.MinVersion) {
		return nil, fmt.Errorf("modes config requires gateway version >= %s, running %s", cfg.MinVersion, p.Version)
	}
	return cfg, nil
}

// buildProviders creates one backend client per configured provider.
func buildProviders(cfg *modes.Config, p *profile.Profile) (map[string]dispatch.Provider, error) {
	providers := make(map[string]dispatch.Provider, len(cfg.Providers))
	for name, spec := range cfg.Providers {
		apiKey := ""
		if spec.APIKeyEnv != "" {
			apiKey = os.Getenv(spec.APIKeyEnv)
			if apiKey == "" {
				slog.Warn("provider API key env is empty", "provider", name, "env", spec.APIKeyEnv)
			}
		}

		client, err := llm.NewClient(llm.Config{
			Provider: name,
			APIKey:   apiKey,
			BaseURL:  spec.BaseURL,
		})
		if err != nil {
			return nil, err
		}

		timeout := p.LLMTimeout
		if spec.TimeoutSeconds > 0 {
			timeout = time.Duration(spec.TimeoutSeconds) * time.Second
		}

		providers[name] = dispatch.Provider{
			Client:    client,
			Timeout:   timeout,
			RateLimit: spec.RateLimit,
		}
	}
	return providers, nil
}

// warmupDefaultProvider pings the default mode's backend asynchronously to
// reduce first-request latency. Best effort.
func warmupDefaultProvider(cfg *modes.Config, providers map[string]dispatch.Provider) {
	spec, ok := cfg.Modes[modes.DefaultMode]
	if !ok {
		return
	}
	p, ok := providers[spec.Provider]
	if !ok {
		return
	}
	go func() {
		warmupCtx, warmupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer warmupCancel()
		p.Client.Warmup(warmupCtx, spec.Model)
	}()
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("port", 28090)
	viper.SetDefault("task-retention", time.Hour)
	viper.SetDefault("llm-timeout", 2*time.Minute)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("config-dir", "", "directory holding modes.yaml and prompts/")
	rootCmd.PersistentFlags().Duration("task-retention", time.Hour, "how long finished task results stay pollable")
	rootCmd.PersistentFlags().Duration("llm-timeout", 2*time.Minute, "default per-call timeout for backend requests")

	for _, flag := range []string{"mode", "addr", "port", "config-dir", "task-retention", "llm-timeout"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("famulus")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("Famulus %s started successfully!\n", version.String())
	slog.Debug("build info", "build", version.StringFull())

	if p.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}

	fmt.Printf("Mode: %s\n", p.Mode)
	if p.ConfigDir != "" {
		fmt.Printf("Config directory: %s\n", p.ConfigDir)
	}

	if len(p.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
