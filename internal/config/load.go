package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults applied before environment variables and flags.
const (
	DefaultMaxWorkers     = 4
	DefaultExecutor       = "fixed"
	DefaultLogLevel       = "info"
	DefaultModel          = "gemini-2.0-flash"
	DefaultNetworkTimeout = 3500 * time.Millisecond
)

// Load builds configuration from defaults, SCHOLARFIND_* environment
// variables, and optionally a parsed flag set (highest precedence).
// GEMINI_API_KEY is honored as the conventional name for the credential.
// Returns a populated Config or an error if loading/validation fails.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("pool.max_workers", DefaultMaxWorkers)
	v.SetDefault("pool.executor", DefaultExecutor)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("llm.model", DefaultModel)
	v.SetDefault("network_timeout", DefaultNetworkTimeout)

	v.SetEnvPrefix("SCHOLARFIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The credential keeps its provider-conventional name.
	if err := v.BindEnv("llm.api_key", "GEMINI_API_KEY", "SCHOLARFIND_LLM_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind credential env: %w", err)
	}

	if flags != nil {
		bindings := map[string]string{
			"pool.max_workers": "maxThreads",
			"pool.executor":    "executorType",
			"log.level":        "log-level",
		}
		for key, flag := range bindings {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
