package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Pool PoolConfig `mapstructure:"pool" validate:"required"`
	Log  LogConfig  `mapstructure:"log"  validate:"required"`
	LLM  LLMConfig  `mapstructure:"llm"  validate:"required"`

	// NetworkTimeout bounds every scrape and agent request unless a task
	// overrides it.
	NetworkTimeout time.Duration `mapstructure:"network_timeout" validate:"required,gt=0"`
}

// PoolConfig contains the worker pool settings.
type PoolConfig struct {
	// MaxWorkers bounds how many tasks run truly in parallel for the
	// bounded executor kinds.
	MaxWorkers int `mapstructure:"max_workers" validate:"required,gt=0"`

	// Executor selects the pool flavor.
	Executor string `mapstructure:"executor" validate:"required,oneof=fixed work-stealing scheduled virtual"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// LLMConfig contains the language model integration settings. The API key
// is read from the environment only; it never appears on the command line.
type LLMConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model" validate:"required"`
}
