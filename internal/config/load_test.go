package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxWorkers, cfg.Pool.MaxWorkers)
	assert.Equal(t, DefaultExecutor, cfg.Pool.Executor)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultModel, cfg.LLM.Model)
	assert.Equal(t, 3500*time.Millisecond, cfg.NetworkTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCHOLARFIND_POOL_MAX_WORKERS", "12")
	t.Setenv("SCHOLARFIND_LOG_LEVEL", "debug")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Pool.MaxWorkers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
}

func TestLoad_FlagsTakePrecedenceOverEnv(t *testing.T) {
	t.Setenv("SCHOLARFIND_POOL_EXECUTOR", "scheduled")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("maxThreads", DefaultMaxWorkers, "")
	flags.String("executorType", DefaultExecutor, "")
	flags.String("log-level", DefaultLogLevel, "")
	require.NoError(t, flags.Parse([]string{"--executorType=virtual", "--maxThreads=2"}))

	cfg, err := Load(flags)
	require.NoError(t, err)

	assert.Equal(t, "virtual", cfg.Pool.Executor)
	assert.Equal(t, 2, cfg.Pool.MaxWorkers)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "unknown executor",
			env:  map[string]string{"SCHOLARFIND_POOL_EXECUTOR": "platinum"},
		},
		{
			name: "unknown log level",
			env:  map[string]string{"SCHOLARFIND_LOG_LEVEL": "loud"},
		},
		{
			name: "non-positive workers",
			env:  map[string]string{"SCHOLARFIND_POOL_MAX_WORKERS": "0"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(nil)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}
