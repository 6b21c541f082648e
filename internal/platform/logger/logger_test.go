package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/jelatinone/scholarfind/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_LevelsAreHonored(t *testing.T) {
	cases := []struct {
		level   string
		enabled slog.Level
		muted   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			log := Setup(config.LogConfig{Level: tc.level})
			require.NotNil(t, log)

			assert.True(t, log.Enabled(context.Background(), tc.enabled))
			assert.False(t, log.Enabled(context.Background(), tc.muted))
		})
	}
}

func TestSetup_InvalidLevelFallsBackToInfo(t *testing.T) {
	log := Setup(config.LogConfig{Level: "shouting"})
	require.NotNil(t, log)

	assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
}
