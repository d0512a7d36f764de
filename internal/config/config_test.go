package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "4100", cfg.ServerPort)
	require.False(t, cfg.Debug)
	require.Equal(t, "http://localhost:3002", cfg.APIBaseURL)
	require.Equal(t, "http://localhost:3003", cfg.TrackingAPIBaseURL)
	require.Equal(t, "com.tracetrip.app", cfg.ClientIdentifier)
	require.Equal(t, 5*time.Second, cfg.PollInterval)
	require.Equal(t, 100, cfg.TrackBufferSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("DEBUG", "true")
	t.Setenv("TRACKING_API_BASE_URL", "https://rastreio.example.com")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("TRACK_BUFFER_SIZE", "50")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "9000", cfg.ServerPort)
	require.True(t, cfg.Debug)
	require.Equal(t, "https://rastreio.example.com", cfg.TrackingAPIBaseURL)
	require.Equal(t, 30*time.Second, cfg.PollInterval)
	require.Equal(t, 50, cfg.TrackBufferSize)
}

func TestInvalidEnvFallsBackToDefaults(t *testing.T) {
	t.Setenv("DEBUG", "not-a-bool")
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("TRACK_BUFFER_SIZE", "many")

	cfg, err := Load()
	require.NoError(t, err)

	require.False(t, cfg.Debug)
	require.Equal(t, 5*time.Second, cfg.PollInterval)
	require.Equal(t, 100, cfg.TrackBufferSize)
}
