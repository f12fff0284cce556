package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 1, cfg.MotionRateLimitMinutes)
	require.Equal(t, 200, cfg.Button.DebounceMS)
	require.Equal(t, 10*time.Second, cfg.ReplyTimeout())
	require.Equal(t, 15*time.Second, cfg.StreamingCooldown())
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ws_url: wss://hub.example/ws
motion_rate_limit_minutes: 5
camera:
  stop_motion:
    interval_seconds: 0.5
    duration_seconds: 20
button:
  pin: 17
  debounce_ms: 150
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "wss://hub.example/ws", cfg.WSURL)
	require.Equal(t, 5, cfg.MotionRateLimitMinutes)
	require.Equal(t, 0.5, cfg.Camera.StopMotion.IntervalSeconds)
	require.Equal(t, 17, cfg.Button.Pin)
	require.Equal(t, 150, cfg.Button.DebounceMS)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
