package config

import (
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, err := Load(newTestViper(t))
		require.NoError(t, err)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8787, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "libsql", cfg.Store.Driver)
		assert.Equal(t, filepath.Join(gfconfig.GetAppDataDir("postforge"), "postforge.db"), cfg.Store.Path)

		assert.Equal(t, BackendStore, cfg.Tracker.Backend)
		assert.Equal(t, "postforge", cfg.Tracker.Namespace)
		assert.Equal(t, 15*time.Minute, cfg.Tracker.DefaultCooldown)
		assert.Equal(t, 15*time.Minute, cfg.Tracker.AuthTTL)
		assert.Equal(t, time.Second, cfg.Tracker.PollInterval)
		assert.Equal(t, 30*time.Minute, cfg.Tracker.MaxCountdown)

		assert.Equal(t, "x_api", cfg.XAPI.LimitKey)
		assert.Equal(t, "x_auth", cfg.XAPI.AuthKey)
		assert.Equal(t, 15*time.Second, cfg.XAPI.Timeout)

		assert.Equal(t, "json", cfg.Logging.Format)
		assert.Equal(t, "local", cfg.Logging.Environment)

		assert.Same(t, cfg, GetConfig())
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("POSTFORGE_SERVER_PORT", "9999")
		t.Setenv("POSTFORGE_TRACKER_BACKEND", "memory")
		t.Setenv("POSTFORGE_TRACKER_DEFAULT_COOLDOWN", "2m")
		t.Setenv("POSTFORGE_XAPI_BASE_URL", "https://backend.example")

		cfg, err := Load(newTestViper(t))
		require.NoError(t, err)

		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, BackendMemory, cfg.Tracker.Backend)
		assert.Equal(t, 2*time.Minute, cfg.Tracker.DefaultCooldown)
		assert.Equal(t, "https://backend.example", cfg.XAPI.BaseURL)
	})

	t.Run("InvalidValuesRejected", func(t *testing.T) {
		v := newTestViper(t)
		v.Set("tracker.backend", "redis")
		v.Set("tracker.poll_interval", "0s")
		v.Set("logging.format", "xml")

		_, err := Load(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tracker.backend")
		assert.Contains(t, err.Error(), "tracker.poll_interval")
		assert.Contains(t, err.Error(), "logging.format")
	})
}

func TestDecodeDurations(t *testing.T) {
	cfg, err := Decode(map[string]any{
		"tracker": map[string]any{
			"auth_ttl":      "90s",
			"max_countdown": "1h",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Tracker.AuthTTL)
	assert.Equal(t, time.Hour, cfg.Tracker.MaxCountdown)
}
