package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RPREPO_ENV", "test-defaults")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-defaults", cfg.Env)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, int64(5<<20), cfg.Uploads.MaxBytes)
	assert.False(t, cfg.Auth.Discord.Enabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RPREPO_ENV", "test-overrides")
	t.Setenv("RPREPO_DATABASE_DSN", "file::memory:")
	t.Setenv("RPREPO_AUTH_DISCORD_CLIENT_ID", "discord-client")
	t.Setenv("RPREPO_AUTH_ADMIN_DISCORD_IDS", "111,222")
	t.Setenv("RPREPO_SCHEDULER_STATUS_SWEEP_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.True(t, cfg.Auth.Discord.Enabled())
	assert.Equal(t, []string{"111", "222"}, cfg.Auth.AdminDiscordIDs)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.StatusSweepInterval)
}
