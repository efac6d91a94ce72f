package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "memory", cfg.Session.Type)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "cancel", cfg.Bot.CancelWord)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	// The bot must default to active when nothing configures it.
	assert.True(t, cfg.Bot.Active)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  http_port: 9000
bot:
  active: false
  cancel_word: abort
session:
  type: redis
  redis:
    addr: redis:6379
store:
  type: gorm
  database:
    driver: postgres
    dsn: postgres://localhost/staffline
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.False(t, cfg.Bot.Active)
	assert.Equal(t, "abort", cfg.Bot.CancelWord)
	assert.Equal(t, "redis", cfg.Session.Type)
	assert.Equal(t, "redis:6379", cfg.Session.Redis.Addr)
	assert.Equal(t, "postgres", cfg.Store.Database.Driver)
	// Untouched sections keep their defaults.
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
}

func TestLoad_FileMissing(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/does/not/exist.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STAFFLINE_SERVER_HTTP_PORT", "7070")
	t.Setenv("STAFFLINE_BOT_ACTIVE", "false")
	t.Setenv("STAFFLINE_BOT_TURN_TIMEOUT", "45s")
	t.Setenv("STAFFLINE_SESSION_REDIS_ADDR", "envhost:6380")
	t.Setenv("STAFFLINE_LOG_OUTPUT_PATHS", "stdout, stderr")
	t.Setenv("STAFFLINE_SERVER_RATE_LIMIT_RPS", "2.5")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.False(t, cfg.Bot.Active)
	assert.Equal(t, 45*time.Second, cfg.Bot.TurnTimeout)
	assert.Equal(t, "envhost:6380", cfg.Session.Redis.Addr)
	assert.Equal(t, []string{"stdout", "stderr"}, cfg.Log.OutputPaths)
	assert.Equal(t, 2.5, cfg.Server.RateLimitRPS)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9000\n"), 0o644))

	t.Setenv("STAFFLINE_SERVER_HTTP_PORT", "9999")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("STAFFLINE_SERVER_HTTP_PORT", "not-a-number")

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestLoad_Validator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			if c.Server.HTTPPort == c.Server.MetricsPort {
				return assert.AnError
			}
			return nil
		}).
		Load()
	require.NoError(t, err)

	t.Setenv("STAFFLINE_SERVER_METRICS_PORT", "8080")
	_, err = NewLoader().
		WithValidator(func(c *Config) error {
			if c.Server.HTTPPort == c.Server.MetricsPort {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.Error(t, err)
}
