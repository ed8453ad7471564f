package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("DATA_DIR", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("SOURCE_LANGUAGE", "")
	t.Setenv("DEFAULT_TARGET_LANGUAGE", "")
	t.Setenv("SWEEP_CRON", "")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.False(t, cfg.LLM.Enabled())
	assert.Equal(t, ":8787", cfg.HTTP.Addr)
	assert.Equal(t, []string{"chrome-extension://*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, language.Swedish, cfg.Translate.SourceLanguage)
	assert.Equal(t, language.English, cfg.Translate.DefaultTargetLanguage)
	assert.Equal(t, "https://video.svt.se", cfg.Catalog.BaseURL)
	assert.Equal(t, 10, cfg.Catalog.Timeout)
	assert.Equal(t, "0 * * * *", cfg.Session.SweepCron)
	assert.Equal(t, 24, cfg.Session.TTLHours)
	assert.Equal(t, 2, cfg.Session.PrefetchWorkers)
	assert.Equal(t, 256, cfg.Session.PrefetchBuffer)
	assert.Equal(t, "/app/data", cfg.System.DataDir)
	assert.Equal(t, filepath.Join("/app/data", "livesub.db"), cfg.DBPath())
	assert.Equal(t, filepath.Join("/app/data", "livesub.lock"), cfg.LockPath())
}

func TestNewFromEnv_FromEnv(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("DATA_DIR", "/tmp/livesub-data")
	t.Setenv("CORS_ALLOWED_ORIGINS", " chrome-extension://abc , ,https://www.svtplay.se")
	t.Setenv("DEFAULT_TARGET_LANGUAGE", "de")
	t.Setenv("SOURCE_LANGUAGE", "not a tag!")
	t.Setenv("PREFETCH_WORKERS", "4")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.LLM.Enabled())
	assert.Equal(t, filepath.Join("/tmp/livesub-data", "livesub.db"), cfg.DBPath())
	assert.Equal(t, []string{"chrome-extension://abc", "https://www.svtplay.se"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "de", cfg.Translate.DefaultTargetLanguage.String())
	assert.Equal(t, language.Swedish, cfg.Translate.SourceLanguage)
	assert.Equal(t, 4, cfg.Session.PrefetchWorkers)
}

func TestNewFromEnv_Invalid(t *testing.T) {
	t.Run("sweep cron", func(t *testing.T) {
		t.Setenv("SWEEP_CRON", "every hour")
		_, err := NewFromEnv()
		require.Error(t, err)
	})

	t.Run("ttl", func(t *testing.T) {
		t.Setenv("SESSION_TTL_HOURS", "0")
		_, err := NewFromEnv()
		require.Error(t, err)
	})

	t.Run("option clears data dir", func(t *testing.T) {
		_, err := NewFromEnv(func(c *Config) { c.System.DataDir = "" })
		require.Error(t, err)
	})
}
