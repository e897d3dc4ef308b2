package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsagg/internal/app"
)

func resolve(t *testing.T, cfgFile string, args ...string) (*app.Config, bool) {
	t.Helper()
	var (
		got   *app.Config
		trace bool
	)
	cmd := newCommand(cfgFile, func(_ context.Context, cfg *app.Config, tr bool) error {
		got, trace = cfg, tr
		return nil
	})
	require.NoError(t, cmd.Run(t.Context(), append([]string{"newsagg"}, args...)))
	require.NotNil(t, got)
	return got, trace
}

func TestDefaults(t *testing.T) {
	cfg, trace := resolve(t, filepath.Join(t.TempDir(), "missing.yaml"))
	def := app.DefaultConfig()

	assert.False(t, trace)
	assert.Equal(t, def.Addr, cfg.Addr)
	assert.Equal(t, def.CacheTTL, cfg.CacheTTL)
	assert.Equal(t, def.RefreshInterval, cfg.RefreshInterval)
	assert.Equal(t, def.Provider, cfg.Provider)
	assert.Empty(t, cfg.NewsAPIKey)
	assert.False(t, cfg.ExtractAllowPrivate)
}

func TestPrecedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "newsagg.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
env: production
server:
  addr: ":9000"
news:
  api_key: from-file
  block: [spam.example, ads.example/promo]
cache:
  ttl: 5m
refresh:
  disabled: true
`), 0o600))

	cfg, _ := resolve(t, file)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "from-file", cfg.NewsAPIKey)
	assert.Equal(t, []string{"spam.example", "ads.example/promo"}, cfg.BlockedDomains)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.DisableRefresh)
	assert.False(t, cfg.ExtractAllowPrivate)

	t.Setenv("EXTRACT_ALLOW_PRIVATE", "true")
	cfg, _ = resolve(t, file)
	assert.True(t, cfg.ExtractAllowPrivate)

	t.Setenv("NEWS_API_KEY", "from-env")
	t.Setenv("PORT", "4000")
	cfg, _ = resolve(t, file)
	assert.Equal(t, "from-env", cfg.NewsAPIKey)
	assert.Equal(t, ":4000", cfg.Addr)

	cfg, trace := resolve(t, file, "--api-key", "from-flag", "--trace", "--cache-ttl", "30s")
	assert.Equal(t, "from-flag", cfg.NewsAPIKey)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.True(t, trace)
}

func TestNonPositiveDurationsFallBack(t *testing.T) {
	cfg, _ := resolve(t, "", "--cache-ttl", "0s", "--request-timeout", "-1s")
	def := app.DefaultConfig()
	assert.Equal(t, def.CacheTTL, cfg.CacheTTL)
	assert.Equal(t, def.RequestTimeout, cfg.RequestTimeout)
}

func TestConfigPath(t *testing.T) {
	t.Setenv("NEWSAGG_CONFIG", "")
	assert.Equal(t, defaultConfigFile, configPath())
	t.Setenv("NEWSAGG_CONFIG", "/etc/newsagg.yaml")
	assert.Equal(t, "/etc/newsagg.yaml", configPath())
}
