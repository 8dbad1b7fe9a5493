package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8765, cfg.Port)
	assert.Equal(t, "./data/marks.vault", cfg.Vault.Path)
	assert.Equal(t, 600000, cfg.Vault.KDFIterations)
	assert.Equal(t, "UG-STANDARD", cfg.Policy.DefaultCalcModel)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, time.Second, cfg.Recompute.RetryDelay)
}

func TestLoadFromEnvironment(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("VAULT_PATH", "/srv/marks.vault")
	t.Setenv("DEFAULT_CALC_MODEL", " ug-legacy ")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:1420, tauri://localhost ,")
	t.Setenv("RECOMPUTE_RETRY_DELAY", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/marks.vault", cfg.Vault.Path)
	assert.Equal(t, "UG-LEGACY", cfg.Policy.DefaultCalcModel)
	assert.Equal(t, []string{"http://localhost:1420", "tauri://localhost"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, time.Second, cfg.Recompute.RetryDelay)
}
