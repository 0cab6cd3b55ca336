package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/germanamz/tether/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, engine.Defaults(), cfg)
}

func TestLoadConfigPicksUpDefaultFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, defaultConfigPath), []byte("gateway:\n  model: picked\n"), 0o600))

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "picked", cfg.Gateway.Model)
}

func TestLoadConfigExplicitMissing(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TETHER_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("TETHER_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("TETHER_TEST_DOTENV"))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("TETHER_TEST_DOTENV"))
}
