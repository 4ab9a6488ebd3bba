package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careset/fhirstore/internal/config"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}

func TestLoad_AppliesDefaultsFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "fhirstore.yaml"), []byte("database:\n  url: postgres://localhost/fhirstore\n"), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/fhirstore", cfg.Database.URL)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_RejectsTrailingSlashAPIPrefix(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "fhirstore.yaml"), []byte("database:\n  url: postgres://localhost/fhirstore\nserver:\n  api_prefix: /api/\n"), 0o644))

	_, err := config.Load()
	require.Error(t, err)
}

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}
