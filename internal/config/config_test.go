package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithNoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "./data", cfg.StorageDir)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, 4, cfg.WorkerConcurrency)
}

func TestLoad_ReadsExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "videoengine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_dir: /data/videoengine\nworker_concurrency: 8\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/data/videoengine", cfg.StorageDir)
	require.Equal(t, 8, cfg.WorkerConcurrency)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "videoengine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("master_addr: http://file:8080\n"), 0o644))

	t.Setenv("VIDEOENGINE_MASTER_ADDR", "http://env:9090")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://env:9090", cfg.MasterAddr)
}

func TestLoad_MissingExplicitFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/videoengine.yaml")
	require.Error(t, err)
}
