package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWorkerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	content := `
input_dir: /var/data/in
output_dir: /var/data/out
seed: 42
tracing: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadWorkerConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/data/in", cfg.InputDir)
	assert.Equal(t, "/var/data/out", cfg.OutputDir)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.True(t, cfg.Tracing)
}

func TestLoadWorkerConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 7\n"), 0o644))

	cfg, err := LoadWorkerConfig(path)
	require.NoError(t, err)

	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, DefaultWorkerConfig().InputDir, cfg.InputDir)
	assert.Equal(t, DefaultWorkerConfig().OutputDir, cfg.OutputDir)
}

func TestLoadWorkerConfig_MissingFile(t *testing.T) {
	_, err := LoadWorkerConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadWorkerConfigOrDefault_FallsBack(t *testing.T) {
	cfg := LoadWorkerConfigOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, DefaultWorkerConfig(), cfg)
}

func TestLoadWorkerConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input_dir: [broken"), 0o644))

	_, err := LoadWorkerConfig(path)
	require.Error(t, err)
}
