package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotEmpty(t, cfg.Network.Address)
	require.Greater(t, cfg.Buffer.Capacity, 0)
	require.Greater(t, cfg.Buffer.PocketCapacity, 0)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
network:
  address: "10.0.0.5:51244"
buffer:
  capacity: 2000
  pocketCapacity: 100
  maxRegionSize: "1MB"
diagnostics:
  enableDebug: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.5:51244", cfg.Network.Address)
	require.Equal(t, 2000, cfg.Buffer.Capacity)
	require.Equal(t, 100, cfg.Buffer.PocketCapacity)
	require.Equal(t, datasize.MB, cfg.Buffer.MaxRegionSize)
	require.True(t, cfg.Diagnostics.EnableDebug)
	// Unset fields retain their defaults.
	require.Equal(t, DefaultConfig().Network.DialTimeout, cfg.Network.DialTimeout)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	require.Error(t, err)
}

func TestClampCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buffer.Capacity = 1_000_000
	cfg.Buffer.PocketCapacity = 900_000
	cfg.Buffer.MaxRegionSize = 4 * datasize.KB

	cfg.ClampCapacity(4)

	require.LessOrEqual(t, cfg.Buffer.Capacity, 1000)
	require.LessOrEqual(t, cfg.Buffer.PocketCapacity, cfg.Buffer.Capacity)
}
