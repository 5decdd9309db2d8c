package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, Validate(cfg))
	assert.True(t, cfg.CacheEnabled())
	assert.Equal(t, 4, cfg.MaxConcurrentSubrequests)
	assert.Equal(t, 3, cfg.MaxRetries)
}

// Matches tests/test_config_loading.rs: a config file that supplies only
// slice_size still gets defaults for the rest.
func TestLoadAppliesDefaultsOverPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slice_size: 131072\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.EqualValues(t, 131072, cfg.SliceSize)
	assert.Equal(t, 4, cfg.MaxConcurrentSubrequests)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.True(t, cfg.CacheEnabled())
}

// Matches tests/test_load_invalid_config: slice_size below 64 KiB fails validation.
func TestLoadRejectsSliceSizeBelowFloor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slice_size: 1024\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := GetDefaultConfig()
	cfg.RawDisk.Path = filepath.Join(dir, "cache.bin")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.SliceSize, loaded.SliceSize)
	assert.Equal(t, cfg.RawDisk.Path, loaded.RawDisk.Path)
}

func TestByteSizeAcceptsHumanReadableStrings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slice_size: \"1Mi\"\nraw_disk:\n  capacity: \"2Gi\"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.EqualValues(t, 1<<20, cfg.SliceSize)
	assert.EqualValues(t, 2<<30, cfg.RawDisk.Capacity)
}
