package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigToPathWritesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, InitConfigToPath(path, false))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	for _, section := range []string{"logging:", "raw_disk:", "defrag:", "origin:", "slice_size:"} {
		assert.True(t, strings.Contains(string(content), section), "missing section %q", section)
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
	assert.EqualValues(t, 1<<20, cfg.SliceSize)
}

func TestInitConfigToPathRefusesExistingFileWithoutForce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, InitConfigToPath(path, false))
	err := InitConfigToPath(path, false)
	assert.ErrorContains(t, err, "already exists")
}

func TestInitConfigToPathForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, InitConfigToPath(path, false))
	require.NoError(t, InitConfigToPath(path, true))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
