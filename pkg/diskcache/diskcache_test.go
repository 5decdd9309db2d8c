package diskcache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	c, err := Open(path, 1<<20, 4096, time.Hour)
	require.NoError(t, err)
	defer c.Close()

	err = c.Put("http://example.com/f|0-1023", []byte("hello world"))
	require.NoError(t, err)

	data, ok, err := c.Get("http://example.com/f|0-1023")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello world"), data)
}

func TestGetMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	c, err := Open(path, 1<<20, 4096, time.Hour)
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Get("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDefragBasicFreshCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	c, err := Open(path, 10<<20, 4096, time.Hour)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 0.0, c.FragmentationRatio())

	c.UpdateDefragConfig(DefaultDefragConfig())
	cfg := c.DefragConfigSnapshot()
	assert.Equal(t, 0.3, cfg.FragmentationThreshold)

	stats := c.DefragStatsSnapshot()
	assert.Equal(t, uint64(0), stats.TotalRuns)
}

func TestDeleteFreesEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	c, err := Open(path, 1<<20, 4096, time.Hour)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put("k", []byte("payload")))
	c.Delete("k")

	_, ok, err := c.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecoveryRebuildsIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	c1, err := Open(path, 1<<20, 4096, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c1.Put("persisted", []byte("still here")))
	require.NoError(t, c1.Close())

	c2, err := Open(path, 1<<20, 4096, time.Hour)
	require.NoError(t, err)
	defer c2.Close()

	data, ok, err := c2.Get("persisted")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("still here"), data)
}

// A deleted entry whose blocks haven't been overwritten yet must not come
// back to life after a restart's recovery scan.
func TestDeletedEntryDoesNotResurrectAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	c1, err := Open(path, 1<<20, 4096, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c1.Put("k", []byte("gone soon")))
	c1.Delete("k")
	require.NoError(t, c1.Close())

	c2, err := Open(path, 1<<20, 4096, time.Hour)
	require.NoError(t, err)
	defer c2.Close()

	_, ok, err := c2.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}
