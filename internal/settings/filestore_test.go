package settings

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "settings.yaml"), "v0.1.0")

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Settings)
	assert.Equal(t, "v0.1.0", snap.ServerVersion)
}

func TestFileStoreSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	s := NewFileStore(path, "dev")

	snap, err := s.Save(context.Background(), Tree{
		"theme":   "dark",
		"metrics": Tree{"notify_level": 1, "report_daily_time": "07:30"},
	})
	require.NoError(t, err)
	assert.Equal(t, "dark", snap.Settings["theme"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	merged := Merge(Defaults(), loaded.Settings)
	decoded, err := Decode(merged)
	require.NoError(t, err)
	assert.Equal(t, "dark", decoded.Theme)
	assert.Equal(t, NotifyLevelWarn, decoded.Metrics.NotifyLevel)
	assert.Equal(t, "07:30", decoded.Metrics.ReportDailyTime)
}

func TestFileStoreInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: [unclosed"), 0o600))

	_, err := NewFileStore(path, "").Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse settings file")
}

func TestFileStoreBacksCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: dark\nlayout: \"\"\n"), 0o600))

	c := NewCache(NewFileStore(path, "v9"), nil)
	got, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dark", got["theme"])
	assert.Equal(t, "material", got["layout"])
	assert.Equal(t, "v9", c.ServerVersion())
}

func TestFileStoreIntegerKeysEncodeAsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: dark\ndisk_labels:\n  1: boot\n  2: data\n"), 0o600))

	c := NewCache(NewFileStore(path, ""), nil)
	got, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Tree{"1": "boot", "2": "data"}, got["disk_labels"])

	_, err = json.Marshal(got)
	assert.NoError(t, err)
}
