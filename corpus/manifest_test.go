package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/internal/fs"
)

func testManifest(tag string) *Manifest {
	return &Manifest{
		Wiki:     "enwiki",
		Tag:      tag,
		DumpDate: core.NewDate(2025, 7, 1),
		Tables: []TableInfo{
			{Name: TableArticles, Path: tag + "/articles.ttc", Rows: 100, Bytes: 4096, Checksum: 0xDEADBEEF},
			{Name: TableCategories, Path: tag + "/categories.ttc", Rows: 10, Bytes: 512, Checksum: 1},
		},
	}
}

func TestManifestStore_RoundTrip(t *testing.T) {
	store := NewManifestStore(fs.Default, t.TempDir())

	saved := testManifest("20250701")
	require.NoError(t, store.Save(saved))
	assert.Equal(t, uint64(1), saved.ID)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	info, ok := loaded.Table(TableArticles)
	require.True(t, ok)
	assert.Equal(t, uint64(100), info.Rows)

	_, ok = loaded.Table("nope")
	assert.False(t, ok)
}

func TestManifestStore_NoSnapshot(t *testing.T) {
	store := NewManifestStore(fs.Default, t.TempDir())

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestManifestStore_CurrentFollowsLatest(t *testing.T) {
	dir := t.TempDir()
	store := NewManifestStore(fs.Default, dir)

	first := testManifest("20250601")
	require.NoError(t, store.Save(first))

	second := testManifest("20250701")
	second.ID = first.ID
	require.NoError(t, store.Save(second))
	assert.Equal(t, uint64(2), second.ID)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "20250701", loaded.Tag)

	// Every manifest generation stays on disk for rollback.
	for _, name := range []string{"MANIFEST-000001.json", "MANIFEST-000002.json", "CURRENT"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestManifestStore_SaveFaulty(t *testing.T) {
	faulty := fs.NewFaultyFS(fs.Default)
	faulty.AddRule(".tmp", fs.Fault{FailOnSync: true})

	store := NewManifestStore(faulty, t.TempDir())

	err := store.Save(testManifest("20250701"))
	assert.ErrorIs(t, err, fs.ErrInjected)

	// The failed save must not have installed a CURRENT pointer.
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}
