package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/corpus"
	"github.com/santhoshtr/topictrends/internal/fs"
	"github.com/santhoshtr/topictrends/pageview"
	"github.com/santhoshtr/topictrends/resource"
	"github.com/santhoshtr/topictrends/testutil"
)

var mirrorDay = core.NewDate(2025, 1, 1)

// writeFixtureTree writes a small but complete wiki tree (snapshot +
// one day file) under dataDir.
func writeFixtureTree(t *testing.T, dataDir string) {
	t.Helper()
	b := testutil.NewCorpusBuilder("enwiki").
		Article(1, "Go_(programming_language)").
		Article(2, "Gopher").
		Category(100, "Programming_languages").
		Member(1, 100).
		Member(2, 100).
		Views(mirrorDay, map[core.QID]uint64{1: 500, 2: 40})
	require.NoError(t, b.WriteSnapshot(dataDir))
	require.NoError(t, b.WriteDays(dataDir))
}

func TestMirror_PushThenSync(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeFixtureTree(t, src)

	remote := NewMemoryStore()
	rc := resource.NewController(resource.Config{MirrorBytesPerSec: 1 << 20})

	push := NewMirror(remote, src,
		WithMirrorController(rc),
		WithPageviewBackfill(true),
	)
	st, err := push.Push(ctx, "enwiki")
	require.NoError(t, err)
	assert.Equal(t, 5, st.Transferred, "4 tables + 1 day file")
	assert.Zero(t, st.Skipped)
	assert.Positive(t, st.Bytes)

	names, err := remote.List(ctx, "enwiki/")
	require.NoError(t, err)
	assert.Contains(t, names, "enwiki/snapshots/CURRENT")
	assert.Contains(t, names, "enwiki/snapshots/20250101/articles.ttc")
	assert.Contains(t, names, "enwiki/pageviews/2025/01/01.bin")

	dst := t.TempDir()
	pull := NewMirror(remote, dst,
		WithMirrorController(rc),
		WithPageviewBackfill(true),
	)
	st, err = pull.Sync(ctx, "enwiki")
	require.NoError(t, err)
	assert.Equal(t, 5, st.Transferred)
	assert.Zero(t, st.Skipped)

	// The mirrored tree is loadable through the regular loader.
	c, err := corpus.NewLoader(dst).Load(ctx, "enwiki")
	require.NoError(t, err)
	assert.Equal(t, 2, c.NumArticles())
	assert.Equal(t, "20250101", c.Snapshot().Tag)

	// Day files survive byte for byte.
	want, err := os.ReadFile(pageview.DayPath(src, "enwiki", mirrorDay))
	require.NoError(t, err)
	got, err := os.ReadFile(pageview.DayPath(dst, "enwiki", mirrorDay))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMirror_SyncSkipsMatchingFiles(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeFixtureTree(t, src)

	remote := NewMemoryStore()
	_, err := NewMirror(remote, src, WithPageviewBackfill(true)).Push(ctx, "enwiki")
	require.NoError(t, err)

	dst := t.TempDir()
	pull := NewMirror(remote, dst, WithPageviewBackfill(true))

	_, err = pull.Sync(ctx, "enwiki")
	require.NoError(t, err)

	st, err := pull.Sync(ctx, "enwiki")
	require.NoError(t, err)
	assert.Zero(t, st.Transferred)
	assert.Equal(t, 5, st.Skipped)
	assert.Zero(t, st.Bytes)
}

func TestMirror_PushSkipsMatchingFiles(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeFixtureTree(t, src)

	remote := NewMemoryStore()
	push := NewMirror(remote, src, WithPageviewBackfill(true))

	_, err := push.Push(ctx, "enwiki")
	require.NoError(t, err)

	st, err := push.Push(ctx, "enwiki")
	require.NoError(t, err)
	assert.Zero(t, st.Transferred)
	assert.Equal(t, 5, st.Skipped)
}

func TestMirror_SyncVerifiesChecksum(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeFixtureTree(t, src)

	remote := NewMemoryStore()
	_, err := NewMirror(remote, src).Push(ctx, "enwiki")
	require.NoError(t, err)

	// Flip one byte so the size still matches the manifest.
	name := "enwiki/snapshots/20250101/articles.ttc"
	data, err := ReadAll(ctx, remote, name)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, Put(ctx, remote, name, data))

	_, err = NewMirror(remote, t.TempDir()).Sync(ctx, "enwiki")
	require.ErrorContains(t, err, "checksum mismatch")
}

func TestMirror_SyncRejectsSizeMismatch(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeFixtureTree(t, src)

	remote := NewMemoryStore()
	_, err := NewMirror(remote, src).Push(ctx, "enwiki")
	require.NoError(t, err)

	name := "enwiki/snapshots/20250101/articles.ttc"
	data, err := ReadAll(ctx, remote, name)
	require.NoError(t, err)
	require.NoError(t, Put(ctx, remote, name, data[:len(data)-1]))

	_, err = NewMirror(remote, t.TempDir()).Sync(ctx, "enwiki")
	require.ErrorContains(t, err, "manifest says")
}

func TestMirror_SyncEmptyRemote(t *testing.T) {
	_, err := NewMirror(NewMemoryStore(), t.TempDir()).Sync(context.Background(), "enwiki")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMirror_PushWithoutLocalSnapshot(t *testing.T) {
	_, err := NewMirror(NewMemoryStore(), t.TempDir()).Push(context.Background(), "enwiki")
	assert.ErrorContains(t, err, "CURRENT")
}

func TestMirror_SyncWritesCurrentPointer(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeFixtureTree(t, src)

	remote := NewMemoryStore()
	_, err := NewMirror(remote, src).Push(ctx, "enwiki")
	require.NoError(t, err)

	dst := t.TempDir()
	_, err = NewMirror(remote, dst).Sync(ctx, "enwiki")
	require.NoError(t, err)

	man, err := corpus.NewManifestStore(fs.Default, filepath.Join(dst, "enwiki", "snapshots")).Load()
	require.NoError(t, err)
	assert.Equal(t, "20250101", man.Tag)
	assert.Len(t, man.Tables, 4)
}

func TestMirror_PageviewsOffByDefault(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeFixtureTree(t, src)

	remote := NewMemoryStore()
	st, err := NewMirror(remote, src).Push(ctx, "enwiki")
	require.NoError(t, err)
	assert.Equal(t, 4, st.Transferred, "tables only")

	names, err := remote.List(ctx, "enwiki/pageviews/")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMirror_SyncCancelled(t *testing.T) {
	src := t.TempDir()
	writeFixtureTree(t, src)

	remote := NewMemoryStore()
	_, err := NewMirror(remote, src).Push(context.Background(), "enwiki")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewMirror(remote, t.TempDir()).Sync(ctx, "enwiki")
	assert.ErrorIs(t, err, context.Canceled)
}
