package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/pageview"
)

func TestCorpusBuilder_Build(t *testing.T) {
	dir := t.TempDir()
	day := core.NewDate(2025, 1, 1)

	c, err := NewCorpusBuilder("testwiki").
		Category(1, "Science").
		Category(2, "Physics").
		Subcategory(1, 2).
		Article(10, "Quark").
		Article(11, "Lepton").
		Member(10, 2).
		Member(11, 1).
		Views(day, map[core.QID]uint64{10: 100, 11: 50}).
		Build(dir)
	require.NoError(t, err)

	assert.Equal(t, "testwiki", c.Wiki())
	assert.Equal(t, "20250101", c.Snapshot().Tag)
	assert.Equal(t, 2, c.NumArticles())
	assert.Equal(t, 2, c.NumCategories())

	// Dense ids follow insertion order.
	dense, err := c.ArticleDense(10)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), dense)

	dense, err = c.CategoryDense(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), dense)

	// Day files index by that same order.
	store := pageview.NewStore(dir)
	defer store.Close()

	dv, ok := store.Day("testwiki", day, c.NumArticles())
	require.True(t, ok)
	defer dv.Close()

	assert.Equal(t, uint64(100), dv.At(0))
	assert.Equal(t, uint64(50), dv.At(1))
}

func TestCorpusBuilder_DanglingEdgesDropped(t *testing.T) {
	c, err := NewCorpusBuilder("testwiki").
		Category(1, "Root").
		Article(10, "A").
		Member(10, 1).
		Member(10, 999).    // unknown category
		Subcategory(1, 42). // unknown child
		Build(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, int64(1), c.Health().DroppedGraphEdges)
	assert.Equal(t, int64(1), c.Health().DroppedLinkEdges)
	assert.Equal(t, 1, c.Memberships().NumEdges())
}

func TestCorpusBuilder_DuplicateNodesCounted(t *testing.T) {
	c, err := NewCorpusBuilder("testwiki").
		Category(1, "Root").
		Article(10, "A").
		Article(10, "A again").
		Build(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 1, c.NumArticles())
	assert.Equal(t, int64(1), c.Health().DuplicateArticles)
}

func TestZipfViews(t *testing.T) {
	rng := NewRNG(4711)
	views := rng.ZipfViews(100, 1.0, 10_000)

	require.Len(t, views, 100)

	var maxViews uint64
	for _, v := range views {
		if v > maxViews {
			maxViews = v
		}
	}
	// Rank 1 always carries the full weight.
	assert.Equal(t, uint64(10_000), maxViews)

	// Same seed, same vector.
	rng.Reset()
	assert.Equal(t, views, rng.ZipfViews(100, 1.0, 10_000))
}

func TestSpike(t *testing.T) {
	base := []uint64{10, 20, 30}
	spiked := Spike(base, 5, 1)

	assert.Equal(t, []uint64{10, 20, 30}, base)
	assert.Equal(t, []uint64{10, 100, 30}, spiked)
}
