package titles_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/corpus"
	"github.com/santhoshtr/topictrends/testutil"
	"github.com/santhoshtr/topictrends/titles"
)

func newManager(t *testing.T, b *testutil.CorpusBuilder) *corpus.Manager {
	t.Helper()

	c, err := b.Build(t.TempDir())
	require.NoError(t, err)

	m := corpus.NewManager()
	m.Swap(c)
	return m
}

func TestCorpusTitles_QIDByTitle(t *testing.T) {
	m := newManager(t, testutil.NewCorpusBuilder("enwiki").
		Category(5, "Machine_learning").
		Article(42, "Artificial_intelligence").
		Member(42, 5))

	svc := titles.NewCorpusTitles(m)
	ctx := context.Background()

	qid, err := svc.QIDByTitle(ctx, "enwiki", "Artificial_intelligence")
	require.NoError(t, err)
	assert.Equal(t, core.QID(42), qid)

	t.Run("spaces fold to underscores", func(t *testing.T) {
		qid, err := svc.QIDByTitle(ctx, "enwiki", "Artificial intelligence")
		require.NoError(t, err)
		assert.Equal(t, core.QID(42), qid)
	})

	t.Run("category prefix selects the category namespace", func(t *testing.T) {
		qid, err := svc.QIDByTitle(ctx, "enwiki", "Category:Machine learning")
		require.NoError(t, err)
		assert.Equal(t, core.QID(5), qid)

		// Without the prefix the same title is an article lookup.
		_, err = svc.QIDByTitle(ctx, "enwiki", "Machine learning")
		var notFound *titles.TitleNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "enwiki", notFound.Wiki)
	})

	t.Run("unknown wiki", func(t *testing.T) {
		_, err := svc.QIDByTitle(ctx, "dewiki", "Anything")
		var notLoaded *corpus.ErrWikiNotLoaded
		assert.ErrorAs(t, err, &notLoaded)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := svc.QIDByTitle(cancelled, "enwiki", "Artificial_intelligence")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCorpusTitles_TitlesByQIDs(t *testing.T) {
	m := newManager(t, testutil.NewCorpusBuilder("frwiki").
		Category(5, "Apprentissage_automatique").
		Article(42, "Intelligence_artificielle").
		Member(42, 5))

	svc := titles.NewCorpusTitles(m)

	got, err := svc.TitlesByQIDs(context.Background(), "frwiki",
		[]core.QID{5, 42, 999})
	require.NoError(t, err)

	// The absent QID is omitted, not an error.
	assert.Equal(t, map[core.QID]string{
		5:  "Apprentissage_automatique",
		42: "Intelligence_artificielle",
	}, got)
}

func TestCorpusTitles_SwapRebuildsLookup(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()

	first, err := testutil.NewCorpusBuilder("enwiki").
		Category(1, "Old").
		Article(10, "Before").
		Member(10, 1).
		Build(dirA)
	require.NoError(t, err)

	second, err := testutil.NewCorpusBuilder("enwiki").
		Tag("20250201").
		Category(1, "Old").
		Article(10, "After").
		Member(10, 1).
		Build(dirB)
	require.NoError(t, err)

	m := corpus.NewManager()
	m.Swap(first)

	svc := titles.NewCorpusTitles(m)
	ctx := context.Background()

	qid, err := svc.QIDByTitle(ctx, "enwiki", "Before")
	require.NoError(t, err)
	assert.Equal(t, core.QID(10), qid)

	m.Swap(second)

	_, err = svc.QIDByTitle(ctx, "enwiki", "Before")
	assert.Error(t, err)

	qid, err = svc.QIDByTitle(ctx, "enwiki", "After")
	require.NoError(t, err)
	assert.Equal(t, core.QID(10), qid)
}
