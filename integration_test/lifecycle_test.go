package integration_test

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santhoshtr/topictrends"
	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/monitoring"
	"github.com/santhoshtr/topictrends/pageview"
	"github.com/santhoshtr/topictrends/testutil"
)

const lifecycleCategories = 5

// buildPortalWiki writes a snapshot of n articles spread over topic
// categories under one portal root, plus Zipf-distributed day vectors.
// The vectors are returned so tests can recompute every aggregate
// outside the engine.
func buildPortalWiki(t *testing.T, dir, tag string, days []core.Date, seed int64, n int) [][]uint64 {
	t.Helper()

	b := testutil.NewCorpusBuilder("enwiki").
		Tag(tag).
		Category(9, "Portal_root")
	for j := range lifecycleCategories {
		b.Category(core.QID(10+j), fmt.Sprintf("Topic_%d", j))
		b.Subcategory(9, core.QID(10+j))
	}
	for i := range n {
		qid := core.QID(1000 + i)
		b.Article(qid, fmt.Sprintf("Article_%03d", i))
		b.Member(qid, core.QID(10+i%lifecycleCategories))
	}
	require.NoError(t, b.WriteSnapshot(dir))

	rng := testutil.NewRNG(seed)
	vectors := make([][]uint64, len(days))
	for d, day := range days {
		vectors[d] = rng.ZipfViews(n, 1.0, 100_000)
		require.NoError(t, pageview.WriteDay(dir, "enwiki", day, vectors[d]))
	}

	return vectors
}

// ranked is one brute-force ranking entry, ordered like the engine:
// views descending, ties by load order.
type ranked struct {
	dense int
	views uint64
}

func rankTotals(totals []uint64, k int) []ranked {
	all := make([]ranked, len(totals))
	for i, v := range totals {
		all[i] = ranked{dense: i, views: v}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].views != all[j].views {
			return all[i].views > all[j].views
		}
		return all[i].dense < all[j].dense
	})

	if len(all) > k {
		all = all[:k]
	}
	return all
}

func sumVectors(vectors [][]uint64, n int) []uint64 {
	totals := make([]uint64, n)
	for _, vec := range vectors {
		for i, v := range vec {
			totals[i] += v
		}
	}
	return totals
}

// TestEngineLifecycle drives the whole stack the way a long-running
// service does: load, query everything against brute-force recomputed
// expectations, hit the result cache, refresh to a bigger snapshot and
// query again, with Prometheus metrics collected throughout.
func TestEngineLifecycle(t *testing.T) {
	dir := t.TempDir()
	days := []core.Date{day1, day2, core.NewDate(2025, 1, 3)}

	const n = 50
	vectors := buildPortalWiki(t, dir, "20250101", days, 42, n)

	reg := prometheus.NewRegistry()
	collector := monitoring.MustNewPrometheusCollector(reg)

	tt, err := topictrends.New(dir,
		topictrends.WithToday(fixedToday),
		topictrends.WithMetricsCollector(collector),
		topictrends.WithResultCache(true),
		topictrends.WithDayParallelism(3),
	)
	require.NoError(t, err)
	defer tt.Close()

	ctx := context.Background()
	require.NoError(t, tt.LoadWiki(ctx, "enwiki"))

	r := core.NewRange(days[0], days[len(days)-1])
	totals := sumVectors(vectors, n)

	t.Run("article series matches the raw vectors", func(t *testing.T) {
		series, err := tt.ArticleViews(ctx, "enwiki", 1007, r)
		require.NoError(t, err)
		require.Len(t, series, len(days))
		for d := range days {
			assert.Equal(t, vectors[d][7], series[d].Views, "day %d", d)
		}
	})

	t.Run("portal subtree equals the day sums", func(t *testing.T) {
		series, err := tt.CategoryViews(ctx, "enwiki", 9, r, -1)
		require.NoError(t, err)
		require.Len(t, series, len(days))
		for d, vec := range vectors {
			var want uint64
			for _, v := range vec {
				want += v
			}
			assert.Equal(t, want, series[d].Views, "day %d", d)
		}
	})

	t.Run("top articles match brute force", func(t *testing.T) {
		ranks, err := tt.TopArticles(ctx, "enwiki", 9, r, -1, 5)
		require.NoError(t, err)

		want := rankTotals(totals, 5)
		require.Len(t, ranks, len(want))
		for i, w := range want {
			assert.Equal(t, core.QID(1000+w.dense), ranks[i].QID, "rank %d", i)
			assert.Equal(t, w.views, ranks[i].Views, "rank %d", i)
		}
	})

	t.Run("top categories match brute force", func(t *testing.T) {
		catTotals := make([]uint64, lifecycleCategories)
		bestMember := make([]int, lifecycleCategories)
		for j := range bestMember {
			bestMember[j] = -1
		}
		for i, v := range totals {
			j := i % lifecycleCategories
			catTotals[j] += v
			if bestMember[j] < 0 || v > totals[bestMember[j]] {
				bestMember[j] = i
			}
		}

		trends, err := tt.TopCategories(ctx, "enwiki", r, lifecycleCategories)
		require.NoError(t, err)

		want := rankTotals(catTotals, lifecycleCategories)
		require.Len(t, trends, len(want))
		for i, w := range want {
			assert.Equal(t, core.QID(10+w.dense), trends[i].QID, "rank %d", i)
			assert.Equal(t, w.views, trends[i].Views, "rank %d", i)
			require.NotEmpty(t, trends[i].TopArticles)
			assert.Equal(t, core.QID(1000+bestMember[w.dense]), trends[i].TopArticles[0].QID)
		}
	})

	t.Run("rollup credits the portal root", func(t *testing.T) {
		var grand uint64
		for _, v := range totals {
			grand += v
		}

		trends, err := tt.TopCategoriesRollup(ctx, "enwiki", r, 1)
		require.NoError(t, err)
		require.Len(t, trends, 1)
		assert.Equal(t, core.QID(9), trends[0].QID)
		assert.Equal(t, grand, trends[0].Views)
	})

	t.Run("repeated queries serve from the result cache", func(t *testing.T) {
		first, err := tt.TopArticles(ctx, "enwiki", 9, r, -1, 3)
		require.NoError(t, err)
		second, err := tt.TopArticles(ctx, "enwiki", 9, r, -1, 3)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("refresh swaps to the new snapshot", func(t *testing.T) {
		vectors2 := buildPortalWiki(t, dir, "20250115", days, 43, n+1)

		require.NoError(t, tt.Refresh(ctx, "enwiki"))

		snap, err := tt.Snapshot("enwiki")
		require.NoError(t, err)
		assert.Equal(t, "20250115", snap.Tag)

		// The article that only exists in the new snapshot resolves.
		series, err := tt.ArticleViews(ctx, "enwiki", core.QID(1000+n), r)
		require.NoError(t, err)
		for d := range days {
			assert.Equal(t, vectors2[d][n], series[d].Views, "day %d", d)
		}

		series, err = tt.CategoryViews(ctx, "enwiki", 9, r, -1)
		require.NoError(t, err)
		for d, vec := range vectors2 {
			var want uint64
			for _, v := range vec {
				want += v
			}
			assert.Equal(t, want, series[d].Views, "day %d", d)
		}
	})

	t.Run("prometheus metrics were collected", func(t *testing.T) {
		families, err := reg.Gather()
		require.NoError(t, err)

		names := make(map[string]bool, len(families))
		for _, f := range families {
			names[f.GetName()] = true
		}

		for _, want := range []string{
			"topictrends_corpus_loads_total",
			"topictrends_queries_total",
			"topictrends_query_cache_total",
			"topictrends_pageview_cache_total",
		} {
			assert.True(t, names[want], want)
		}
	})
}
