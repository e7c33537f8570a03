package query

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/corpus"
	"github.com/santhoshtr/topictrends/monitoring"
)

// Operation names used in cache keys and metrics.
const (
	OpArticleViews        = "article_views"
	OpCategoryViews       = "category_views"
	OpTopCategories       = "top_categories"
	OpTopCategoriesRollup = "top_categories_rollup"
	OpTopArticles         = "top_articles"
	OpDeltaCategories     = "delta_categories"
	OpDeltaArticles       = "delta_articles"
)

// Result TTLs by recency of the queried range. Recent days are still
// accumulating views upstream, so their results go stale quickly; deep
// history is effectively immutable.
const (
	ttlToday   = 15 * time.Minute
	ttlRecent  = time.Hour     // range ends within 2 days
	ttlWeek    = 6 * time.Hour // range ends within 7 days
	ttlHistory = 24 * time.Hour
)

// Cached memoizes engine results in a TTL cache. Keys carry the snapshot
// tag of the corpus the result was computed from, so a refresh that swaps
// in a new snapshot invalidates by construction: the old entries simply
// stop being asked for and age out.
type Cached struct {
	engine  *Engine
	results *gocache.Cache
	metrics monitoring.Collector
	today   func() core.Date
}

// CachedOption configures a Cached view.
type CachedOption func(*Cached)

// WithCacheMetrics sets the collector for cache hit/miss accounting.
func WithCacheMetrics(collector monitoring.Collector) CachedOption {
	return func(cc *Cached) { cc.metrics = collector }
}

// WithCacheToday overrides the current-date source. Tests use it to make
// TTL tier selection deterministic.
func WithCacheToday(today func() core.Date) CachedOption {
	return func(cc *Cached) { cc.today = today }
}

// NewCached wraps engine with a TTL result cache.
func NewCached(engine *Engine, opts ...CachedOption) *Cached {
	cc := &Cached{
		engine:  engine,
		results: gocache.New(ttlHistory, 30*time.Minute),
		metrics: monitoring.NoopCollector{},
		today:   core.Today,
	}

	for _, opt := range opts {
		opt(cc)
	}

	return cc
}

// ttlFor picks the TTL tier from the most recent day a query touches.
func (cc *Cached) ttlFor(ranges ...core.Range) time.Duration {
	var latest core.Date
	for _, r := range ranges {
		if !r.Empty() && r.To.After(latest) {
			latest = r.To
		}
	}
	if latest.IsZero() {
		return ttlHistory
	}

	switch age := cc.today().Sub(latest); {
	case age <= 0:
		return ttlToday
	case age <= 2:
		return ttlRecent
	case age <= 7:
		return ttlWeek
	default:
		return ttlHistory
	}
}

// ArticleViews is Engine.ArticleViews behind the result cache.
func (cc *Cached) ArticleViews(ctx context.Context, c *corpus.Corpus, qid core.QID, r core.Range) ([]SeriesPoint, error) {
	key := fmt.Sprintf("%s|%s|%s|%s|%s", OpArticleViews, c.Wiki(), c.Snapshot().Tag, qid, r)
	return cached(cc, OpArticleViews, key, cc.ttlFor(r), func() ([]SeriesPoint, error) {
		return cc.engine.ArticleViews(ctx, c, qid, r)
	})
}

// CategoryViews is Engine.CategoryViews behind the result cache.
func (cc *Cached) CategoryViews(ctx context.Context, c *corpus.Corpus, qid core.QID, r core.Range, maxDepth int) ([]SeriesPoint, error) {
	key := fmt.Sprintf("%s|%s|%s|%s|%s|%d", OpCategoryViews, c.Wiki(), c.Snapshot().Tag, qid, r, maxDepth)
	return cached(cc, OpCategoryViews, key, cc.ttlFor(r), func() ([]SeriesPoint, error) {
		return cc.engine.CategoryViews(ctx, c, qid, r, maxDepth)
	})
}

// TopCategories is Engine.TopCategories behind the result cache.
func (cc *Cached) TopCategories(ctx context.Context, c *corpus.Corpus, r core.Range, topN int) ([]CategoryTrend, error) {
	key := fmt.Sprintf("%s|%s|%s|%s|%d", OpTopCategories, c.Wiki(), c.Snapshot().Tag, r, topN)
	return cached(cc, OpTopCategories, key, cc.ttlFor(r), func() ([]CategoryTrend, error) {
		return cc.engine.TopCategories(ctx, c, r, topN)
	})
}

// TopCategoriesRollup is Engine.TopCategoriesRollup behind the result cache.
func (cc *Cached) TopCategoriesRollup(ctx context.Context, c *corpus.Corpus, r core.Range, topN int) ([]CategoryTrend, error) {
	key := fmt.Sprintf("%s|%s|%s|%s|%d", OpTopCategoriesRollup, c.Wiki(), c.Snapshot().Tag, r, topN)
	return cached(cc, OpTopCategoriesRollup, key, cc.ttlFor(r), func() ([]CategoryTrend, error) {
		return cc.engine.TopCategoriesRollup(ctx, c, r, topN)
	})
}

// TopArticles is Engine.TopArticles behind the result cache.
func (cc *Cached) TopArticles(ctx context.Context, c *corpus.Corpus, qid core.QID, r core.Range, maxDepth, k int) ([]ArticleRank, error) {
	key := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d", OpTopArticles, c.Wiki(), c.Snapshot().Tag, qid, r, maxDepth, k)
	return cached(cc, OpTopArticles, key, cc.ttlFor(r), func() ([]ArticleRank, error) {
		return cc.engine.TopArticles(ctx, c, qid, r, maxDepth, k)
	})
}

// DeltaCategories is Engine.DeltaCategories behind the result cache.
func (cc *Cached) DeltaCategories(ctx context.Context, c *corpus.Corpus, baseline, impact core.Range, limit int) ([]CategoryDelta, error) {
	key := fmt.Sprintf("%s|%s|%s|%s|%s|%d", OpDeltaCategories, c.Wiki(), c.Snapshot().Tag, baseline, impact, limit)
	return cached(cc, OpDeltaCategories, key, cc.ttlFor(baseline, impact), func() ([]CategoryDelta, error) {
		return cc.engine.DeltaCategories(ctx, c, baseline, impact, limit)
	})
}

// DeltaArticles is Engine.DeltaArticles behind the result cache.
func (cc *Cached) DeltaArticles(ctx context.Context, c *corpus.Corpus, qid core.QID, baseline, impact core.Range, maxDepth, limit int) ([]ArticleDelta, error) {
	key := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d|%d", OpDeltaArticles, c.Wiki(), c.Snapshot().Tag, qid, baseline, impact, maxDepth, limit)
	return cached(cc, OpDeltaArticles, key, cc.ttlFor(baseline, impact), func() ([]ArticleDelta, error) {
		return cc.engine.DeltaArticles(ctx, c, qid, baseline, impact, maxDepth, limit)
	})
}

// Flush drops all cached results.
func (cc *Cached) Flush() {
	cc.results.Flush()
}

// cached returns the memoized value under key or computes, stores, and
// returns it. Errors are never cached.
func cached[T any](cc *Cached, op, key string, ttl time.Duration, compute func() (T, error)) (T, error) {
	if v, ok := cc.results.Get(key); ok {
		cc.metrics.RecordQueryCache(op, true)
		return v.(T), nil
	}
	cc.metrics.RecordQueryCache(op, false)

	v, err := compute()
	if err != nil {
		return v, err
	}

	cc.results.Set(key, v, ttl)
	return v, nil
}
