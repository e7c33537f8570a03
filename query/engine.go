package query

import (
	"context"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/corpus"
	"github.com/santhoshtr/topictrends/internal/pool"
	"github.com/santhoshtr/topictrends/pageview"
)

const (
	// DefaultTopArticles is how many articles each trending category reports.
	DefaultTopArticles = 10

	// DefaultMinBaseline suppresses delta noise: categories and articles
	// below this many baseline views are excluded from delta rankings.
	DefaultMinBaseline = 100
)

// Engine runs the analytical queries over a corpus and the pageview store.
// It is stateless apart from configuration and scratch pools; every call
// binds the corpus passed in, so a request runs against one immutable
// snapshot end to end even while a refresh swaps the served corpus.
type Engine struct {
	store       *pageview.Store
	topArticles int
	minBaseline uint64
	parallelism int

	articleTotals pool.Counts
	catTotals     pool.Counts
}

// Option configures an Engine.
type Option func(*Engine)

// WithTopArticles sets how many articles each trending category carries.
func WithTopArticles(k int) Option {
	return func(e *Engine) { e.topArticles = k }
}

// WithMinBaseline sets the minimum baseline views for delta rankings.
func WithMinBaseline(v uint64) Option {
	return func(e *Engine) { e.minBaseline = v }
}

// WithDayParallelism fans the day loop of range aggregations out across
// n goroutines with per-chunk accumulators merged by reduction. Values
// below 2 keep the loop sequential.
func WithDayParallelism(n int) Option {
	return func(e *Engine) { e.parallelism = n }
}

// NewEngine creates an engine reading day vectors from store.
func NewEngine(store *pageview.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		topArticles: DefaultTopArticles,
		minBaseline: DefaultMinBaseline,
		parallelism: 1,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ArticleViews returns the daily view series of one article. The series is
// gap-free: days without a usable file report zero views.
func (e *Engine) ArticleViews(ctx context.Context, c *corpus.Corpus, qid core.QID, r core.Range) ([]SeriesPoint, error) {
	if err := e.store.ValidateRange(c.Wiki(), r); err != nil {
		return nil, err
	}

	dense, err := c.ArticleDense(qid)
	if err != nil {
		return nil, err
	}

	n := c.NumArticles()
	series := make([]SeriesPoint, 0, r.Days())

	for d := range r.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var views uint64
		if dv, ok := e.store.Day(c.Wiki(), d, n); ok {
			views = dv.At(dense)
			dv.Close()
		}

		series = append(series, SeriesPoint{Date: d, Views: views})
	}

	return series, nil
}

// CategoryViews returns the daily view series of a category subtree. The
// subtree is the set of categories within maxDepth BFS layers of the root
// (negative maxDepth means unbounded); every article belonging to any of
// them is counted exactly once per day, no matter how many memberships it
// has inside the subtree.
func (e *Engine) CategoryViews(ctx context.Context, c *corpus.Corpus, qid core.QID, r core.Range, maxDepth int) ([]SeriesPoint, error) {
	if err := e.store.ValidateRange(c.Wiki(), r); err != nil {
		return nil, err
	}

	incl, err := e.inclusionSet(c, qid, maxDepth)
	if err != nil {
		return nil, err
	}

	n := c.NumArticles()
	series := make([]SeriesPoint, 0, r.Days())

	for d := range r.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var views uint64
		if dv, ok := e.store.Day(c.Wiki(), d, n); ok {
			incl.Iterate(func(a uint32) bool {
				views += dv.At(a)
				return true
			})
			dv.Close()
		}

		series = append(series, SeriesPoint{Date: d, Views: views})
	}

	return series, nil
}

// inclusionSet resolves a category and collects the deduplicated articles
// of its subtree: the union of the direct article sets of every category
// within maxDepth layers of the root. The bitmap gives set semantics for
// free; an article in several subcategories lands in it exactly once.
func (e *Engine) inclusionSet(c *corpus.Corpus, qid core.QID, maxDepth int) (*roaring.Bitmap, error) {
	root, err := c.CategoryDense(qid)
	if err != nil {
		return nil, err
	}

	incl := roaring.New()
	for _, cat := range c.Graph().Descendants(root, maxDepth) {
		incl.AddMany(c.Memberships().ArticlesIn(cat))
	}

	return incl, nil
}

// TopCategories returns the topN categories by direct article views over
// the range, each with its top articles. Scoring is by reverse scatter:
// per-article range totals pushed onto every category the article belongs
// to, so the cost is linear in the membership edges of viewed articles.
func (e *Engine) TopCategories(ctx context.Context, c *corpus.Corpus, r core.Range, topN int) ([]CategoryTrend, error) {
	return e.topCategories(ctx, c, r, topN, false)
}

// TopCategoriesRollup is TopCategories with hierarchy rollup: after the
// scatter, every category's direct score is propagated level by level to
// its parents, so broad categories absorb the views of their subtrees.
// Unlike CategoryViews this scores categories, not deduplicated articles;
// an article in two subcategories contributes through both.
func (e *Engine) TopCategoriesRollup(ctx context.Context, c *corpus.Corpus, r core.Range, topN int) ([]CategoryTrend, error) {
	return e.topCategories(ctx, c, r, topN, true)
}

func (e *Engine) topCategories(ctx context.Context, c *corpus.Corpus, r core.Range, topN int, rollup bool) ([]CategoryTrend, error) {
	if err := e.store.ValidateRange(c.Wiki(), r); err != nil {
		return nil, err
	}
	if topN <= 0 || r.Empty() {
		return []CategoryTrend{}, nil
	}

	totals := e.articleTotals.Get(c.NumArticles())
	defer e.articleTotals.Put(totals)

	if err := e.sumRange(ctx, c, r, totals); err != nil {
		return nil, err
	}

	catScores := e.catTotals.Get(c.NumCategories())
	defer e.catTotals.Put(catScores)

	c.Memberships().Scatter(totals, catScores)
	if rollup {
		c.Graph().Propagate(catScores)
	}

	ranked := selectTop(catScores, topN)
	trends := make([]CategoryTrend, 0, len(ranked))

	for _, item := range ranked {
		trends = append(trends, CategoryTrend{
			QID:         c.CategoryQID(item.dense),
			Title:       c.CategoryTitle(item.dense),
			Views:       item.score,
			TopArticles: e.rankArticles(c, totals, c.Memberships().ArticlesIn(item.dense), e.topArticles),
		})
	}

	return trends, nil
}

// TopArticles returns the k most viewed articles of a category subtree
// over the range, using the inclusion rule of CategoryViews.
func (e *Engine) TopArticles(ctx context.Context, c *corpus.Corpus, qid core.QID, r core.Range, maxDepth, k int) ([]ArticleRank, error) {
	if err := e.store.ValidateRange(c.Wiki(), r); err != nil {
		return nil, err
	}

	incl, err := e.inclusionSet(c, qid, maxDepth)
	if err != nil {
		return nil, err
	}
	if k <= 0 || r.Empty() || incl.IsEmpty() {
		return []ArticleRank{}, nil
	}

	totals := e.articleTotals.Get(c.NumArticles())
	defer e.articleTotals.Put(totals)

	if err := e.sumRange(ctx, c, r, totals); err != nil {
		return nil, err
	}

	ranks := make([]ArticleRank, 0, k)
	for _, item := range selectTopBitmap(totals, incl, k) {
		ranks = append(ranks, ArticleRank{
			QID:   c.ArticleQID(item.dense),
			Title: c.ArticleTitle(item.dense),
			Views: item.score,
		})
	}

	return ranks, nil
}

// DeltaCategories compares per-category view totals between a baseline and
// an impact range. Categories with fewer than the minimum baseline views
// are excluded; the rest rank by absolute delta percentage, ties broken by
// larger impact views and then smaller dense id.
func (e *Engine) DeltaCategories(ctx context.Context, c *corpus.Corpus, baseline, impact core.Range, limit int) ([]CategoryDelta, error) {
	if err := e.store.ValidateRange(c.Wiki(), baseline); err != nil {
		return nil, err
	}
	if err := e.store.ValidateRange(c.Wiki(), impact); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []CategoryDelta{}, nil
	}

	base, err := e.categoryTotals(ctx, c, baseline)
	if err != nil {
		return nil, err
	}
	defer e.catTotals.Put(base)

	imp, err := e.categoryTotals(ctx, c, impact)
	if err != nil {
		return nil, err
	}
	defer e.catTotals.Put(imp)

	entries := rankDeltas(base, imp, e.minBaseline, limit)
	deltas := make([]CategoryDelta, 0, len(entries))

	for _, d := range entries {
		deltas = append(deltas, CategoryDelta{
			QID:      c.CategoryQID(d.dense),
			Title:    c.CategoryTitle(d.dense),
			Baseline: d.baseline,
			Impact:   d.impact,
			DeltaPct: d.pct,
			AbsDelta: int64(d.impact) - int64(d.baseline),
		})
	}

	return deltas, nil
}

// DeltaArticles is the delta computation restricted to the articles of one
// category subtree (inclusion rule of CategoryViews).
func (e *Engine) DeltaArticles(ctx context.Context, c *corpus.Corpus, qid core.QID, baseline, impact core.Range, maxDepth, limit int) ([]ArticleDelta, error) {
	if err := e.store.ValidateRange(c.Wiki(), baseline); err != nil {
		return nil, err
	}
	if err := e.store.ValidateRange(c.Wiki(), impact); err != nil {
		return nil, err
	}

	incl, err := e.inclusionSet(c, qid, maxDepth)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || incl.IsEmpty() {
		return []ArticleDelta{}, nil
	}

	base := e.articleTotals.Get(c.NumArticles())
	defer e.articleTotals.Put(base)
	if err := e.sumRange(ctx, c, baseline, base); err != nil {
		return nil, err
	}

	imp := e.articleTotals.Get(c.NumArticles())
	defer e.articleTotals.Put(imp)
	if err := e.sumRange(ctx, c, impact, imp); err != nil {
		return nil, err
	}

	entries := rankDeltasIn(base, imp, incl, e.minBaseline, limit)
	deltas := make([]ArticleDelta, 0, len(entries))

	for _, d := range entries {
		deltas = append(deltas, ArticleDelta{
			QID:      c.ArticleQID(d.dense),
			Title:    c.ArticleTitle(d.dense),
			Baseline: d.baseline,
			Impact:   d.impact,
			DeltaPct: d.pct,
			AbsDelta: int64(d.impact) - int64(d.baseline),
		})
	}

	return deltas, nil
}

// categoryTotals aggregates the range into per-category scores: article
// totals first, then one reverse scatter. The returned slice comes from
// the category pool; the caller puts it back.
func (e *Engine) categoryTotals(ctx context.Context, c *corpus.Corpus, r core.Range) ([]uint64, error) {
	totals := e.articleTotals.Get(c.NumArticles())
	defer e.articleTotals.Put(totals)

	if err := e.sumRange(ctx, c, r, totals); err != nil {
		return nil, err
	}

	catScores := e.catTotals.Get(c.NumCategories())
	c.Memberships().Scatter(totals, catScores)

	return catScores, nil
}

// sumRange accumulates every day of the range into totals (length
// NumArticles, already zeroed). Days fan out across goroutines when the
// engine was built with parallelism; each chunk sums into a pooled buffer
// and the buffers merge by reduction, so the result does not depend on
// scheduling order.
func (e *Engine) sumRange(ctx context.Context, c *corpus.Corpus, r core.Range, totals []uint64) error {
	if r.Empty() {
		return nil
	}

	dates := r.Dates()
	if e.parallelism < 2 || len(dates) < 2 {
		return e.sumDays(ctx, c, dates, totals)
	}

	workers := e.parallelism
	if workers > len(dates) {
		workers = len(dates)
	}

	chunkLen := (len(dates) + workers - 1) / workers
	chunks := make([][]uint64, 0, workers)

	g, gctx := errgroup.WithContext(ctx)
	for begin := 0; begin < len(dates); begin += chunkLen {
		end := min(begin+chunkLen, len(dates))

		chunk := e.articleTotals.Get(len(totals))
		chunks = append(chunks, chunk)

		days := dates[begin:end]
		g.Go(func() error {
			return e.sumDays(gctx, c, days, chunk)
		})
	}

	err := g.Wait()
	for _, chunk := range chunks {
		if err == nil {
			for i, v := range chunk {
				totals[i] += v
			}
		}
		e.articleTotals.Put(chunk)
	}

	return err
}

func (e *Engine) sumDays(ctx context.Context, c *corpus.Corpus, dates []core.Date, totals []uint64) error {
	n := c.NumArticles()

	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			return err
		}

		dv, ok := e.store.Day(c.Wiki(), d, n)
		if !ok {
			continue
		}
		dv.AddTo(totals)
		dv.Close()
	}

	return nil
}

// rankArticles picks the top k candidates by their range totals.
func (e *Engine) rankArticles(c *corpus.Corpus, totals []uint64, candidates []uint32, k int) []ArticleRank {
	ranked := selectTopIn(totals, candidates, k)

	ranks := make([]ArticleRank, 0, len(ranked))
	for _, item := range ranked {
		ranks = append(ranks, ArticleRank{
			QID:   c.ArticleQID(item.dense),
			Title: c.ArticleTitle(item.dense),
			Views: item.score,
		})
	}

	return ranks
}

// deltaEntry is one qualifying row of a delta ranking.
type deltaEntry struct {
	dense    uint32
	baseline uint64
	impact   uint64
	pct      float64
}

// outranks orders by absolute delta percentage descending, then larger
// impact views, then smaller dense id.
func (a deltaEntry) outranks(b deltaEntry) bool {
	aAbs, bAbs := math.Abs(a.pct), math.Abs(b.pct)
	if aAbs != bAbs {
		return aAbs > bAbs
	}
	if a.impact != b.impact {
		return a.impact > b.impact
	}
	return a.dense < b.dense
}

func rankDeltas(base, imp []uint64, minBaseline uint64, limit int) []deltaEntry {
	var entries []deltaEntry

	for dense := range base {
		b := base[dense]
		if b < minBaseline {
			continue
		}

		i := imp[dense]
		entries = append(entries, deltaEntry{
			dense:    uint32(dense),
			baseline: b,
			impact:   i,
			pct:      100 * (float64(i) - float64(b)) / float64(b),
		})
	}

	return truncateDeltas(entries, limit)
}

func rankDeltasIn(base, imp []uint64, incl *roaring.Bitmap, minBaseline uint64, limit int) []deltaEntry {
	var entries []deltaEntry

	incl.Iterate(func(dense uint32) bool {
		b := base[dense]
		if b < minBaseline {
			return true
		}

		i := imp[dense]
		entries = append(entries, deltaEntry{
			dense:    dense,
			baseline: b,
			impact:   i,
			pct:      100 * (float64(i) - float64(b)) / float64(b),
		})
		return true
	})

	return truncateDeltas(entries, limit)
}

func truncateDeltas(entries []deltaEntry, limit int) []deltaEntry {
	slices.SortFunc(entries, func(a, b deltaEntry) int {
		switch {
		case a.outranks(b):
			return -1
		case b.outranks(a):
			return 1
		default:
			return 0
		}
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries
}
