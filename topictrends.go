package topictrends

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/corpus"
	"github.com/santhoshtr/topictrends/pageview"
	"github.com/santhoshtr/topictrends/query"
	"github.com/santhoshtr/topictrends/taxonomy"
	"github.com/santhoshtr/topictrends/titleindex"
	"github.com/santhoshtr/topictrends/titles"
)

// Result types of the query methods, re-exported from their packages.
type (
	SeriesPoint   = query.SeriesPoint
	ArticleRank   = query.ArticleRank
	CategoryTrend = query.CategoryTrend
	CategoryDelta = query.CategoryDelta
	ArticleDelta  = query.ArticleDelta
	CategoryMatch = taxonomy.CategoryMatch
	TitleMatch    = titleindex.Match
)

// Operation name of SearchCategories in metrics and logs. The in-memory
// query operations reuse the query package's Op constants.
const opSearchCategories = "search_categories"

// defaultLoadConcurrency bounds LoadWikis fan-out. Corpus builds are
// memory-hungry, so the limit stays low even on wide machines.
const defaultLoadConcurrency = 4

// querier is the query surface the facade dispatches to, satisfied by
// the raw engine and by its result-caching wrapper.
type querier interface {
	ArticleViews(ctx context.Context, c *corpus.Corpus, qid core.QID, r core.Range) ([]SeriesPoint, error)
	CategoryViews(ctx context.Context, c *corpus.Corpus, qid core.QID, r core.Range, maxDepth int) ([]SeriesPoint, error)
	TopCategories(ctx context.Context, c *corpus.Corpus, r core.Range, topN int) ([]CategoryTrend, error)
	TopCategoriesRollup(ctx context.Context, c *corpus.Corpus, r core.Range, topN int) ([]CategoryTrend, error)
	TopArticles(ctx context.Context, c *corpus.Corpus, qid core.QID, r core.Range, maxDepth, k int) ([]ArticleRank, error)
	DeltaCategories(ctx context.Context, c *corpus.Corpus, baseline, impact core.Range, limit int) ([]CategoryDelta, error)
	DeltaArticles(ctx context.Context, c *corpus.Corpus, qid core.QID, baseline, impact core.Range, maxDepth, limit int) ([]ArticleDelta, error)
}

var (
	_ querier = (*query.Engine)(nil)
	_ querier = (*query.Cached)(nil)
)

// TopicTrends is the engine facade: it owns the loaded corpora, the
// pageview store and the query engine, and exposes every operation
// keyed by wiki and QID. All methods are safe for concurrent use.
type TopicTrends struct {
	dataDir string
	manager *corpus.Manager
	loader  *corpus.Loader
	store   *pageview.Store
	queries querier
	cached  *query.Cached // non-nil only when the result cache is on
	titles  *titles.CorpusTitles
	taxo    *taxonomy.Index // non-nil only with semantic search
	logger  *Logger
	metrics MetricsCollector

	// Lexical title indexes, built lazily per wiki and rebuilt when the
	// served snapshot tag changes.
	mu       sync.Mutex
	titleIdx map[string]titleIndexEntry
}

type titleIndexEntry struct {
	tag   string
	index *titleindex.Index
}

// New creates an engine over the given data directory. The directory
// holds one subdirectory per wiki with its topology snapshots and
// pageview day files; no wiki is loaded until LoadWiki.
func New(dataDir string, optFns ...Option) (*TopicTrends, error) {
	if dataDir == "" {
		return nil, errors.New("topictrends: data directory required")
	}

	opts := applyOptions(optFns)

	manager := corpus.NewManager()
	loader := corpus.NewLoader(dataDir, corpus.WithMetrics(opts.metrics))

	storeOpts := []pageview.StoreOption{
		pageview.WithStoreLogger(opts.logger.Logger),
		pageview.WithStoreMetrics(opts.metrics),
	}
	if opts.pageviewCache > 0 {
		storeOpts = append(storeOpts, pageview.WithCacheSize(opts.pageviewCache))
	}
	if !opts.minDate.IsZero() {
		storeOpts = append(storeOpts, pageview.WithMinDate(opts.minDate))
	}
	if opts.today != nil {
		storeOpts = append(storeOpts, pageview.WithToday(opts.today))
	}
	store := pageview.NewStore(dataDir, storeOpts...)

	engine := query.NewEngine(store,
		query.WithTopArticles(opts.topArticles),
		query.WithMinBaseline(opts.minBaseline),
		query.WithDayParallelism(opts.dayParallelism),
	)

	tt := &TopicTrends{
		dataDir:  dataDir,
		manager:  manager,
		loader:   loader,
		store:    store,
		queries:  engine,
		titles:   titles.NewCorpusTitles(manager),
		logger:   opts.logger,
		metrics:  opts.metrics,
		titleIdx: make(map[string]titleIndexEntry),
	}

	if opts.resultCache {
		cachedOpts := []query.CachedOption{query.WithCacheMetrics(opts.metrics)}
		if opts.today != nil {
			cachedOpts = append(cachedOpts, query.WithCacheToday(opts.today))
		}
		tt.cached = query.NewCached(engine, cachedOpts...)
		tt.queries = tt.cached
	}

	if opts.embedder != nil && opts.vectorStore != nil {
		taxoOpts := []taxonomy.IndexOption{}
		if opts.collection != "" {
			taxoOpts = append(taxoOpts, taxonomy.WithCollection(opts.collection))
		}
		tt.taxo = taxonomy.NewIndex(opts.embedder, opts.vectorStore, tt.titles, taxoOpts...)
	}

	return tt, nil
}

// LoadWiki builds the corpus for wiki from the snapshot its CURRENT
// pointer names and puts it in service. Loading an already-served wiki
// replaces its corpus, like Refresh.
func (tt *TopicTrends) LoadWiki(ctx context.Context, wiki string) error {
	c, err := tt.loader.Load(ctx, wiki)
	if err != nil {
		err = translateError(err)
		tt.logger.LogCorpusLoad(ctx, wiki, "", 0, 0, err)
		return err
	}

	tt.install(c)
	tt.logger.LogCorpusLoad(ctx, wiki, c.Snapshot().Tag, c.NumArticles(), c.NumCategories(), nil)
	return nil
}

// LoadWikis loads several wikis concurrently. A failure is fatal for
// that wiki only; the others keep loading, and the returned error joins
// the per-wiki failures.
func (tt *TopicTrends) LoadWikis(ctx context.Context, wikis ...string) error {
	var g errgroup.Group
	g.SetLimit(defaultLoadConcurrency)

	errs := make([]error, len(wikis))
	for i, wiki := range wikis {
		g.Go(func() error {
			if err := tt.LoadWiki(ctx, wiki); err != nil {
				errs[i] = fmt.Errorf("%s: %w", wiki, err)
			}
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

// Refresh rebuilds the wiki's corpus from whatever snapshot CURRENT
// names now and swaps it into service. In-flight queries finish on the
// corpus they started with; on failure the previous corpus stays in
// service.
func (tt *TopicTrends) Refresh(ctx context.Context, wiki string) error {
	var previousTag string
	if prev, ok := tt.manager.Get(wiki); ok {
		previousTag = prev.Snapshot().Tag
	}

	c, err := tt.loader.Load(ctx, wiki)
	if err != nil {
		err = translateError(err)
		tt.logger.LogRefresh(ctx, wiki, previousTag, "", err)
		return err
	}

	tt.install(c)
	tt.logger.LogRefresh(ctx, wiki, previousTag, c.Snapshot().Tag, nil)
	return nil
}

// install swaps c into service. Result cache keys embed the snapshot
// tag, so entries of a replaced corpus can never be served again; the
// flush just releases their memory early.
func (tt *TopicTrends) install(c *corpus.Corpus) {
	prev := tt.manager.Swap(c)
	if prev != nil && tt.cached != nil {
		tt.cached.Flush()
	}
}

// Wikis lists the wikis currently in service.
func (tt *TopicTrends) Wikis() []string {
	return tt.manager.Wikis()
}

// Snapshot reports which snapshot is in service for wiki.
func (tt *TopicTrends) Snapshot(wiki string) (corpus.SnapshotInfo, error) {
	c, err := tt.manager.Corpus(wiki)
	if err != nil {
		return corpus.SnapshotInfo{}, translateError(err)
	}
	return c.Snapshot(), nil
}

// Health reports the anomaly counters of the load that produced the
// serving corpus: duplicate rows, dropped edges, clamped depths and
// orphaned categories.
func (tt *TopicTrends) Health(wiki string) (corpus.LoadHealth, error) {
	c, err := tt.manager.Corpus(wiki)
	if err != nil {
		return corpus.LoadHealth{}, translateError(err)
	}
	return c.Health(), nil
}

// Titles returns the corpus-backed title service, resolving titles and
// QIDs from whatever corpora are in service.
func (tt *TopicTrends) Titles() titles.TitleService {
	return tt.titles
}

// QIDByTitle resolves a page title to its QID in the given wiki.
// Articles are consulted first, then categories with their Category:
// prefix convention.
func (tt *TopicTrends) QIDByTitle(ctx context.Context, wiki, title string) (core.QID, error) {
	qid, err := tt.titles.QIDByTitle(ctx, wiki, title)
	return qid, translateError(err)
}

// TitlesByQIDs resolves QIDs to page titles in the given wiki. QIDs
// without a page there are absent from the result.
func (tt *TopicTrends) TitlesByQIDs(ctx context.Context, wiki string, qids []core.QID) (map[core.QID]string, error) {
	m, err := tt.titles.TitlesByQIDs(ctx, wiki, qids)
	return m, translateError(err)
}

// ArticleViews returns the daily view series of one article, gap-free
// over the range: days without a usable file report zero views.
func (tt *TopicTrends) ArticleViews(ctx context.Context, wiki string, qid core.QID, r core.Range) ([]SeriesPoint, error) {
	start := time.Now()

	var series []SeriesPoint
	c, err := tt.manager.Corpus(wiki)
	if err == nil {
		series, err = tt.queries.ArticleViews(ctx, c, qid, r)
	}

	err = translateError(err)
	tt.metrics.RecordQuery(query.OpArticleViews, time.Since(start), err)
	tt.logger.LogQuery(ctx, query.OpArticleViews, wiki, len(series), err)
	return series, err
}

// CategoryViews returns the daily view series of a category subtree:
// the categories within maxDepth BFS layers of the root (negative means
// unbounded), every member article counted once per day no matter how
// many subtree memberships it has.
func (tt *TopicTrends) CategoryViews(ctx context.Context, wiki string, qid core.QID, r core.Range, maxDepth int) ([]SeriesPoint, error) {
	start := time.Now()

	var series []SeriesPoint
	c, err := tt.manager.Corpus(wiki)
	if err == nil {
		series, err = tt.queries.CategoryViews(ctx, c, qid, r, maxDepth)
	}

	err = translateError(err)
	tt.metrics.RecordQuery(query.OpCategoryViews, time.Since(start), err)
	tt.logger.LogQuery(ctx, query.OpCategoryViews, wiki, len(series), err)
	return series, err
}

// TopCategories returns the topN categories by direct member views over
// the range, each with its top articles. Ordering is views descending;
// ties keep the earlier-loaded category.
func (tt *TopicTrends) TopCategories(ctx context.Context, wiki string, r core.Range, topN int) ([]CategoryTrend, error) {
	start := time.Now()

	var trends []CategoryTrend
	c, err := tt.manager.Corpus(wiki)
	if err == nil {
		trends, err = tt.queries.TopCategories(ctx, c, r, topN)
	}

	err = translateError(err)
	tt.metrics.RecordQuery(query.OpTopCategories, time.Since(start), err)
	tt.logger.LogQuery(ctx, query.OpTopCategories, wiki, len(trends), err)
	return trends, err
}

// TopCategoriesRollup is TopCategories with subtree semantics: each
// category's score additionally includes its descendants', propagated
// level-wise up the graph, so broad parent categories surface.
func (tt *TopicTrends) TopCategoriesRollup(ctx context.Context, wiki string, r core.Range, topN int) ([]CategoryTrend, error) {
	start := time.Now()

	var trends []CategoryTrend
	c, err := tt.manager.Corpus(wiki)
	if err == nil {
		trends, err = tt.queries.TopCategoriesRollup(ctx, c, r, topN)
	}

	err = translateError(err)
	tt.metrics.RecordQuery(query.OpTopCategoriesRollup, time.Since(start), err)
	tt.logger.LogQuery(ctx, query.OpTopCategoriesRollup, wiki, len(trends), err)
	return trends, err
}

// TopArticles returns the k most viewed articles inside a category
// subtree over the range.
func (tt *TopicTrends) TopArticles(ctx context.Context, wiki string, qid core.QID, r core.Range, maxDepth, k int) ([]ArticleRank, error) {
	start := time.Now()

	var ranks []ArticleRank
	c, err := tt.manager.Corpus(wiki)
	if err == nil {
		ranks, err = tt.queries.TopArticles(ctx, c, qid, r, maxDepth, k)
	}

	err = translateError(err)
	tt.metrics.RecordQuery(query.OpTopArticles, time.Since(start), err)
	tt.logger.LogQuery(ctx, query.OpTopArticles, wiki, len(ranks), err)
	return ranks, err
}

// DeltaCategories ranks categories by the percentage change of their
// views between a baseline and an impact range. Categories below the
// baseline floor are excluded; ordering is |delta| descending, ties by
// larger impact views.
func (tt *TopicTrends) DeltaCategories(ctx context.Context, wiki string, baseline, impact core.Range, limit int) ([]CategoryDelta, error) {
	start := time.Now()

	var deltas []CategoryDelta
	c, err := tt.manager.Corpus(wiki)
	if err == nil {
		deltas, err = tt.queries.DeltaCategories(ctx, c, baseline, impact, limit)
	}

	err = translateError(err)
	tt.metrics.RecordQuery(query.OpDeltaCategories, time.Since(start), err)
	tt.logger.LogQuery(ctx, query.OpDeltaCategories, wiki, len(deltas), err)
	return deltas, err
}

// DeltaArticles is DeltaCategories restricted to the articles of one
// category subtree, ranked article by article.
func (tt *TopicTrends) DeltaArticles(ctx context.Context, wiki string, qid core.QID, baseline, impact core.Range, maxDepth, limit int) ([]ArticleDelta, error) {
	start := time.Now()

	var deltas []ArticleDelta
	c, err := tt.manager.Corpus(wiki)
	if err == nil {
		deltas, err = tt.queries.DeltaArticles(ctx, c, qid, baseline, impact, maxDepth, limit)
	}

	err = translateError(err)
	tt.metrics.RecordQuery(query.OpDeltaArticles, time.Since(start), err)
	tt.logger.LogQuery(ctx, query.OpDeltaArticles, wiki, len(deltas), err)
	return deltas, err
}

// SearchCategories finds categories semantically matching an English
// query and projects them into targetWiki by QID, dropping hits below
// threshold and hits without a page in the target. Requires
// WithSemanticSearch.
func (tt *TopicTrends) SearchCategories(ctx context.Context, queryText, targetWiki string, threshold float32, limit int) ([]CategoryMatch, error) {
	start := time.Now()

	var matches []CategoryMatch
	err := ErrSemanticDisabled
	if tt.taxo != nil {
		matches, err = tt.taxo.SearchCategories(ctx, queryText, targetWiki, threshold, limit)
	}

	err = translateError(err)
	tt.metrics.RecordQuery(opSearchCategories, time.Since(start), err)
	tt.logger.LogQuery(ctx, opSearchCategories, targetWiki, len(matches), err)
	return matches, err
}

// IndexTaxonomy embeds every category of the wiki's serving corpus into
// the vector store, batch by batch. The wiki should be enwiki: queries
// are encoded in English and projected into other wikis at search time.
// Requires WithSemanticSearch.
func (tt *TopicTrends) IndexTaxonomy(ctx context.Context, wiki string) error {
	if tt.taxo == nil {
		return ErrSemanticDisabled
	}

	categories := 0
	c, err := tt.manager.Corpus(wiki)
	if err == nil {
		categories = c.NumCategories()
		err = tt.taxo.Index(ctx, c)
	}

	err = translateError(err)
	tt.logger.LogTaxonomyIndex(ctx, wiki, categories, err)
	return err
}

// SearchCategoryTitles finds categories whose title matches the query
// lexically: exact titles score highest, then all-token matches, then
// prefix matches. It needs no external backends.
func (tt *TopicTrends) SearchCategoryTitles(ctx context.Context, wiki, queryText string, limit int) ([]TitleMatch, error) {
	c, err := tt.manager.Corpus(wiki)
	if err != nil {
		return nil, translateError(err)
	}

	ix, err := tt.titleIndex(ctx, c)
	if err != nil {
		return nil, translateError(err)
	}
	return ix.Search(queryText, limit), nil
}

// titleIndex returns the lexical index over c's categories, building
// it on first use. Builds run under the lock, so concurrent first
// callers wait for one build instead of racing their own.
func (tt *TopicTrends) titleIndex(ctx context.Context, c *corpus.Corpus) (*titleindex.Index, error) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	entry, ok := tt.titleIdx[c.Wiki()]
	if ok && entry.tag == c.Snapshot().Tag {
		return entry.index, nil
	}

	ix, err := titleindex.Build(ctx, c)
	if err != nil {
		return nil, err
	}

	tt.titleIdx[c.Wiki()] = titleIndexEntry{tag: c.Snapshot().Tag, index: ix}
	return ix, nil
}

// Close drops the memory-mapped pageview files. Borrowed day views of
// in-flight queries stay valid until they finish.
func (tt *TopicTrends) Close() error {
	if tt == nil {
		return nil
	}
	return tt.store.Close()
}
