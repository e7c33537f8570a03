// Package topictrends answers pageview and trending-topic queries over
// Wikipedia's category hierarchies.
//
// The engine loads, per wiki, an immutable in-memory corpus (dense id
// arenas, CSR category graph, CSR article↔category index) from columnar
// snapshot files, and reads daily view counts from memory-mapped binary
// day files. Queries resolve QIDs and date ranges against one snapshot
// end to end; a refresh builds the next corpus off to the side and swaps
// it in atomically while in-flight queries finish on the old one.
//
// # Quick Start
//
//	tt, err := topictrends.New("/srv/topictrends/data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tt.Close()
//
//	ctx := context.Background()
//	if err := tt.LoadWiki(ctx, "enwiki"); err != nil {
//	    log.Fatal(err)
//	}
//
//	week := core.NewRange(core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 7))
//	trends, err := tt.TopCategories(ctx, "enwiki", week, 20)
//
// Or let the environment decide (DATA_DIR, and optionally
// EMBEDDING_SERVER + VECTOR_STORE for semantic search):
//
//	tt, err := topictrends.FromEnv()
//
// # Queries
//
//   - ArticleViews / CategoryViews — gap-free daily series; category
//     series aggregate a whole subtree with set semantics, so an article
//     in many subcategories still counts once per day.
//   - TopCategories / TopCategoriesRollup — trending categories over a
//     range by reverse scatter, each with its top articles; the rollup
//     variant propagates subcategory scores up to their parents.
//   - DeltaCategories / DeltaArticles — percentage change between a
//     baseline and an impact range, noise-floored at 100 baseline views.
//   - TopArticles — the best articles under one category subtree.
//   - SearchCategories — semantic category search through an external
//     embedding server and vector store, projected into any wiki by QID.
//   - SearchCategoryTitles — lexical category lookup, no backends.
//
// # Data Layout
//
// Everything lives under one data directory:
//
//	<DATA_DIR>/<wiki>/snapshots/CURRENT
//	<DATA_DIR>/<wiki>/snapshots/MANIFEST-000001.json
//	<DATA_DIR>/<wiki>/snapshots/<tag>/{articles,categories,category_graph,article_category}.ttc
//	<DATA_DIR>/<wiki>/pageviews/<YYYY>/<MM>/<DD>.bin
//
// The blobstore package mirrors this tree from S3, MinIO or any BlobStore
// implementation; the engine itself only ever reads the local directory.
//
// # Errors
//
// Failures normalize to the package sentinels — ErrNotFound,
// ErrDateOutOfRange, ErrExternalUnavailable, ErrMalformed — with the
// structured cause (wiki, QID, date bounds) reachable through errors.As.
//
// # Observability
//
// Logging and metrics are off by default. Inject a Logger with
// WithLogger and a MetricsCollector with WithMetricsCollector;
// monitoring.NewPrometheusCollector provides a Prometheus-backed
// implementation.
package topictrends
