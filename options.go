package topictrends

import (
	"log/slog"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/query"
	"github.com/santhoshtr/topictrends/taxonomy"
)

type options struct {
	logger         *Logger
	metrics        MetricsCollector
	pageviewCache  int
	minDate        core.Date
	today          func() core.Date
	resultCache    bool
	topArticles    int
	minBaseline    uint64
	dayParallelism int
	embedder       taxonomy.EmbeddingClient
	vectorStore    taxonomy.VectorStore
	collection     string
}

// Option configures a TopicTrends instance.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := topictrends.NewJSONLogger(slog.LevelInfo)
//	tt, _ := topictrends.New(dataDir, topictrends.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector. The collector is
// shared with the corpus loader, the pageview store and the result
// cache, so one instance sees the whole pipeline.
//
// Example with the in-memory collector:
//
//	metrics := &topictrends.BasicMetricsCollector{}
//	tt, _ := topictrends.New(dataDir, topictrends.WithMetricsCollector(metrics))
//	// ... use tt ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithPageviewCacheSize bounds how many day files stay memory-mapped at
// once (default 512). Values below 1 keep the default.
func WithPageviewCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageviewCache = n
		}
	}
}

// WithMinDate sets the earliest day queries may reach. The default is
// the first day Wikimedia pageview dumps exist for, 2015-07-01.
func WithMinDate(d core.Date) Option {
	return func(o *options) {
		o.minDate = d
	}
}

// WithToday overrides the upper date bound of query validation and the
// recency tiers of the result cache. Tests use it to pin the clock.
func WithToday(today func() core.Date) Option {
	return func(o *options) {
		o.today = today
	}
}

// WithResultCache memoizes query results in a TTL cache tiered by the
// recency of the queried range. Cache keys carry the snapshot tag, so a
// refresh invalidates by construction.
func WithResultCache(enabled bool) Option {
	return func(o *options) {
		o.resultCache = enabled
	}
}

// WithTopArticles sets how many articles each trending category reports
// (default 10).
func WithTopArticles(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.topArticles = k
		}
	}
}

// WithMinBaseline sets the minimum baseline views a category or article
// needs to enter delta rankings (default 100). Zero disables the floor.
func WithMinBaseline(v uint64) Option {
	return func(o *options) {
		o.minBaseline = v
	}
}

// WithDayParallelism fans range aggregations out across n goroutines
// with per-chunk accumulators. Values below 2 keep the day loop
// sequential.
func WithDayParallelism(n int) Option {
	return func(o *options) {
		o.dayParallelism = n
	}
}

// WithSemanticSearch wires the external embedding server and vector
// store, enabling SearchCategories and IndexTaxonomy. Without it both
// return ErrSemanticDisabled.
func WithSemanticSearch(embedder taxonomy.EmbeddingClient, store taxonomy.VectorStore) Option {
	return func(o *options) {
		o.embedder = embedder
		o.vectorStore = store
	}
}

// WithCollection overrides the vector store collection name used for
// semantic search (default "enwiki-categories").
func WithCollection(name string) Option {
	return func(o *options) {
		o.collection = name
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:      NoopLogger(),
		metrics:     NoopMetricsCollector{},
		topArticles: query.DefaultTopArticles,
		minBaseline: query.DefaultMinBaseline,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
