package monitoring

import (
	"sync/atomic"
	"time"
)

// Load anomaly kinds reported through Collector.RecordLoadAnomaly.
const (
	AnomalyDuplicateArticle  = "duplicate_article"
	AnomalyDuplicateCategory = "duplicate_category"
	AnomalyDroppedGraphEdge  = "dropped_graph_edge"
	AnomalyDroppedLinkEdge   = "dropped_link_edge"
	AnomalyDepthClamped      = "depth_clamped"
	AnomalyOrphanCategory    = "orphan_category"
)

// Vector store operation names reported through Collector.RecordVectorOp.
const (
	VectorOpEnsure = "ensure"
	VectorOpUpsert = "upsert"
	VectorOpSearch = "search"
)

// Collector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; a
// Prometheus implementation ships with this package.
type Collector interface {
	// RecordCorpusLoad is called after each snapshot load attempt.
	// duration is the total time taken, err is nil if successful.
	RecordCorpusLoad(wiki string, duration time.Duration, err error)

	// RecordLoadAnomaly reports rows or edges a load had to repair or
	// drop. kind is one of the Anomaly constants.
	RecordLoadAnomaly(wiki, kind string, count int64)

	// RecordStalePageviewFile is called when a day file disagrees with
	// the serving corpus and is treated as missing.
	RecordStalePageviewFile(wiki string)

	// RecordPageviewCache is called on each day-file lookup.
	RecordPageviewCache(hit bool)

	// RecordQuery is called after each query operation. kind names the
	// operation ("article_views", "top_categories", ...).
	RecordQuery(kind string, duration time.Duration, err error)

	// RecordQueryCache is called when a query consults the result cache.
	RecordQueryCache(kind string, hit bool)

	// RecordEmbedding is called after each embedding server round trip.
	// texts is the batch size attempted.
	RecordEmbedding(texts int, duration time.Duration, err error)

	// RecordVectorOp is called after each vector store round trip on
	// behalf of the taxonomy index. op is one of the VectorOp constants.
	RecordVectorOp(op string, duration time.Duration, err error)
}

// NoopCollector is a no-op implementation of Collector.
// Use this when metrics collection is not needed.
type NoopCollector struct{}

func (NoopCollector) RecordCorpusLoad(string, time.Duration, error) {}
func (NoopCollector) RecordLoadAnomaly(string, string, int64)       {}
func (NoopCollector) RecordStalePageviewFile(string)                {}
func (NoopCollector) RecordPageviewCache(bool)                      {}
func (NoopCollector) RecordQuery(string, time.Duration, error)      {}
func (NoopCollector) RecordQueryCache(string, bool)                 {}
func (NoopCollector) RecordEmbedding(int, time.Duration, error)     {}
func (NoopCollector) RecordVectorOp(string, time.Duration, error)   {}

// BasicCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicCollector struct {
	LoadCount      atomic.Int64
	LoadErrors     atomic.Int64
	LoadTotalNanos atomic.Int64

	AnomalyCount atomic.Int64
	StaleFiles   atomic.Int64

	PageviewHits   atomic.Int64
	PageviewMisses atomic.Int64

	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryTotalNanos atomic.Int64

	QueryCacheHits   atomic.Int64
	QueryCacheMisses atomic.Int64

	EmbeddingCount  atomic.Int64
	EmbeddingErrors atomic.Int64
	EmbeddedTexts   atomic.Int64

	VectorOpCount  atomic.Int64
	VectorOpErrors atomic.Int64
}

// RecordCorpusLoad implements Collector.
func (b *BasicCollector) RecordCorpusLoad(wiki string, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordLoadAnomaly implements Collector.
func (b *BasicCollector) RecordLoadAnomaly(wiki, kind string, count int64) {
	b.AnomalyCount.Add(count)
}

// RecordStalePageviewFile implements Collector.
func (b *BasicCollector) RecordStalePageviewFile(wiki string) {
	b.StaleFiles.Add(1)
}

// RecordPageviewCache implements Collector.
func (b *BasicCollector) RecordPageviewCache(hit bool) {
	if hit {
		b.PageviewHits.Add(1)
	} else {
		b.PageviewMisses.Add(1)
	}
}

// RecordQuery implements Collector.
func (b *BasicCollector) RecordQuery(kind string, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordQueryCache implements Collector.
func (b *BasicCollector) RecordQueryCache(kind string, hit bool) {
	if hit {
		b.QueryCacheHits.Add(1)
	} else {
		b.QueryCacheMisses.Add(1)
	}
}

// RecordEmbedding implements Collector.
func (b *BasicCollector) RecordEmbedding(texts int, duration time.Duration, err error) {
	b.EmbeddingCount.Add(1)
	b.EmbeddedTexts.Add(int64(texts))
	if err != nil {
		b.EmbeddingErrors.Add(1)
	}
}

// RecordVectorOp implements Collector.
func (b *BasicCollector) RecordVectorOp(op string, duration time.Duration, err error) {
	b.VectorOpCount.Add(1)
	if err != nil {
		b.VectorOpErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicCollector) GetStats() BasicStats {
	return BasicStats{
		LoadCount:        b.LoadCount.Load(),
		LoadErrors:       b.LoadErrors.Load(),
		LoadAvgNanos:     avgNanos(&b.LoadCount, &b.LoadTotalNanos),
		AnomalyCount:     b.AnomalyCount.Load(),
		StaleFiles:       b.StaleFiles.Load(),
		PageviewHits:     b.PageviewHits.Load(),
		PageviewMisses:   b.PageviewMisses.Load(),
		QueryCount:       b.QueryCount.Load(),
		QueryErrors:      b.QueryErrors.Load(),
		QueryAvgNanos:    avgNanos(&b.QueryCount, &b.QueryTotalNanos),
		QueryCacheHits:   b.QueryCacheHits.Load(),
		QueryCacheMisses: b.QueryCacheMisses.Load(),
		EmbeddingCount:   b.EmbeddingCount.Load(),
		EmbeddingErrors:  b.EmbeddingErrors.Load(),
		EmbeddedTexts:    b.EmbeddedTexts.Load(),
		VectorOpCount:    b.VectorOpCount.Load(),
		VectorOpErrors:   b.VectorOpErrors.Load(),
	}
}

func avgNanos(count, total *atomic.Int64) int64 {
	c := count.Load()
	if c == 0 {
		return 0
	}
	return total.Load() / c
}

// Ensure the built-in collectors implement Collector.
var (
	_ Collector = NoopCollector{}
	_ Collector = (*BasicCollector)(nil)
)

// BasicStats is a snapshot of BasicCollector state.
type BasicStats struct {
	LoadCount        int64
	LoadErrors       int64
	LoadAvgNanos     int64
	AnomalyCount     int64
	StaleFiles       int64
	PageviewHits     int64
	PageviewMisses   int64
	QueryCount       int64
	QueryErrors      int64
	QueryAvgNanos    int64
	QueryCacheHits   int64
	QueryCacheMisses int64
	EmbeddingCount   int64
	EmbeddingErrors  int64
	EmbeddedTexts    int64
	VectorOpCount    int64
	VectorOpErrors   int64
}
