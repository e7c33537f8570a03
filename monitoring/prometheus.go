package monitoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const promNamespace = "topictrends"

// PrometheusCollector implements Collector on top of a Prometheus
// registerer. Re-registering against the same registerer reuses the
// existing collectors, so multiple instances can share one registry.
type PrometheusCollector struct {
	corpusLoads        *prometheus.CounterVec
	corpusLoadSeconds  *prometheus.HistogramVec
	loadAnomalies      *prometheus.CounterVec
	stalePageviewFiles *prometheus.CounterVec
	pageviewCache      *prometheus.CounterVec
	queries            *prometheus.CounterVec
	querySeconds       *prometheus.HistogramVec
	queryCache         *prometheus.CounterVec
	embeddings         *prometheus.CounterVec
	embeddingSeconds   prometheus.Histogram
	embeddedTexts      prometheus.Counter
	vectorOps          *prometheus.CounterVec
	vectorOpSeconds    *prometheus.HistogramVec
}

// NewPrometheusCollector registers the topictrends metrics with reg and
// returns the collector. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &PrometheusCollector{}

	var err error

	p.corpusLoads, err = newCounterVec(reg, "corpus_loads_total",
		"Snapshot load attempts by wiki and status", "wiki", "status")
	if err != nil {
		return nil, err
	}

	p.corpusLoadSeconds, err = newHistogramVec(reg, "corpus_load_seconds",
		"Snapshot load duration", prometheus.ExponentialBuckets(0.1, 2, 12), "wiki")
	if err != nil {
		return nil, err
	}

	p.loadAnomalies, err = newCounterVec(reg, "load_anomalies_total",
		"Rows and edges repaired or dropped during snapshot loads", "wiki", "kind")
	if err != nil {
		return nil, err
	}

	p.stalePageviewFiles, err = newCounterVec(reg, "stale_pageview_files_total",
		"Day files skipped because their article count disagrees with the corpus", "wiki")
	if err != nil {
		return nil, err
	}

	p.pageviewCache, err = newCounterVec(reg, "pageview_cache_total",
		"Day-file mapping cache lookups", "result")
	if err != nil {
		return nil, err
	}

	p.queries, err = newCounterVec(reg, "queries_total",
		"Query operations by kind and status", "kind", "status")
	if err != nil {
		return nil, err
	}

	p.querySeconds, err = newHistogramVec(reg, "query_seconds",
		"Query duration by kind", prometheus.ExponentialBuckets(0.0005, 2, 16), "kind")
	if err != nil {
		return nil, err
	}

	p.queryCache, err = newCounterVec(reg, "query_cache_total",
		"Result cache lookups by kind", "kind", "result")
	if err != nil {
		return nil, err
	}

	p.embeddings, err = newCounterVec(reg, "embeddings_total",
		"Embedding server round trips", "status")
	if err != nil {
		return nil, err
	}

	p.embeddingSeconds, err = newHistogram(reg, "embedding_seconds",
		"Embedding server round trip duration", prometheus.ExponentialBuckets(0.01, 2, 12))
	if err != nil {
		return nil, err
	}

	p.embeddedTexts, err = newCounter(reg, "embedded_texts_total",
		"Texts sent to the embedding server")
	if err != nil {
		return nil, err
	}

	p.vectorOps, err = newCounterVec(reg, "vector_ops_total",
		"Vector store round trips by operation and status", "op", "status")
	if err != nil {
		return nil, err
	}

	p.vectorOpSeconds, err = newHistogramVec(reg, "vector_op_seconds",
		"Vector store round trip duration", prometheus.ExponentialBuckets(0.001, 2, 14), "op")
	if err != nil {
		return nil, err
	}

	return p, nil
}

// MustNewPrometheusCollector is like NewPrometheusCollector but panics
// on registration errors.
func MustNewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	p, err := NewPrometheusCollector(reg)
	if err != nil {
		panic(err)
	}
	return p
}

// RecordCorpusLoad implements Collector.
func (p *PrometheusCollector) RecordCorpusLoad(wiki string, duration time.Duration, err error) {
	p.corpusLoads.WithLabelValues(wiki, statusOf(err)).Inc()
	p.corpusLoadSeconds.WithLabelValues(wiki).Observe(duration.Seconds())
}

// RecordLoadAnomaly implements Collector.
func (p *PrometheusCollector) RecordLoadAnomaly(wiki, kind string, count int64) {
	p.loadAnomalies.WithLabelValues(wiki, kind).Add(float64(count))
}

// RecordStalePageviewFile implements Collector.
func (p *PrometheusCollector) RecordStalePageviewFile(wiki string) {
	p.stalePageviewFiles.WithLabelValues(wiki).Inc()
}

// RecordPageviewCache implements Collector.
func (p *PrometheusCollector) RecordPageviewCache(hit bool) {
	p.pageviewCache.WithLabelValues(cacheResult(hit)).Inc()
}

// RecordQuery implements Collector.
func (p *PrometheusCollector) RecordQuery(kind string, duration time.Duration, err error) {
	p.queries.WithLabelValues(kind, statusOf(err)).Inc()
	p.querySeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordQueryCache implements Collector.
func (p *PrometheusCollector) RecordQueryCache(kind string, hit bool) {
	p.queryCache.WithLabelValues(kind, cacheResult(hit)).Inc()
}

// RecordEmbedding implements Collector.
func (p *PrometheusCollector) RecordEmbedding(texts int, duration time.Duration, err error) {
	p.embeddings.WithLabelValues(statusOf(err)).Inc()
	p.embeddingSeconds.Observe(duration.Seconds())
	p.embeddedTexts.Add(float64(texts))
}

// RecordVectorOp implements Collector.
func (p *PrometheusCollector) RecordVectorOp(op string, duration time.Duration, err error) {
	p.vectorOps.WithLabelValues(op, statusOf(err)).Inc()
	p.vectorOpSeconds.WithLabelValues(op).Observe(duration.Seconds())
}

// Ensure PrometheusCollector implements Collector.
var _ Collector = (*PrometheusCollector)(nil)

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func cacheResult(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func newCounter(reg prometheus.Registerer, name, help string) (prometheus.Counter, error) {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	})
	registered, err := register(reg, name, c)
	if err != nil {
		return nil, err
	}
	return registered.(prometheus.Counter), nil
}

func newCounterVec(reg prometheus.Registerer, name, help string, labels ...string) (*prometheus.CounterVec, error) {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	}, labels)
	registered, err := register(reg, name, c)
	if err != nil {
		return nil, err
	}
	return registered.(*prometheus.CounterVec), nil
}

func newHistogram(reg prometheus.Registerer, name, help string, buckets []float64) (prometheus.Histogram, error) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
	registered, err := register(reg, name, h)
	if err != nil {
		return nil, err
	}
	return registered.(prometheus.Histogram), nil
}

func newHistogramVec(reg prometheus.Registerer, name, help string, buckets []float64, labels ...string) (*prometheus.HistogramVec, error) {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
	registered, err := register(reg, name, h)
	if err != nil {
		return nil, err
	}
	return registered.(*prometheus.HistogramVec), nil
}

func register(reg prometheus.Registerer, name string, c prometheus.Collector) (prometheus.Collector, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector, nil
		}
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	return c, nil
}
