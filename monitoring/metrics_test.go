package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicCollector(t *testing.T) {
	var b BasicCollector

	b.RecordCorpusLoad("enwiki", 2*time.Second, nil)
	b.RecordCorpusLoad("dewiki", 4*time.Second, errors.New("boom"))
	b.RecordLoadAnomaly("enwiki", AnomalyDroppedGraphEdge, 17)
	b.RecordStalePageviewFile("enwiki")
	b.RecordPageviewCache(true)
	b.RecordPageviewCache(false)
	b.RecordQuery("top_categories", 10*time.Millisecond, nil)
	b.RecordQuery("top_categories", 30*time.Millisecond, errors.New("boom"))
	b.RecordQueryCache("top_categories", true)
	b.RecordEmbedding(100, time.Second, nil)
	b.RecordVectorOp(VectorOpSearch, time.Millisecond, nil)

	stats := b.GetStats()
	assert.Equal(t, int64(2), stats.LoadCount)
	assert.Equal(t, int64(1), stats.LoadErrors)
	assert.Equal(t, (3 * time.Second).Nanoseconds(), stats.LoadAvgNanos)
	assert.Equal(t, int64(17), stats.AnomalyCount)
	assert.Equal(t, int64(1), stats.StaleFiles)
	assert.Equal(t, int64(1), stats.PageviewHits)
	assert.Equal(t, int64(1), stats.PageviewMisses)
	assert.Equal(t, int64(2), stats.QueryCount)
	assert.Equal(t, int64(1), stats.QueryErrors)
	assert.Equal(t, (20 * time.Millisecond).Nanoseconds(), stats.QueryAvgNanos)
	assert.Equal(t, int64(1), stats.QueryCacheHits)
	assert.Equal(t, int64(100), stats.EmbeddedTexts)
	assert.Equal(t, int64(1), stats.VectorOpCount)
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()

	p, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	p.RecordCorpusLoad("enwiki", time.Second, nil)
	p.RecordCorpusLoad("enwiki", time.Second, errors.New("boom"))
	p.RecordLoadAnomaly("enwiki", AnomalyDepthClamped, 3)
	p.RecordQuery("delta_categories", time.Millisecond, nil)
	p.RecordQueryCache("delta_categories", false)
	p.RecordVectorOp(VectorOpUpsert, time.Millisecond, nil)

	loads := p.corpusLoads.WithLabelValues("enwiki", "success")
	assert.Equal(t, 1.0, testutil.ToFloat64(loads))

	failed := p.corpusLoads.WithLabelValues("enwiki", "error")
	assert.Equal(t, 1.0, testutil.ToFloat64(failed))

	anomalies := p.loadAnomalies.WithLabelValues("enwiki", AnomalyDepthClamped)
	assert.Equal(t, 3.0, testutil.ToFloat64(anomalies))

	misses := p.queryCache.WithLabelValues("delta_categories", "miss")
	assert.Equal(t, 1.0, testutil.ToFloat64(misses))
}

func TestPrometheusCollector_Reregister(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	second, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	// Both instances share the registered collectors.
	first.RecordStalePageviewFile("enwiki")
	second.RecordStalePageviewFile("enwiki")

	stale := first.stalePageviewFiles.WithLabelValues("enwiki")
	assert.Equal(t, 2.0, testutil.ToFloat64(stale))
}
