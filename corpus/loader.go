package corpus

import (
	"context"
	"errors"
	"hash/crc32"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/santhoshtr/topictrends/columnar"
	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/internal/fs"
	"github.com/santhoshtr/topictrends/monitoring"
)

// Table names of one topology snapshot.
const (
	TableArticles        = "articles"
	TableCategories      = "categories"
	TableCategoryGraph   = "category_graph"
	TableArticleCategory = "article_category"
)

// SnapshotsDirName is the per-wiki directory holding snapshot tags,
// manifests and the CURRENT pointer.
const SnapshotsDirName = "snapshots"

// Loader builds corpora from columnar snapshots under a data directory
// laid out as <dataDir>/<wiki>/snapshots/<tag>/<table>.ttc.
type Loader struct {
	dataDir string
	fs      fs.FileSystem
	logger  *slog.Logger
	metrics monitoring.Collector
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS overrides the filesystem, mainly for fault-injection tests.
func WithFS(fsys fs.FileSystem) LoaderOption {
	return func(l *Loader) { l.fs = fsys }
}

// WithLogger sets the logger for load summaries.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector monitoring.Collector) LoaderOption {
	return func(l *Loader) { l.metrics = collector }
}

// NewLoader creates a loader rooted at dataDir.
func NewLoader(dataDir string, opts ...LoaderOption) *Loader {
	l := &Loader{
		dataDir: dataDir,
		fs:      fs.Default,
		logger:  slog.New(slog.DiscardHandler),
		metrics: monitoring.NoopCollector{},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load builds the corpus for wiki from the snapshot named by CURRENT.
// Any decode or consistency error aborts this corpus only; a previously
// served corpus stays in service.
func (l *Loader) Load(ctx context.Context, wiki string) (*Corpus, error) {
	start := time.Now()

	c, err := l.load(ctx, wiki)
	l.metrics.RecordCorpusLoad(wiki, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	h := c.health
	l.reportAnomaly(wiki, monitoring.AnomalyDuplicateArticle, h.DuplicateArticles)
	l.reportAnomaly(wiki, monitoring.AnomalyDuplicateCategory, h.DuplicateCategories)
	l.reportAnomaly(wiki, monitoring.AnomalyDroppedGraphEdge, h.DroppedGraphEdges)
	l.reportAnomaly(wiki, monitoring.AnomalyDroppedLinkEdge, h.DroppedLinkEdges)
	l.reportAnomaly(wiki, monitoring.AnomalyDepthClamped, h.DepthClamped)
	l.reportAnomaly(wiki, monitoring.AnomalyOrphanCategory, int64(h.Orphans))

	l.logger.Info("corpus loaded",
		"wiki", wiki,
		"tag", c.snapshot.Tag,
		"articles", c.NumArticles(),
		"categories", c.NumCategories(),
		"graph_edges", c.graph.NumEdges(),
		"membership_edges", c.index.NumEdges(),
		"dropped_graph_edges", h.DroppedGraphEdges,
		"dropped_link_edges", h.DroppedLinkEdges,
		"max_depth", c.graph.MaxDepth(),
		"orphans", h.Orphans,
		"duration", time.Since(start),
	)

	return c, nil
}

func (l *Loader) reportAnomaly(wiki, kind string, count int64) {
	if count > 0 {
		l.metrics.RecordLoadAnomaly(wiki, kind, count)
	}
}

func (l *Loader) load(ctx context.Context, wiki string) (*Corpus, error) {
	snapshotsDir := filepath.Join(l.dataDir, wiki, SnapshotsDirName)

	store := NewManifestStore(l.fs, snapshotsDir)
	man, err := store.Load()
	if errors.Is(err, ErrNoSnapshot) {
		return nil, err
	}
	if err != nil {
		return nil, malformed(wiki, snapshotsDir, err)
	}

	c := &Corpus{
		wiki: wiki,
		snapshot: SnapshotInfo{
			Tag:      man.Tag,
			DumpDate: man.DumpDate,
			LoadedAt: time.Now(),
		},
	}

	artPages, err := l.loadNodes(ctx, c, man, TableArticles)
	if err != nil {
		return nil, err
	}

	catPages, err := l.loadNodes(ctx, c, man, TableCategories)
	if err != nil {
		return nil, err
	}

	graphEdges, droppedGraph, err := l.loadEdges(ctx, wiki, man, TableCategoryGraph,
		"parent_page_id", "child_page_id", catPages, catPages)
	if err != nil {
		return nil, err
	}
	c.health.DroppedGraphEdges = droppedGraph

	linkEdges, droppedLinks, err := l.loadEdges(ctx, wiki, man, TableArticleCategory,
		"article_page_id", "category_page_id", artPages, catPages)
	if err != nil {
		return nil, err
	}
	c.health.DroppedLinkEdges = droppedLinks

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.graph = newCategoryGraph(c.categories.Len(), graphEdges)
	c.index = newArticleCategoryIndex(c.articles.Len(), c.categories.Len(), linkEdges)

	c.health.DepthClamped = c.graph.DepthClamped()
	c.health.Orphans = c.graph.Orphans()

	return c, nil
}

// loadNodes streams one of the two node tables into a DenseIdMap and the
// transient page_id -> dense map used to resolve edges.
func (l *Loader) loadNodes(ctx context.Context, c *Corpus, man *Manifest, name string) (map[uint32]uint32, error) {
	table, path, err := l.readTable(ctx, c.wiki, man, name)
	if err != nil {
		return nil, err
	}

	pageIDs, err := table.Uint32Column("page_id")
	if err != nil {
		return nil, malformed(c.wiki, path, err)
	}

	qids, err := table.Uint32Column("qid")
	if err != nil {
		return nil, malformed(c.wiki, path, err)
	}

	titles, err := table.StringColumn("page_title")
	if err != nil {
		return nil, malformed(c.wiki, path, err)
	}

	kind := KindArticle
	if name == TableCategories {
		kind = KindCategory
	}

	ids := newDenseIdMap(kind, len(qids))
	pages := make(map[uint32]uint32, len(pageIDs))

	var duplicates int64
	for i, qid := range qids {
		dense, added := ids.add(core.QID(qid), titles[i])
		if !added {
			duplicates++
		}

		// A duplicate row still names a real page; its edges resolve to
		// the dense id of the first occurrence.
		if _, exists := pages[pageIDs[i]]; !exists {
			pages[pageIDs[i]] = dense
		}
	}

	if kind == KindArticle {
		c.articles = ids
		c.health.DuplicateArticles = duplicates
	} else {
		c.categories = ids
		c.health.DuplicateCategories = duplicates
	}

	return pages, nil
}

// loadEdges streams an edge table, resolving page ids through the node
// maps. Edges naming unknown pages are dropped and counted.
func (l *Loader) loadEdges(ctx context.Context, wiki string, man *Manifest, name, srcCol, dstCol string, srcPages, dstPages map[uint32]uint32) ([]edge, int64, error) {
	table, path, err := l.readTable(ctx, wiki, man, name)
	if err != nil {
		return nil, 0, err
	}

	srcs, err := table.Uint32Column(srcCol)
	if err != nil {
		return nil, 0, malformed(wiki, path, err)
	}

	dsts, err := table.Uint32Column(dstCol)
	if err != nil {
		return nil, 0, malformed(wiki, path, err)
	}

	edges := make([]edge, 0, len(srcs))

	var dropped int64
	for i := range srcs {
		src, ok := srcPages[srcs[i]]
		if !ok {
			dropped++
			continue
		}

		dst, ok := dstPages[dsts[i]]
		if !ok {
			dropped++
			continue
		}

		edges = append(edges, edge{src: src, dst: dst})
	}

	return edges, dropped, nil
}

func (l *Loader) readTable(ctx context.Context, wiki string, man *Manifest, name string) (*columnar.Table, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	info, ok := man.Table(name)
	if !ok {
		return nil, "", malformed(wiki, name, errMissingTable)
	}

	path := filepath.Join(l.dataDir, wiki, SnapshotsDirName, info.Path)

	data, err := fs.ReadFile(l.fs, path)
	if err != nil {
		return nil, "", malformed(wiki, path, err)
	}

	if int64(len(data)) != info.Bytes {
		return nil, "", malformed(wiki, path, errSizeMismatch)
	}

	if crc32.ChecksumIEEE(data) != info.Checksum {
		return nil, "", malformed(wiki, path, errChecksumMismatch)
	}

	table, err := columnar.Decode(data)
	if err != nil {
		return nil, "", malformed(wiki, path, err)
	}

	if table.Rows() != int(info.Rows) {
		return nil, "", malformed(wiki, path, errRowMismatch)
	}

	return table, path, nil
}
