package corpus

import (
	"time"

	"github.com/santhoshtr/topictrends/core"
)

// SnapshotInfo identifies the snapshot a corpus was built from.
type SnapshotInfo struct {
	Tag      string
	DumpDate core.Date
	LoadedAt time.Time
}

// LoadHealth counts the anomalies observed while building a corpus.
// Dropped edges and duplicates are expected in real dumps; the counters
// exist so that operators notice when they spike.
type LoadHealth struct {
	DuplicateArticles   int64
	DuplicateCategories int64
	DroppedGraphEdges   int64
	DroppedLinkEdges    int64
	DepthClamped        int64
	Orphans             int
}

// Corpus is the immutable in-memory topology of one wiki snapshot:
// dense id maps for articles and categories, the category graph, and
// the article-category membership index. A corpus is never mutated
// after Load; refreshes build a new corpus and swap it in.
type Corpus struct {
	wiki       string
	articles   *DenseIdMap
	categories *DenseIdMap
	graph      *CategoryGraph
	index      *ArticleCategoryIndex
	snapshot   SnapshotInfo
	health     LoadHealth
}

// Wiki returns the wiki this corpus serves, e.g. "enwiki".
func (c *Corpus) Wiki() string { return c.wiki }

// Snapshot returns provenance for the loaded snapshot.
func (c *Corpus) Snapshot() SnapshotInfo { return c.snapshot }

// Health returns the anomaly counters recorded during the load.
func (c *Corpus) Health() LoadHealth { return c.health }

// NumArticles returns the number of distinct articles.
func (c *Corpus) NumArticles() int { return c.articles.Len() }

// NumCategories returns the number of distinct categories.
func (c *Corpus) NumCategories() int { return c.categories.Len() }

// ArticleDense resolves an article QID to its dense id.
func (c *Corpus) ArticleDense(qid core.QID) (uint32, error) {
	return c.articles.Dense(qid)
}

// CategoryDense resolves a category QID to its dense id.
func (c *Corpus) CategoryDense(qid core.QID) (uint32, error) {
	return c.categories.Dense(qid)
}

// ArticleQID returns the QID of an article dense id.
func (c *Corpus) ArticleQID(dense uint32) core.QID { return c.articles.QID(dense) }

// CategoryQID returns the QID of a category dense id.
func (c *Corpus) CategoryQID(dense uint32) core.QID { return c.categories.QID(dense) }

// ArticleTitle returns the page title of an article dense id.
func (c *Corpus) ArticleTitle(dense uint32) string { return c.articles.Title(dense) }

// CategoryTitle returns the page title of a category dense id.
func (c *Corpus) CategoryTitle(dense uint32) string { return c.categories.Title(dense) }

// Graph returns the category graph.
func (c *Corpus) Graph() *CategoryGraph { return c.graph }

// Memberships returns the article-category membership index.
func (c *Corpus) Memberships() *ArticleCategoryIndex { return c.index }
