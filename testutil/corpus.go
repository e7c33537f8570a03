package testutil

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/santhoshtr/topictrends/columnar"
	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/corpus"
	"github.com/santhoshtr/topictrends/internal/fs"
	"github.com/santhoshtr/topictrends/pageview"
)

// danglingPageID is the edge endpoint the builder emits for a QID that
// never appeared in a node table. The loader drops such edges and counts
// them, which is exactly what dropped-edge tests want to observe.
const danglingPageID = 0xFFFF_FFFF

// Page ids are synthesized from insertion order; articles and categories
// get disjoint ranges so a mixed-up edge table cannot resolve by accident.
const (
	articlePageBase  = 100_000
	categoryPageBase = 200_000
)

// page is one node table row.
type page struct {
	qid   core.QID
	title string
}

// qidPair is one edge table row, still in QID space.
type qidPair struct {
	src, dst core.QID
}

// CorpusBuilder assembles a miniature wiki and writes it to disk in the
// exact layout the loader consumes: columnar node and edge tables, a
// manifest with CURRENT pointer, and one day file per Views call.
//
// Dense ids follow insertion order: the first Article call gets article
// dense id 0, the first Category call category dense id 0. Edges naming
// a QID that was never declared become dangling page ids, which the
// loader drops and counts.
type CorpusBuilder struct {
	wiki        string
	tag         string
	dumpDate    core.Date
	compression columnar.Compression

	articles   []page
	categories []page
	graph      []qidPair
	members    []qidPair

	views map[core.Date]map[core.QID]uint64
}

// NewCorpusBuilder starts a fixture for the given wiki.
func NewCorpusBuilder(wiki string) *CorpusBuilder {
	return &CorpusBuilder{
		wiki:     wiki,
		tag:      "20250101",
		dumpDate: core.NewDate(2025, 1, 1),
		views:    make(map[core.Date]map[core.QID]uint64),
	}
}

// Tag overrides the snapshot tag (default "20250101").
func (b *CorpusBuilder) Tag(tag string) *CorpusBuilder {
	b.tag = tag
	return b
}

// DumpDate overrides the dump date recorded in the manifest.
func (b *CorpusBuilder) DumpDate(d core.Date) *CorpusBuilder {
	b.dumpDate = d
	return b
}

// Compression selects the column codec (default none).
func (b *CorpusBuilder) Compression(c columnar.Compression) *CorpusBuilder {
	b.compression = c
	return b
}

// Article declares an article. Declaring the same QID twice produces a
// duplicate row, which the loader counts as an anomaly.
func (b *CorpusBuilder) Article(qid core.QID, title string) *CorpusBuilder {
	b.articles = append(b.articles, page{qid: qid, title: title})
	return b
}

// Category declares a category.
func (b *CorpusBuilder) Category(qid core.QID, title string) *CorpusBuilder {
	b.categories = append(b.categories, page{qid: qid, title: title})
	return b
}

// Subcategory records a parent -> child edge in the category graph.
func (b *CorpusBuilder) Subcategory(parent, child core.QID) *CorpusBuilder {
	b.graph = append(b.graph, qidPair{src: parent, dst: child})
	return b
}

// Member records that article belongs to category.
func (b *CorpusBuilder) Member(article, category core.QID) *CorpusBuilder {
	b.members = append(b.members, qidPair{src: article, dst: category})
	return b
}

// Views records the view counts of one day. Articles absent from the map
// get zero views. Calling Views twice for the same date merges the maps.
func (b *CorpusBuilder) Views(d core.Date, views map[core.QID]uint64) *CorpusBuilder {
	day := b.views[d]
	if day == nil {
		day = make(map[core.QID]uint64, len(views))
		b.views[d] = day
	}
	for qid, v := range views {
		day[qid] = v
	}
	return b
}

// Build writes the snapshot and all day files under dataDir and loads
// the resulting corpus through the real loader.
func (b *CorpusBuilder) Build(dataDir string) (*corpus.Corpus, error) {
	if err := b.WriteSnapshot(dataDir); err != nil {
		return nil, err
	}
	if err := b.WriteDays(dataDir); err != nil {
		return nil, err
	}
	return corpus.NewLoader(dataDir).Load(context.Background(), b.wiki)
}

// WriteSnapshot writes the four columnar tables plus the manifest and
// CURRENT pointer under <dataDir>/<wiki>/snapshots/<tag>/.
func (b *CorpusBuilder) WriteSnapshot(dataDir string) error {
	snapshotsDir := filepath.Join(dataDir, b.wiki, corpus.SnapshotsDirName)
	if err := os.MkdirAll(filepath.Join(snapshotsDir, b.tag), 0o755); err != nil {
		return err
	}

	artPages := pageIDs(b.articles, articlePageBase)
	catPages := pageIDs(b.categories, categoryPageBase)

	tables := []struct {
		name   string
		encode func(w *columnar.Writer) error
		rows   int
	}{
		{corpus.TableArticles, func(w *columnar.Writer) error {
			return putNodes(w, b.articles, articlePageBase)
		}, len(b.articles)},
		{corpus.TableCategories, func(w *columnar.Writer) error {
			return putNodes(w, b.categories, categoryPageBase)
		}, len(b.categories)},
		{corpus.TableCategoryGraph, func(w *columnar.Writer) error {
			return putEdges(w, b.graph, "parent_page_id", "child_page_id", catPages, catPages)
		}, len(b.graph)},
		{corpus.TableArticleCategory, func(w *columnar.Writer) error {
			return putEdges(w, b.members, "article_page_id", "category_page_id", artPages, catPages)
		}, len(b.members)},
	}

	man := &corpus.Manifest{
		Wiki:     b.wiki,
		Tag:      b.tag,
		DumpDate: b.dumpDate,
	}

	for _, table := range tables {
		w := columnar.NewWriter(table.rows, b.compression)
		if err := table.encode(w); err != nil {
			return fmt.Errorf("testutil: encode %s: %w", table.name, err)
		}

		var buf bytes.Buffer
		if _, err := w.WriteTo(&buf); err != nil {
			return fmt.Errorf("testutil: write %s: %w", table.name, err)
		}

		rel := filepath.Join(b.tag, table.name+".ttc")
		if err := os.WriteFile(filepath.Join(snapshotsDir, rel), buf.Bytes(), 0o644); err != nil {
			return err
		}

		man.Tables = append(man.Tables, corpus.TableInfo{
			Name:     table.name,
			Path:     rel,
			Rows:     uint64(table.rows),
			Bytes:    int64(buf.Len()),
			Checksum: crc32.ChecksumIEEE(buf.Bytes()),
		})
	}

	return corpus.NewManifestStore(fs.Default, snapshotsDir).Save(man)
}

// WriteDays writes one day file per Views call. The vector is indexed by
// article dense id, i.e. the order of the Article calls.
func (b *CorpusBuilder) WriteDays(dataDir string) error {
	for d, day := range b.views {
		vec := make([]uint64, len(b.articles))
		for i, a := range b.articles {
			vec[i] = day[a.qid]
		}
		if err := pageview.WriteDay(dataDir, b.wiki, d, vec); err != nil {
			return err
		}
	}
	return nil
}

func putNodes(w *columnar.Writer, nodes []page, pageBase uint32) error {
	pageIDs := make([]uint32, len(nodes))
	qids := make([]uint32, len(nodes))
	titles := make([]string, len(nodes))

	for i, n := range nodes {
		pageIDs[i] = pageBase + uint32(i)
		qids[i] = uint32(n.qid)
		titles[i] = n.title
	}

	if err := w.PutUint32("page_id", pageIDs); err != nil {
		return err
	}
	if err := w.PutUint32("qid", qids); err != nil {
		return err
	}
	return w.PutString("page_title", titles)
}

func putEdges(w *columnar.Writer, edges []qidPair, srcCol, dstCol string, srcPages, dstPages map[core.QID]uint32) error {
	srcs := make([]uint32, len(edges))
	dsts := make([]uint32, len(edges))

	for i, e := range edges {
		srcs[i] = resolvePage(srcPages, e.src)
		dsts[i] = resolvePage(dstPages, e.dst)
	}

	if err := w.PutUint32(srcCol, srcs); err != nil {
		return err
	}
	return w.PutUint32(dstCol, dsts)
}

// pageIDs maps each QID to the page id of its first occurrence.
func pageIDs(nodes []page, pageBase uint32) map[core.QID]uint32 {
	pages := make(map[core.QID]uint32, len(nodes))
	for i, n := range nodes {
		if _, ok := pages[n.qid]; !ok {
			pages[n.qid] = pageBase + uint32(i)
		}
	}
	return pages
}

func resolvePage(pages map[core.QID]uint32, qid core.QID) uint32 {
	if id, ok := pages[qid]; ok {
		return id
	}
	return danglingPageID
}
