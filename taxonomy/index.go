package taxonomy

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/corpus"
	"github.com/santhoshtr/topictrends/titles"
)

const (
	// EnglishWiki is the wiki whose categories populate the collection.
	// Queries are always English; only the result titles are projected
	// into other wikis.
	EnglishWiki = "enwiki"

	// DefaultCollection is the single shared category collection.
	DefaultCollection = "enwiki-categories"

	// DefaultBatchSize is the number of categories encoded and upserted
	// per round trip.
	DefaultBatchSize = 100

	// DefaultMatchThreshold is the minimum score a hit must reach.
	// Compared against the raw cosine score, unrescaled.
	DefaultMatchThreshold = 0.6
)

// CategoryMatch is one semantic search hit projected into the target
// wiki. Title equals TitleEN when the target is English.
type CategoryMatch struct {
	QID     core.QID `json:"category_qid"`
	TitleEN string   `json:"category_title_en"`
	Title   string   `json:"category_title"`
	Score   float32  `json:"match_score"`
}

// Index embeds English categories into the vector store and answers
// semantic category searches for any wiki.
type Index struct {
	embedder   EmbeddingClient
	store      VectorStore
	titles     titles.TitleService
	collection string
	batchSize  int
	logger     *slog.Logger
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithCollection overrides the collection name.
func WithCollection(name string) IndexOption {
	return func(ix *Index) { ix.collection = name }
}

// WithBatchSize overrides the indexing batch size.
func WithBatchSize(n int) IndexOption {
	return func(ix *Index) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// WithIndexLogger sets the logger for indexing progress.
func WithIndexLogger(logger *slog.Logger) IndexOption {
	return func(ix *Index) { ix.logger = logger }
}

// NewIndex creates an Index on the given backends. The title service
// is only consulted for non-English targets; pass nil when every
// search targets English.
func NewIndex(embedder EmbeddingClient, store VectorStore, titleService titles.TitleService, opts ...IndexOption) *Index {
	ix := &Index{
		embedder:   embedder,
		store:      store,
		titles:     titleService,
		collection: DefaultCollection,
		batchSize:  DefaultBatchSize,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Index embeds every category of the corpus and upserts it into the
// collection, in dense-id order, batchSize categories per round trip.
// Upserts replace by point id, so re-running after a snapshot refresh
// updates changed categories in place.
//
// The corpus should be English: queries are encoded in English and
// category titles are stored as title_en.
func (ix *Index) Index(ctx context.Context, c *corpus.Corpus) error {
	if err := ix.store.EnsureCollection(ctx, ix.collection, Dims); err != nil {
		return err
	}

	n := c.NumCategories()
	start := time.Now()

	texts := make([]string, 0, ix.batchSize)
	points := make([]Point, 0, ix.batchSize)
	for lo := 0; lo < n; lo += ix.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := min(lo+ix.batchSize, n)

		texts = texts[:0]
		for d := lo; d < hi; d++ {
			texts = append(texts, displayTitle(c.CategoryTitle(uint32(d))))
		}
		vectors, err := ix.embedder.Encode(ctx, texts, RoleDocument)
		if err != nil {
			return err
		}

		points = points[:0]
		for i, d := 0, lo; d < hi; i, d = i+1, d+1 {
			qid := c.CategoryQID(uint32(d))
			points = append(points, Point{
				ID:     uint64(qid),
				Vector: vectors[i],
				Payload: Payload{
					QID:     qid,
					TitleEN: c.CategoryTitle(uint32(d)),
				},
			})
		}
		if err := ix.store.Upsert(ctx, ix.collection, points); err != nil {
			return err
		}

		ix.logger.Debug("indexed category batch",
			slog.String("wiki", c.Wiki()),
			slog.Int("done", hi),
			slog.Int("total", n),
		)
	}

	ix.logger.Info("taxonomy index complete",
		slog.String("wiki", c.Wiki()),
		slog.String("collection", ix.collection),
		slog.Int("categories", n),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// SearchCategories encodes an English query, retrieves the nearest
// categories and projects them into the target wiki. Hits scoring
// below threshold are dropped; for non-English targets, hits whose QID
// has no page in the target wiki are dropped too. Results are ordered
// by score descending, ties by smaller QID.
func (ix *Index) SearchCategories(ctx context.Context, query, targetWiki string, threshold float32, limit int) ([]CategoryMatch, error) {
	if limit <= 0 {
		return nil, nil
	}

	vectors, err := ix.embedder.Encode(ctx, []string{query}, RoleQuery)
	if err != nil {
		return nil, err
	}
	hits, err := ix.store.Search(ctx, ix.collection, vectors[0], limit)
	if err != nil {
		return nil, err
	}

	matches := make([]CategoryMatch, 0, len(hits))
	for _, h := range hits {
		if h.Score < threshold {
			continue
		}
		qid := h.Payload.QID
		if qid == 0 {
			qid = core.QID(h.ID)
		}
		matches = append(matches, CategoryMatch{
			QID:     qid,
			TitleEN: h.Payload.TitleEN,
			Title:   h.Payload.TitleEN,
			Score:   h.Score,
		})
	}

	if targetWiki != EnglishWiki {
		matches, err = ix.project(ctx, targetWiki, matches)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].QID < matches[j].QID
	})
	return matches, nil
}

// project swaps each match's title for the target wiki's, dropping
// matches the target wiki has no page for.
func (ix *Index) project(ctx context.Context, targetWiki string, matches []CategoryMatch) ([]CategoryMatch, error) {
	if len(matches) == 0 {
		return matches, nil
	}

	qids := make([]core.QID, len(matches))
	for i, m := range matches {
		qids[i] = m.QID
	}
	resolved, err := ix.titles.TitlesByQIDs(ctx, targetWiki, qids)
	if err != nil {
		return nil, err
	}

	kept := matches[:0]
	for _, m := range matches {
		title, ok := resolved[m.QID]
		if !ok {
			continue
		}
		m.Title = title
		kept = append(kept, m)
	}
	return kept, nil
}

// displayTitle converts a stored page title to the text the encoder
// sees: MediaWiki underscores become spaces.
func displayTitle(title string) string {
	return strings.ReplaceAll(title, "_", " ")
}
