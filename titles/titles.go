package titles

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/corpus"
)

// CategoryPrefix marks a title as naming a category page.
const CategoryPrefix = "Category:"

// TitleService resolves page titles to QIDs and back within one wiki.
type TitleService interface {
	// QIDByTitle resolves a page title. Titles carrying the "Category:"
	// prefix resolve against category pages, everything else against
	// articles. Spaces and underscores are interchangeable.
	QIDByTitle(ctx context.Context, wiki, title string) (core.QID, error)

	// TitlesByQIDs resolves a batch of QIDs to page titles. QIDs the wiki
	// has no page for are omitted from the result, not errors.
	TitlesByQIDs(ctx context.Context, wiki string, qids []core.QID) (map[core.QID]string, error)
}

// TitleNotFoundError reports a title with no page in the wiki.
type TitleNotFoundError struct {
	Wiki  string
	Title string
}

func (e *TitleNotFoundError) Error() string {
	return fmt.Sprintf("titles: no page %q in %s", e.Title, e.Wiki)
}

// CorpusTitles implements TitleService over the corpora a Manager has in
// service. The title lookup tables are built on first use per corpus and
// rebuilt after a snapshot swap; QID lookups go straight to the dense
// maps and never touch them.
type CorpusTitles struct {
	manager *corpus.Manager

	mu     sync.Mutex
	byWiki map[string]*titleLookup
}

// titleLookup is the reverse title index of one corpus generation.
type titleLookup struct {
	corpus     *corpus.Corpus
	articles   map[string]core.QID
	categories map[string]core.QID
}

// NewCorpusTitles creates a service resolving through manager.
func NewCorpusTitles(manager *corpus.Manager) *CorpusTitles {
	return &CorpusTitles{
		manager: manager,
		byWiki:  make(map[string]*titleLookup),
	}
}

// QIDByTitle implements TitleService.
func (s *CorpusTitles) QIDByTitle(ctx context.Context, wiki, title string) (core.QID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	lookup, err := s.lookup(wiki)
	if err != nil {
		return 0, err
	}

	table := lookup.articles
	if name, ok := strings.CutPrefix(title, CategoryPrefix); ok {
		table = lookup.categories
		title = name
	}

	qid, ok := table[normalizeTitle(title)]
	if !ok {
		return 0, &TitleNotFoundError{Wiki: wiki, Title: title}
	}

	return qid, nil
}

// TitlesByQIDs implements TitleService. Category pages win when a QID
// names both; in practice the two id spaces are disjoint.
func (s *CorpusTitles) TitlesByQIDs(ctx context.Context, wiki string, qids []core.QID) (map[core.QID]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := s.manager.Corpus(wiki)
	if err != nil {
		return nil, err
	}

	out := make(map[core.QID]string, len(qids))
	for _, qid := range qids {
		if dense, err := c.CategoryDense(qid); err == nil {
			out[qid] = c.CategoryTitle(dense)
			continue
		}
		if dense, err := c.ArticleDense(qid); err == nil {
			out[qid] = c.ArticleTitle(dense)
		}
	}

	return out, nil
}

// lookup returns the reverse index of the corpus currently in service,
// building it if the service swapped in a new generation.
func (s *CorpusTitles) lookup(wiki string) (*titleLookup, error) {
	c, err := s.manager.Corpus(wiki)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.byWiki[wiki]; ok && cached.corpus == c {
		return cached, nil
	}

	lookup := &titleLookup{
		corpus:     c,
		articles:   make(map[string]core.QID, c.NumArticles()),
		categories: make(map[string]core.QID, c.NumCategories()),
	}

	// First occurrence wins, mirroring the dense map build.
	for dense := uint32(0); dense < uint32(c.NumArticles()); dense++ {
		key := normalizeTitle(c.ArticleTitle(dense))
		if _, ok := lookup.articles[key]; !ok {
			lookup.articles[key] = c.ArticleQID(dense)
		}
	}
	for dense := uint32(0); dense < uint32(c.NumCategories()); dense++ {
		key := normalizeTitle(c.CategoryTitle(dense))
		if _, ok := lookup.categories[key]; !ok {
			lookup.categories[key] = c.CategoryQID(dense)
		}
	}

	s.byWiki[wiki] = lookup
	return lookup, nil
}

// normalizeTitle folds the MediaWiki convention of storing titles with
// underscores while users type spaces.
func normalizeTitle(title string) string {
	return strings.ReplaceAll(title, " ", "_")
}

var _ TitleService = (*CorpusTitles)(nil)
