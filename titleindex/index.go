package titleindex

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/corpus"
)

// Match tiers. Contiguity beats bag-of-words, whole beats partial.
const (
	ScoreExact       = 1.0
	ScoreAllTokens   = 0.8
	ScoreTitlePrefix = 0.6
	ScoreTokenPrefix = 0.4
)

// checkEvery is how many categories the build processes between
// cancellation checks.
const checkEvery = 1 << 16

// Match is one scored category.
type Match struct {
	QID   core.QID `json:"category_qid"`
	Title string   `json:"category_title"`
	Score float64  `json:"match_score"`
}

// titleEntry pairs a canonical title with its category for prefix scans.
type titleEntry struct {
	canonical string
	dense     uint32
}

// Index is an immutable lexical index over the category titles of one
// corpus.
type Index struct {
	corpus   *corpus.Corpus
	postings map[string]*roaring.Bitmap
	tokens   []string // sorted keys of postings
	exact    map[string]*roaring.Bitmap
	titles   []titleEntry // sorted by canonical
}

// Build tokenizes every category title of c into the index. The only
// unbounded loop checks ctx periodically, so building the index for a
// large wiki can be cancelled.
func Build(ctx context.Context, c *corpus.Corpus) (*Index, error) {
	ix := &Index{
		corpus:   c,
		postings: make(map[string]*roaring.Bitmap),
		exact:    make(map[string]*roaring.Bitmap),
	}

	m := uint32(c.NumCategories())
	ix.titles = make([]titleEntry, 0, m)

	for dense := uint32(0); dense < m; dense++ {
		if dense%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		tokens := tokenize(c.CategoryTitle(dense))
		if len(tokens) == 0 {
			continue
		}

		for _, tok := range tokens {
			bm, ok := ix.postings[tok]
			if !ok {
				bm = roaring.New()
				ix.postings[tok] = bm
			}
			bm.Add(dense)
		}

		canonical := strings.Join(tokens, " ")
		bm, ok := ix.exact[canonical]
		if !ok {
			bm = roaring.New()
			ix.exact[canonical] = bm
		}
		bm.Add(dense)

		ix.titles = append(ix.titles, titleEntry{canonical: canonical, dense: dense})
	}

	ix.tokens = make([]string, 0, len(ix.postings))
	for tok := range ix.postings {
		ix.tokens = append(ix.tokens, tok)
	}
	sort.Strings(ix.tokens)

	slices.SortFunc(ix.titles, func(a, b titleEntry) int {
		if c := strings.Compare(a.canonical, b.canonical); c != 0 {
			return c
		}
		return int(a.dense) - int(b.dense)
	})

	return ix, nil
}

// Len returns the number of indexed categories.
func (ix *Index) Len() int { return len(ix.titles) }

// Search scores categories against the query and returns up to limit
// matches, best first; ties order by smaller QID. An unmatched or empty
// query yields no matches rather than an error.
func (ix *Index) Search(query string, limit int) []Match {
	qTokens := tokenize(query)
	if len(qTokens) == 0 || limit <= 0 {
		return nil
	}
	canonical := strings.Join(qTokens, " ")

	best := make(map[uint32]float64)

	if bm, ok := ix.exact[canonical]; ok {
		markAll(best, bm, ScoreExact)
	}

	if inter := ix.intersect(qTokens); inter != nil {
		markAll(best, inter, ScoreAllTokens)
	}

	for _, entry := range ix.titleRange(canonical) {
		mark(best, entry.dense, ScoreTitlePrefix)
	}

	if partial := ix.tokenPrefix(qTokens); partial != nil {
		markAll(best, partial, ScoreTokenPrefix)
	}

	matches := make([]Match, 0, len(best))
	for dense, score := range best {
		matches = append(matches, Match{
			QID:   ix.corpus.CategoryQID(dense),
			Title: ix.corpus.CategoryTitle(dense),
			Score: score,
		})
	}

	slices.SortFunc(matches, func(a, b Match) int {
		switch {
		case a.Score != b.Score:
			if a.Score > b.Score {
				return -1
			}
			return 1
		case a.QID != b.QID:
			if a.QID < b.QID {
				return -1
			}
			return 1
		default:
			return 0
		}
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches
}

// intersect returns the categories containing every query token, nil
// when any token has no postings at all.
func (ix *Index) intersect(qTokens []string) *roaring.Bitmap {
	first, ok := ix.postings[qTokens[0]]
	if !ok {
		return nil
	}

	inter := first.Clone()
	for _, tok := range qTokens[1:] {
		bm, ok := ix.postings[tok]
		if !ok {
			return nil
		}
		inter.And(bm)
		if inter.IsEmpty() {
			return nil
		}
	}

	return inter
}

// tokenPrefix treats the last query token as partially typed: all
// earlier tokens must match exactly, the last one as a token prefix.
func (ix *Index) tokenPrefix(qTokens []string) *roaring.Bitmap {
	last := qTokens[len(qTokens)-1]

	union := roaring.New()
	for i := sort.SearchStrings(ix.tokens, last); i < len(ix.tokens); i++ {
		if !strings.HasPrefix(ix.tokens[i], last) {
			break
		}
		union.Or(ix.postings[ix.tokens[i]])
	}
	if union.IsEmpty() {
		return nil
	}

	if rest := qTokens[:len(qTokens)-1]; len(rest) > 0 {
		required := ix.intersect(rest)
		if required == nil {
			return nil
		}
		union.And(required)
		if union.IsEmpty() {
			return nil
		}
	}

	return union
}

// titleRange returns the sorted run of canonical titles starting with
// prefix.
func (ix *Index) titleRange(prefix string) []titleEntry {
	lo := sort.Search(len(ix.titles), func(i int) bool {
		return ix.titles[i].canonical >= prefix
	})

	hi := lo
	for hi < len(ix.titles) && strings.HasPrefix(ix.titles[hi].canonical, prefix) {
		hi++
	}

	return ix.titles[lo:hi]
}

func markAll(best map[uint32]float64, bm *roaring.Bitmap, score float64) {
	bm.Iterate(func(dense uint32) bool {
		mark(best, dense, score)
		return true
	})
}

func mark(best map[uint32]float64, dense uint32, score float64) {
	if score > best[dense] {
		best[dense] = score
	}
}

// tokenize lowercases and splits on the separator set MediaWiki titles
// actually use.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch r {
		case ' ', '-', '_', '&', ',', '.':
			return true
		}
		return false
	})
}
