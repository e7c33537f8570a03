package topictrends_bench_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/santhoshtr/topictrends"
	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/pageview"
	"github.com/santhoshtr/topictrends/testutil"
)

const (
	benchWiki   = "enwiki"
	rootQID     = core.QID(9)
	catBase     = 100
	articleBase = 1_000_000
)

// benchToday keeps the fixture dates servable regardless of wall time.
func benchToday() core.Date { return core.NewDate(2025, 12, 31) }

// buildBenchWiki writes a snapshot of nArticles spread over nCats topic
// categories under a single portal root, plus nDays of Zipf-distributed
// day files, and returns the covered date range.
func buildBenchWiki(b *testing.B, dir string, nArticles, nCats, nDays int) core.Range {
	b.Helper()

	bld := testutil.NewCorpusBuilder(benchWiki).Category(rootQID, "Portal_everything")
	for j := range nCats {
		bld.Category(core.QID(catBase+j), fmt.Sprintf("Topic_%04d", j))
		bld.Subcategory(rootQID, core.QID(catBase+j))
	}
	for i := range nArticles {
		qid := core.QID(articleBase + i)
		bld.Article(qid, fmt.Sprintf("Article_%07d", i))
		bld.Member(qid, core.QID(catBase+i%nCats))
	}
	if err := bld.WriteSnapshot(dir); err != nil {
		b.Fatal(err)
	}

	rng := testutil.NewRNG(42)
	from := core.NewDate(2025, 1, 1)
	day := from
	to := from
	for range nDays {
		if err := pageview.WriteDay(dir, benchWiki, day, rng.ZipfViews(nArticles, 1.0, 1_000_000)); err != nil {
			b.Fatal(err)
		}
		to = day
		day = day.Next()
	}

	return core.NewRange(from, to)
}

// openBenchEngine builds a fixture of the given shape and returns a
// loaded engine over it.
func openBenchEngine(b *testing.B, nArticles, nCats, nDays int, opts ...topictrends.Option) (*topictrends.TopicTrends, core.Range) {
	b.Helper()

	dir := b.TempDir()
	r := buildBenchWiki(b, dir, nArticles, nCats, nDays)

	opts = append([]topictrends.Option{topictrends.WithToday(benchToday)}, opts...)
	tt, err := topictrends.New(dir, opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { tt.Close() })

	if err := tt.LoadWiki(context.Background(), benchWiki); err != nil {
		b.Fatal(err)
	}
	return tt, r
}
