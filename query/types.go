package query

import (
	"github.com/santhoshtr/topictrends/core"
)

// SeriesPoint is one day of a gap-free view series.
type SeriesPoint struct {
	Date  core.Date `json:"date"`
	Views uint64    `json:"views"`
}

// ArticleRank is one article in a top-articles list.
type ArticleRank struct {
	QID   core.QID `json:"qid"`
	Title string   `json:"title"`
	Views uint64   `json:"views"`
}

// CategoryTrend is one trending category with its top articles.
type CategoryTrend struct {
	QID         core.QID      `json:"qid"`
	Title       string        `json:"title"`
	Views       uint64        `json:"views"`
	TopArticles []ArticleRank `json:"top_articles"`
}

// CategoryDelta compares one category's views across two ranges.
type CategoryDelta struct {
	QID      core.QID `json:"qid"`
	Title    string   `json:"title"`
	Baseline uint64   `json:"baseline_views"`
	Impact   uint64   `json:"impact_views"`
	DeltaPct float64  `json:"delta_percentage"`
	AbsDelta int64    `json:"absolute_delta"`
}

// ArticleDelta compares one article's views across two ranges.
type ArticleDelta struct {
	QID      core.QID `json:"qid"`
	Title    string   `json:"title"`
	Baseline uint64   `json:"baseline_views"`
	Impact   uint64   `json:"impact_views"`
	DeltaPct float64  `json:"delta_percentage"`
	AbsDelta int64    `json:"absolute_delta"`
}
