package pageview

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/internal/mmap"
	"github.com/santhoshtr/topictrends/monitoring"
)

const (
	// DefaultCacheSize bounds the number of concurrently mapped day files.
	DefaultCacheSize = 512
)

// DefaultMinDate is the first day Wikimedia pageview dumps exist for.
var DefaultMinDate = core.NewDate(2015, 7, 1)

// DateRangeError reports a requested range outside the served window.
type DateRangeError struct {
	Wiki     string
	From, To core.Date
	Min, Max core.Date
}

func (e *DateRangeError) Error() string {
	return fmt.Sprintf("pageview: range %s..%s for %s outside served window %s..%s",
		e.From, e.To, e.Wiki, e.Min, e.Max)
}

// StaleSnapshotError reports a day file written against a snapshot with
// a different article count than the one currently loaded. The store
// recovers by serving the day as all zero.
type StaleSnapshotError struct {
	Wiki           string
	Date           core.Date
	FileArticles   int
	CorpusArticles int
}

func (e *StaleSnapshotError) Error() string {
	return fmt.Sprintf("pageview: %s day %s holds %d articles, corpus has %d",
		e.Wiki, e.Date, e.FileArticles, e.CorpusArticles)
}

// Store serves day vectors from <dataDir>/<wiki>/pageviews. Mappings are
// shared through a bounded LRU; a missing day, a torn file or a file
// written against a different topology snapshot all read as an all-zero
// day, the latter two with a counter and a warning.
type Store struct {
	dataDir string
	minDate core.Date
	today   func() core.Date
	cache   *dayCache
	logger  *slog.Logger
	metrics monitoring.Collector
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCacheSize bounds the mapped-day LRU.
func WithCacheSize(n int) StoreOption {
	return func(s *Store) { s.cache = newDayCache(n) }
}

// WithMinDate sets the earliest servable day.
func WithMinDate(d core.Date) StoreOption {
	return func(s *Store) { s.minDate = d }
}

// WithStoreLogger sets the logger for stale and malformed day files.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// WithStoreMetrics sets the metrics collector.
func WithStoreMetrics(collector monitoring.Collector) StoreOption {
	return func(s *Store) { s.metrics = collector }
}

// WithToday overrides the upper range bound, for tests.
func WithToday(today func() core.Date) StoreOption {
	return func(s *Store) { s.today = today }
}

// NewStore creates a store rooted at dataDir.
func NewStore(dataDir string, opts ...StoreOption) *Store {
	s := &Store{
		dataDir: dataDir,
		minDate: DefaultMinDate,
		today:   core.Today,
		cache:   newDayCache(DefaultCacheSize),
		logger:  slog.New(slog.DiscardHandler),
		metrics: monitoring.NoopCollector{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ValidateRange rejects ranges reaching before the store's first day or
// beyond today. Empty ranges are legal and yield empty series.
func (s *Store) ValidateRange(wiki string, r core.Range) error {
	if r.Empty() {
		return nil
	}

	max := s.today()
	if r.From.Before(s.minDate) || max.Before(r.To) {
		return &DateRangeError{
			Wiki: wiki,
			From: r.From, To: r.To,
			Min: s.minDate, Max: max,
		}
	}

	return nil
}

// MinDate returns the earliest servable day.
func (s *Store) MinDate() core.Date { return s.minDate }

// Day borrows the view-count vector for one day. The second return is
// false when the day reads as all zero: the file is missing, malformed,
// or written against a snapshot with a different article count than n.
// The borrow must be closed; it stays valid until then even if the LRU
// evicts the mapping underneath.
func (s *Store) Day(wiki string, date core.Date, n int) (DayView, bool) {
	key := dayKey{wiki: wiki, date: date, n: n}

	if entry, ok := s.cache.acquire(key); ok {
		s.metrics.RecordPageviewCache(true)
		return DayView{cache: s.cache, entry: entry}, true
	}
	s.metrics.RecordPageviewCache(false)

	path := DayPath(s.dataDir, wiki, date)

	m, err := mmap.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("pageview day unreadable",
				"wiki", wiki, "date", date, "path", path, "error", err)
			s.metrics.RecordStalePageviewFile(wiki)
		}
		return DayView{}, false
	}

	count, err := ReadCount(m.Bytes())
	if err != nil {
		_ = m.Close()
		s.logger.Warn("pageview day malformed",
			"wiki", wiki, "date", date, "path", path, "error", err)
		s.metrics.RecordStalePageviewFile(wiki)
		return DayView{}, false
	}

	if count != n {
		_ = m.Close()
		s.logger.Warn("stale pageview file", "error", &StaleSnapshotError{
			Wiki: wiki, Date: date,
			FileArticles: count, CorpusArticles: n,
		})
		s.metrics.RecordStalePageviewFile(wiki)
		return DayView{}, false
	}

	_ = m.Advise(mmap.AccessSequential)

	entry := s.cache.insert(key, &dayEntry{
		mapping: m,
		payload: m.Bytes()[headerLen:],
	})

	return DayView{cache: s.cache, entry: entry}, true
}

// Close drops every cached mapping. Outstanding borrows stay valid and
// unmap on their release.
func (s *Store) Close() error {
	s.cache.purge()
	return nil
}

// DayView is a borrowed read-only day vector. The counts sit behind an
// unaligned mapping, so access decodes little-endian in place rather
// than reinterpreting the bytes.
type DayView struct {
	cache *dayCache
	entry *dayEntry
}

// At returns the view count of one article dense id.
func (v DayView) At(dense uint32) uint64 {
	return binary.LittleEndian.Uint64(v.entry.payload[8*int(dense):])
}

// Len returns the number of articles in the vector.
func (v DayView) Len() int {
	return len(v.entry.payload) / 8
}

// AddTo accumulates the whole vector into totals, which must have
// length Len.
func (v DayView) AddTo(totals []uint64) {
	payload := v.entry.payload
	for i := range totals {
		totals[i] += binary.LittleEndian.Uint64(payload[8*i:])
	}
}

// Close returns the borrow to the cache. Close is idempotent.
func (v *DayView) Close() {
	if v.entry == nil {
		return
	}
	v.cache.release(v.entry)
	v.entry = nil
	v.cache = nil
}
