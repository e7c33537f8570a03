package pageview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/monitoring"
)

var testDay = core.NewDate(2025, 1, 1)

func TestReadCount(t *testing.T) {
	data := EncodeDay([]uint64{1, 2, 3})

	n, err := ReadCount(data)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[0] = 'X'
		_, err := ReadCount(bad)
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("short header", func(t *testing.T) {
		_, err := ReadCount(data[:7])
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("payload mismatch", func(t *testing.T) {
		_, err := ReadCount(data[:len(data)-8])
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestDayPath(t *testing.T) {
	path := DayPath("/data", "enwiki", core.NewDate(2025, 3, 7))
	assert.Equal(t, filepath.Join("/data", "enwiki", "pageviews", "2025", "03", "07.bin"), path)
}

func TestStore_Day(t *testing.T) {
	dir := t.TempDir()
	views := []uint64{100, 0, 42}
	require.NoError(t, WriteDay(dir, "enwiki", testDay, views))

	s := NewStore(dir)
	defer s.Close()

	dv, ok := s.Day("enwiki", testDay, 3)
	require.True(t, ok)
	defer dv.Close()

	assert.Equal(t, 3, dv.Len())
	for i, want := range views {
		assert.Equal(t, want, dv.At(uint32(i)))
	}

	totals := make([]uint64, 3)
	dv.AddTo(totals)
	dv.AddTo(totals)
	assert.Equal(t, []uint64{200, 0, 84}, totals)
}

func TestStore_MissingDay(t *testing.T) {
	metrics := &monitoring.BasicCollector{}
	s := NewStore(t.TempDir(), WithStoreMetrics(metrics))
	defer s.Close()

	_, ok := s.Day("enwiki", testDay, 3)
	assert.False(t, ok)
	assert.Zero(t, metrics.StaleFiles.Load())
}

func TestStore_StaleDay(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDay(dir, "enwiki", testDay, make([]uint64, 1000)))

	metrics := &monitoring.BasicCollector{}
	s := NewStore(dir, WithStoreMetrics(metrics))
	defer s.Close()

	// The corpus has grown to 1200 articles; the file reads as absent.
	_, ok := s.Day("enwiki", testDay, 1200)
	assert.False(t, ok)
	assert.Equal(t, int64(1), metrics.StaleFiles.Load())
}

func TestStore_MalformedDay(t *testing.T) {
	dir := t.TempDir()
	path := DayPath(dir, "enwiki", testDay)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not a day file"), 0o644))

	metrics := &monitoring.BasicCollector{}
	s := NewStore(dir, WithStoreMetrics(metrics))
	defer s.Close()

	_, ok := s.Day("enwiki", testDay, 3)
	assert.False(t, ok)
	assert.Equal(t, int64(1), metrics.StaleFiles.Load())
}

func TestStore_CacheReuse(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDay(dir, "enwiki", testDay, []uint64{7}))

	metrics := &monitoring.BasicCollector{}
	s := NewStore(dir, WithStoreMetrics(metrics))
	defer s.Close()

	first, ok := s.Day("enwiki", testDay, 1)
	require.True(t, ok)
	first.Close()

	second, ok := s.Day("enwiki", testDay, 1)
	require.True(t, ok)
	defer second.Close()

	assert.Equal(t, uint64(7), second.At(0))
	assert.Equal(t, int64(1), metrics.PageviewHits.Load())
	assert.Equal(t, int64(1), metrics.PageviewMisses.Load())
	assert.Equal(t, 1, s.cache.len())
}

func TestStore_EvictionKeepsBorrows(t *testing.T) {
	dir := t.TempDir()
	day2 := testDay.Next()
	require.NoError(t, WriteDay(dir, "enwiki", testDay, []uint64{11}))
	require.NoError(t, WriteDay(dir, "enwiki", day2, []uint64{22}))

	s := NewStore(dir, WithCacheSize(1))
	defer s.Close()

	borrowed, ok := s.Day("enwiki", testDay, 1)
	require.True(t, ok)

	// Filling the one-slot cache evicts the first day while it is
	// still borrowed; the borrow must keep reading valid data.
	other, ok := s.Day("enwiki", day2, 1)
	require.True(t, ok)
	defer other.Close()

	assert.Equal(t, 1, s.cache.len())
	assert.Equal(t, uint64(11), borrowed.At(0))
	assert.True(t, borrowed.entry.evicted)

	borrowed.Close()
	assert.Nil(t, borrowed.entry)

	// Idempotent.
	borrowed.Close()
}

func TestStore_SnapshotSizeKeysApart(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDay(dir, "enwiki", testDay, []uint64{1, 2}))

	metrics := &monitoring.BasicCollector{}
	s := NewStore(dir, WithStoreMetrics(metrics))
	defer s.Close()

	dv, ok := s.Day("enwiki", testDay, 2)
	require.True(t, ok)
	dv.Close()

	// A corpus with a different article count must not see the cached
	// vector of the old snapshot.
	_, ok = s.Day("enwiki", testDay, 3)
	assert.False(t, ok)
	assert.Equal(t, int64(1), metrics.StaleFiles.Load())
}

func TestStore_ValidateRange(t *testing.T) {
	today := core.NewDate(2025, 6, 30)
	s := NewStore(t.TempDir(),
		WithMinDate(core.NewDate(2020, 1, 1)),
		WithToday(func() core.Date { return today }),
	)
	defer s.Close()

	tests := []struct {
		name    string
		r       core.Range
		wantErr bool
	}{
		{"inside", core.NewRange(core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31)), false},
		{"empty", core.NewRange(core.NewDate(2025, 1, 2), core.NewDate(2025, 1, 1)), false},
		{"before min", core.NewRange(core.NewDate(2019, 12, 31), core.NewDate(2025, 1, 1)), true},
		{"after today", core.NewRange(core.NewDate(2025, 6, 1), core.NewDate(2025, 7, 1)), true},
		{"today itself", core.NewRange(today, today), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateRange("enwiki", tt.r)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var rangeErr *DateRangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, "enwiki", rangeErr.Wiki)
			assert.Equal(t, today, rangeErr.Max)
		})
	}
}
