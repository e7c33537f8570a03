package query

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
)

func TestSelectTop(t *testing.T) {
	scores := []uint64{0, 50, 10, 90, 50, 0, 70}

	t.Run("best first", func(t *testing.T) {
		got := selectTop(scores, 3)
		assert.Equal(t, []rankedItem{
			{dense: 3, score: 90},
			{dense: 6, score: 70},
			{dense: 1, score: 50},
		}, got)
	})

	t.Run("ties break on smaller dense id", func(t *testing.T) {
		got := selectTop(scores, 4)
		assert.Equal(t, rankedItem{dense: 1, score: 50}, got[2])
		assert.Equal(t, rankedItem{dense: 4, score: 50}, got[3])
	})

	t.Run("zero scores never qualify", func(t *testing.T) {
		got := selectTop(scores, 100)
		assert.Len(t, got, 5)
		for _, item := range got {
			assert.NotZero(t, item.score)
		}
	})

	t.Run("k zero or negative", func(t *testing.T) {
		assert.Nil(t, selectTop(scores, 0))
		assert.Nil(t, selectTop(scores, -1))
	})

	t.Run("all zero", func(t *testing.T) {
		assert.Empty(t, selectTop([]uint64{0, 0, 0}, 2))
	})
}

func TestSelectTopIn(t *testing.T) {
	scores := []uint64{5, 40, 0, 90, 20}

	got := selectTopIn(scores, []uint32{0, 2, 3}, 2)
	assert.Equal(t, []rankedItem{
		{dense: 3, score: 90},
		{dense: 0, score: 5},
	}, got)

	assert.Empty(t, selectTopIn(scores, nil, 2))
}

func TestSelectTopBitmap(t *testing.T) {
	scores := []uint64{5, 40, 0, 90, 20}

	incl := roaring.New()
	incl.AddMany([]uint32{1, 2, 4})

	got := selectTopBitmap(scores, incl, 10)
	assert.Equal(t, []rankedItem{
		{dense: 1, score: 40},
		{dense: 4, score: 20},
	}, got)
}

func TestRankedHeap_OfferBeyondCapacity(t *testing.T) {
	h := &rankedHeap{}
	for dense, score := range []uint64{10, 30, 20, 40, 25} {
		h.offer(2, rankedItem{dense: uint32(dense), score: score})
	}

	assert.Equal(t, []rankedItem{
		{dense: 3, score: 40},
		{dense: 1, score: 30},
	}, h.drain())
}

func TestDeltaEntry_Outranks(t *testing.T) {
	tests := []struct {
		name string
		a, b deltaEntry
		want bool
	}{
		{
			name: "larger absolute percentage wins",
			a:    deltaEntry{pct: -80, impact: 10},
			b:    deltaEntry{pct: 60, impact: 999},
			want: true,
		},
		{
			name: "equal percentage falls back to impact",
			a:    deltaEntry{pct: 50, impact: 400},
			b:    deltaEntry{pct: -50, impact: 200},
			want: true,
		},
		{
			name: "full tie falls back to dense id",
			a:    deltaEntry{pct: 50, impact: 100, dense: 1},
			b:    deltaEntry{pct: 50, impact: 100, dense: 2},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.outranks(tt.b))
			assert.False(t, tt.b.outranks(tt.a))
		})
	}
}
