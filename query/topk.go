package query

import (
	"container/heap"

	"github.com/RoaringBitmap/roaring/v2"
)

// rankedItem is one candidate in a bounded top-k selection.
type rankedItem struct {
	dense uint32
	score uint64
}

// outranks reports whether a places before b: higher score first, the
// smaller dense id on ties.
func (a rankedItem) outranks(b rankedItem) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.dense < b.dense
}

// Compile time check to ensure rankedHeap satisfies the heap interface.
var _ heap.Interface = (*rankedHeap)(nil)

// rankedHeap is a bounded min-heap: the root is the weakest kept item,
// so each new candidate either displaces the root or is discarded.
type rankedHeap struct {
	items []rankedItem
}

func (h *rankedHeap) Len() int { return len(h.items) }

func (h *rankedHeap) Less(i, j int) bool {
	return h.items[j].outranks(h.items[i])
}

func (h *rankedHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *rankedHeap) Push(x any) {
	h.items = append(h.items, x.(rankedItem))
}

func (h *rankedHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func (h *rankedHeap) offer(k int, item rankedItem) {
	if h.Len() < k {
		heap.Push(h, item)
		return
	}
	if item.outranks(h.items[0]) {
		h.items[0] = item
		heap.Fix(h, 0)
	}
}

// drain empties the heap into a best-first slice.
func (h *rankedHeap) drain() []rankedItem {
	out := make([]rankedItem, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(rankedItem)
	}
	return out
}

// selectTop picks the k highest-scored dense ids. Zero scores never
// qualify; results come back best first.
func selectTop(scores []uint64, k int) []rankedItem {
	if k <= 0 {
		return nil
	}

	h := &rankedHeap{items: make([]rankedItem, 0, k)}
	for dense, score := range scores {
		if score == 0 {
			continue
		}
		h.offer(k, rankedItem{dense: uint32(dense), score: score})
	}

	return h.drain()
}

// selectTopIn is selectTop restricted to the candidates slice.
func selectTopIn(scores []uint64, candidates []uint32, k int) []rankedItem {
	if k <= 0 {
		return nil
	}

	h := &rankedHeap{items: make([]rankedItem, 0, k)}
	for _, dense := range candidates {
		score := scores[dense]
		if score == 0 {
			continue
		}
		h.offer(k, rankedItem{dense: dense, score: score})
	}

	return h.drain()
}

// selectTopBitmap is selectTop restricted to an inclusion bitmap.
func selectTopBitmap(scores []uint64, incl *roaring.Bitmap, k int) []rankedItem {
	if k <= 0 {
		return nil
	}

	h := &rankedHeap{items: make([]rankedItem, 0, k)}
	incl.Iterate(func(dense uint32) bool {
		if score := scores[dense]; score != 0 {
			h.offer(k, rankedItem{dense: dense, score: score})
		}
		return true
	})

	return h.drain()
}
