// Package pool provides reusable scratch accumulators for aggregation.
// Uses sync.Pool so concurrent requests do not pay a length-N allocation
// per query; slices are zeroed on checkout, not on return.
package pool

import "sync"

// Counts is a pool of []uint64 accumulators (article totals, category totals).
type Counts struct {
	p sync.Pool
}

// Get returns a zeroed slice of length n.
func (c *Counts) Get(n int) []uint64 {
	if v := c.p.Get(); v != nil {
		s := *(v.(*[]uint64))
		if cap(s) >= n {
			s = s[:n]
			clear(s)
			return s
		}
	}
	return make([]uint64, n)
}

// Put returns a slice to the pool for reuse.
func (c *Counts) Put(s []uint64) {
	if cap(s) == 0 {
		return
	}
	s = s[:0]
	c.p.Put(&s)
}
