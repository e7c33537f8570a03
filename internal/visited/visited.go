// Package visited tracks seen dense ids during graph traversals.
//
// The category graph contains cycles; every BFS (descendant enumeration) and
// every level-wise propagation keys correctness on visiting each node once.
// The set is a plain bitset plus a dirty list so that Reset costs O(visited)
// instead of O(capacity), which matters when a traversal touches a handful
// of categories out of millions.
package visited

// Set tracks visited dense ids using a bitset and a dirty list for fast reset.
type Set struct {
	bits  []uint64
	dirty []uint32
}

// New creates a set sized for ids in [0, capacity).
func New(capacity int) *Set {
	return &Set{
		bits:  make([]uint64, (capacity+63)/64),
		dirty: make([]uint32, 0, 128),
	}
}

// Visit marks an id as visited. It reports whether the id was newly visited,
// so BFS loops can test-and-set in one call.
func (v *Set) Visit(id uint32) bool {
	wordIdx := int(id >> 6)
	bitMask := uint64(1) << (id & 63)

	if wordIdx >= len(v.bits) {
		v.grow(wordIdx + 1)
	}

	if v.bits[wordIdx]&bitMask != 0 {
		return false
	}
	v.bits[wordIdx] |= bitMask
	v.dirty = append(v.dirty, id)
	return true
}

// Visited returns true if the id has been visited.
func (v *Set) Visited(id uint32) bool {
	wordIdx := int(id >> 6)
	if wordIdx >= len(v.bits) {
		return false
	}
	return v.bits[wordIdx]&(uint64(1)<<(id&63)) != 0
}

// Count returns the number of ids visited since the last Reset.
func (v *Set) Count() int {
	return len(v.dirty)
}

// Reset clears the visited status for all ids visited in the current traversal.
func (v *Set) Reset() {
	for _, id := range v.dirty {
		v.bits[id>>6] &^= uint64(1) << (id & 63)
	}
	v.dirty = v.dirty[:0]
}

// EnsureCapacity ensures the set can hold at least the given number of ids.
func (v *Set) EnsureCapacity(capacity int) {
	words := (capacity + 63) / 64
	if words > len(v.bits) {
		v.grow(words)
	}
}

func (v *Set) grow(newLen int) {
	newCap := len(v.bits) * 2
	if newCap < newLen {
		newCap = newLen
	}

	newBits := make([]uint64, newCap)
	copy(newBits, v.bits)
	v.bits = newBits
}
