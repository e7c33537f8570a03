// Package mmap provides read-only memory mapping for pageview day files.
//
// Day files are mapped once and shared by every query touching that day;
// the pageview LRU owns the mappings and unmaps on eviction. Mappings are
// never written through: the kernel page cache is the only copy of the data
// in memory, so hundreds of mapped days cost address space, not RSS.
//
// # Access hints
//
// [Mapping.Advise] forwards access-pattern hints to the kernel. Single
// article lookups touch one 8-byte slot per day (AccessRandom); whole-day
// scans for top-category aggregation walk the full vector (AccessSequential).
// Hints are advisory; alignment failures are swallowed.
//
// # Safety
//
// [Mapping.Bytes] returns the raw mapped slice. The slice is valid only
// until Close; the pageview store guards lifetime by keeping mappings inside
// its LRU and copying nothing.
package mmap
