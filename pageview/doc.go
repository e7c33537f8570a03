// Package pageview serves per-day dense view-count vectors from
// memory-mapped TTPV files.
//
// Each (wiki, date) maps to one file holding a uint64 count per article
// dense id, written against a specific topology snapshot. The Store
// borrows read-only day views out of a bounded LRU of mappings; days
// whose file is missing or was written against a different snapshot
// read as all zero.
package pageview
