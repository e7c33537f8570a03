// Package corpus builds and serves the immutable per-wiki topology: the
// QID/dense id maps, the category hierarchy in CSR form and the
// article-category membership index.
//
// A Corpus is constructed once by the Loader from a columnar snapshot and
// never mutated afterwards; all traversal structures are shared by
// reference across reader goroutines without locks. Refreshing a wiki
// means loading a fresh Corpus and swapping it into the Manager while
// in-flight requests finish against the old one.
package corpus
