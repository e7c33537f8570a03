// Package query implements the analytical queries over a loaded corpus
// and the pageview store: per-article and per-category view series,
// trending categories by reverse scatter, and baseline/impact delta
// analysis.
//
// Every call resolves its wiki through the corpus manager once and runs
// against that immutable snapshot end to end. Day loops check
// cancellation between whole days and may fan out across days with
// pooled per-chunk accumulators.
package query
