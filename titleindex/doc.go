// Package titleindex provides lexical search over category titles.
//
// It serves autocomplete-style category lookup without the embedding
// backend: titles are lowercased and tokenized, tokens map to roaring
// posting lists over category dense ids, and queries score in four
// tiers (exact title, all tokens present, title prefix, token prefix).
//
// The index is immutable once built; a snapshot swap means building a
// new index against the new corpus.
package titleindex
