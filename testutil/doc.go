// Package testutil provides testing utilities for TopicTrends.
//
// This package is intended for use in tests and benchmarks only.
// It builds miniature wikis as real on-disk snapshots (columnar tables,
// manifest, day vectors), generates realistic view distributions, and
// provides deterministic in-process fakes for the external taxonomy
// services.
//
// # Corpus Fixtures
//
//	c, err := testutil.NewCorpusBuilder("enwiki").
//		Category(1, "Science").
//		Article(10, "Physics").
//		Member(10, 1).
//		Views(core.NewDate(2025, 1, 1), map[core.QID]uint64{10: 100}).
//		Build(dataDir)
//
// # View Distributions
//
//	rng := testutil.NewRNG(seed)
//	views := rng.ZipfViews(n, 1.5, 10_000) // power-law daily views
package testutil
