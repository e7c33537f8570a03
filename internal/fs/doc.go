// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: Represents an open file with read/write/sync capabilities
//   - [FileSystem]: Abstracts filesystem operations (open, remove, rename, etc.)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (truncated reads, failed syncs)
//
// Production code should use fs.Default (which is [LocalFS]). Corpus-load
// tests inject [FaultyFS] to verify that a damaged topology file poisons only
// its own corpus:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("category_graph", fs.Fault{FailAfterReadBytes: 64})
//	// inject ffs into the loader under test
//
// # Design Notes
//
// This package intentionally does NOT include context.Context parameters.
// Local filesystem operations are fast and non-interruptible at the syscall
// level. For slow remote operations use the blobstore package, which is
// context-aware.
package fs
