// Package blobstore abstracts the remote stores snapshot trees are
// mirrored from.
//
// A BlobStore holds the same layout as DATA_DIR, named by slash paths
// relative to its root: "<wiki>/snapshots/CURRENT",
// "<wiki>/snapshots/MANIFEST-*.json", "<wiki>/snapshots/<tag>/*.ttc"
// and "<wiki>/pageviews/*". Mirror materializes that tree locally so
// the engine itself only ever reads DATA_DIR.
//
// # Built-in implementations
//
//   - LocalStore: a directory tree (also useful for NFS-mounted dumps)
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3, with a DynamoDB snapshot pointer
//   - minio.Store: MinIO and other S3-compatible object stores
//
// Implementations must be safe for concurrent use.
package blobstore
