// Package s3 mirrors snapshot trees from Amazon S3.
//
// Store implements blobstore.BlobStore over one bucket and key prefix:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(s3.NewFromConfig(cfg), "wiki-snapshots", "prod/")
//	mirror := blobstore.NewMirror(store, dataDir)
//	stats, err := mirror.Sync(ctx, "enwiki")
//
// Reads use ranged GETs, uploads stream through multipart where the
// payload is large enough, and List paginates.
//
// PointerStore keeps the per-wiki CURRENT pointer in DynamoDB with
// compare-and-set promotion, so the ETL can repoint a whole fleet to a
// new snapshot atomically even though S3 itself has no CAS.
package s3
