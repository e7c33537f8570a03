// Package minio mirrors snapshot trees from MinIO and other
// S3-compatible object stores (Ceph, Garage, SeaweedFS).
//
// Wikimedia-style self-hosted deployments often keep dumps on MinIO
// rather than AWS; this store lets the same Mirror code pull from
// either.
//
//	client, err := minio.New("dumps.example.org:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
//	    Secure: true,
//	})
//	store := minioblob.NewStore(client, "wiki-snapshots", "prod/")
//	mirror := blobstore.NewMirror(store, dataDir)
package minio
