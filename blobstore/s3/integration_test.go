package s3

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santhoshtr/topictrends/blobstore"
)

func TestIntegration_Store(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("skipping S3 integration test: S3_BUCKET not set")
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg)

	prefix := fmt.Sprintf("topictrends-test-%d/", time.Now().UnixNano())
	store := NewStore(client, bucket, prefix)

	t.Run("create and read", func(t *testing.T) {
		name := "enwiki/snapshots/20250101/articles.ttc"
		data := make([]byte, 1024*1024)
		rand.Read(data)

		w, err := store.Create(ctx, name)
		require.NoError(t, err)
		n, err := w.Write(data)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)
		require.NoError(t, w.Close())

		names, err := store.List(ctx, "enwiki/")
		require.NoError(t, err)
		assert.Contains(t, names, name)

		blob, err := store.Open(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), blob.Size())

		buf := make([]byte, 100)
		n, err = blob.ReadAt(ctx, buf, 1024)
		require.NoError(t, err)
		assert.Equal(t, 100, n)
		assert.Equal(t, data[1024:1124], buf)

		require.NoError(t, blob.Close())
		require.NoError(t, store.Delete(ctx, name))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.Open(ctx, "nonexistent")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}
