package topictrends

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/santhoshtr/topictrends/taxonomy"
)

// Environment variables read by FromEnv.
const (
	// EnvDataDir names the data directory, one subdirectory per wiki.
	EnvDataDir = "DATA_DIR"

	// EnvEmbeddingServer is the base URL of the OpenAI-compatible
	// embedding server used for semantic category search.
	EnvEmbeddingServer = "EMBEDDING_SERVER"

	// EnvVectorStore is the base URL of the Qdrant-compatible vector
	// store holding the embedded category taxonomy.
	EnvVectorStore = "VECTOR_STORE"
)

// FromEnv builds an engine from the environment: DATA_DIR names the
// data directory, and EMBEDDING_SERVER plus VECTOR_STORE, set together,
// enable semantic category search against those endpoints. A .env file
// in the working directory is read first when present. Explicit options
// override whatever the environment configured.
func FromEnv(optFns ...Option) (*TopicTrends, error) {
	_ = godotenv.Load()

	dataDir := os.Getenv(EnvDataDir)
	if dataDir == "" {
		return nil, fmt.Errorf("topictrends: %s not set", EnvDataDir)
	}

	embeddingURL := os.Getenv(EnvEmbeddingServer)
	vectorURL := os.Getenv(EnvVectorStore)
	if (embeddingURL == "") != (vectorURL == "") {
		return nil, fmt.Errorf("topictrends: %s and %s must be set together", EnvEmbeddingServer, EnvVectorStore)
	}

	if embeddingURL != "" {
		peek := applyOptions(optFns)
		embedder := taxonomy.NewEmbedder(embeddingURL, taxonomy.WithEmbedderMetrics(peek.metrics))
		store, err := taxonomy.NewRESTStore(vectorURL, taxonomy.WithStoreMetrics(peek.metrics))
		if err != nil {
			return nil, err
		}
		optFns = append([]Option{WithSemanticSearch(embedder, store)}, optFns...)
	}

	return New(dataDir, optFns...)
}
