package taxonomy

import (
	"context"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/santhoshtr/topictrends/monitoring"
	"github.com/santhoshtr/topictrends/resource"
)

const (
	// DefaultEmbeddingModel is the sentence encoder the collection is
	// built with. Changing the model invalidates every stored vector.
	DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

	// Dims is the embedding width of DefaultEmbeddingModel. The vector
	// store collection is created with this size and Encode rejects
	// responses of any other width.
	Dims = 384

	// queryPrefix is the instruction marker for asymmetric encoding.
	// Documents are encoded bare; queries carry the marker.
	queryPrefix = "query: "
)

// Role selects how texts are encoded. Query and document vectors live
// in the same space but queries are prefixed so the encoder can treat
// them asymmetrically.
type Role int

const (
	RoleDocument Role = iota
	RoleQuery
)

// EmbeddingClient encodes texts into vectors of Dims width.
// Implementations must be safe for concurrent use.
type EmbeddingClient interface {
	Encode(ctx context.Context, texts []string, role Role) ([][]float32, error)
}

// Embedder is an EmbeddingClient backed by an OpenAI-compatible
// /embeddings endpoint, as served by the embedding server named in
// EMBEDDING_SERVER. Vectors are L2-normalized client-side so that the
// vector store's dot product is cosine similarity.
type Embedder struct {
	client  *openai.Client
	model   string
	rc      *resource.Controller
	metrics monitoring.Collector
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithEmbeddingModel overrides the encoder model name.
func WithEmbeddingModel(model string) EmbedderOption {
	return func(e *Embedder) { e.model = model }
}

// WithEmbedderController bounds concurrent embedding round trips. The
// default allows resource.DefaultEmbedSlots; nil removes the bound.
func WithEmbedderController(rc *resource.Controller) EmbedderOption {
	return func(e *Embedder) { e.rc = rc }
}

// WithEmbedderMetrics sets the metrics collector.
func WithEmbedderMetrics(collector monitoring.Collector) EmbedderOption {
	return func(e *Embedder) { e.metrics = collector }
}

// NewEmbedder creates an Embedder against the given base URL, e.g.
// "http://localhost:8090/v1". No API key is sent; the embedding server
// is assumed to sit inside the deployment.
func NewEmbedder(baseURL string, opts ...EmbedderOption) *Embedder {
	cfg := openai.DefaultConfig("")
	cfg.BaseURL = baseURL

	e := &Embedder{
		client:  openai.NewClientWithConfig(cfg),
		model:   DefaultEmbeddingModel,
		rc:      resource.NewController(resource.Config{}),
		metrics: monitoring.NoopCollector{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode implements EmbeddingClient. The result has one vector per
// input text, in input order, each of Dims width and unit length.
func (e *Embedder) Encode(ctx context.Context, texts []string, role Role) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.rc.AcquireEmbed(ctx); err != nil {
		return nil, err
	}
	defer e.rc.ReleaseEmbed()

	input := texts
	if role == RoleQuery {
		input = make([]string, len(texts))
		for i, t := range texts {
			input[i] = queryPrefix + t
		}
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: input,
	})
	e.metrics.RecordEmbedding(len(texts), time.Since(start), err)
	if err != nil {
		return nil, external(ServiceEmbedding, e.model, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, external(ServiceEmbedding, e.model,
			fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts)))
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		v := d.Embedding
		if len(v) != Dims {
			return nil, external(ServiceEmbedding, e.model,
				fmt.Errorf("embedding width %d, want %d", len(v), Dims))
		}
		l2Normalize(v)
		out[i] = v
	}
	return out, nil
}

// l2Normalize scales v to unit length in place. The zero vector is
// left untouched.
func l2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

var _ EmbeddingClient = (*Embedder)(nil)
