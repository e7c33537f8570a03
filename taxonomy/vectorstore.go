package taxonomy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/santhoshtr/topictrends/codec"
	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/monitoring"
	"github.com/santhoshtr/topictrends/resource"
)

// Payload is the metadata stored next to each category vector. The QID
// doubles as the point id; it is repeated in the payload so hits are
// self-describing.
type Payload struct {
	QID     core.QID `json:"qid"`
	TitleEN string   `json:"title_en"`
}

// Point is one category vector plus payload.
type Point struct {
	ID      uint64    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// ScoredPoint is one search hit. Score is raw cosine similarity as
// reported by the store.
type ScoredPoint struct {
	ID      uint64  `json:"id"`
	Score   float32 `json:"score"`
	Payload Payload `json:"payload"`
}

// VectorStore is the interface to the external vector search backend.
// Implementations must be safe for concurrent use.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist.
	// An existing collection is left untouched.
	EnsureCollection(ctx context.Context, collection string, dims int) error

	// Upsert writes points into the collection, replacing points with
	// the same id.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to limit nearest points by cosine similarity,
	// best first.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error)
}

// RESTStore is a VectorStore over a qdrant-compatible HTTP API, as
// named in VECTOR_STORE.
type RESTStore struct {
	baseURL *url.URL
	client  *http.Client
	codec   codec.Codec
	rc      *resource.Controller
	metrics monitoring.Collector
}

// RESTStoreOption configures a RESTStore.
type RESTStoreOption func(*RESTStore)

// WithHTTPClient overrides the http.Client used for requests.
func WithHTTPClient(client *http.Client) RESTStoreOption {
	return func(s *RESTStore) { s.client = client }
}

// WithStoreController bounds concurrent vector store round trips. The
// default allows resource.DefaultSearchSlots; nil removes the bound.
func WithStoreController(rc *resource.Controller) RESTStoreOption {
	return func(s *RESTStore) { s.rc = rc }
}

// WithStoreMetrics sets the metrics collector.
func WithStoreMetrics(collector monitoring.Collector) RESTStoreOption {
	return func(s *RESTStore) { s.metrics = collector }
}

// NewRESTStore creates a client for the vector store at baseURL, e.g.
// "http://localhost:6333".
func NewRESTStore(baseURL string, opts ...RESTStoreOption) (*RESTStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: invalid vector store url %q: %w", baseURL, err)
	}

	s := &RESTStore{
		baseURL: u,
		client:  &http.Client{Timeout: 30 * time.Second},
		codec:   codec.Default,
		rc:      resource.NewController(resource.Config{}),
		metrics: monitoring.NoopCollector{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type upsertRequest struct {
	Points []Point `json:"points"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []ScoredPoint `json:"result"`
}

// EnsureCollection implements VectorStore. A conflict response means
// the collection already exists and is not an error.
func (s *RESTStore) EnsureCollection(ctx context.Context, collection string, dims int) error {
	path := "/collections/" + collection
	body := createCollectionRequest{
		Vectors: vectorParams{Size: dims, Distance: "Cosine"},
	}

	start := time.Now()
	status, _, err := s.roundTrip(ctx, http.MethodPut, path, body)
	if err == nil && status != http.StatusOK && status != http.StatusConflict {
		err = external(ServiceVectorStore, path, fmt.Errorf("unexpected status %d", status))
	}
	s.metrics.RecordVectorOp(monitoring.VectorOpEnsure, time.Since(start), err)
	return err
}

// Upsert implements VectorStore.
func (s *RESTStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	path := "/collections/" + collection + "/points"

	start := time.Now()
	status, _, err := s.roundTrip(ctx, http.MethodPut, path, upsertRequest{Points: points})
	if err == nil && status != http.StatusOK {
		err = external(ServiceVectorStore, path, fmt.Errorf("unexpected status %d", status))
	}
	s.metrics.RecordVectorOp(monitoring.VectorOpUpsert, time.Since(start), err)
	return err
}

// Search implements VectorStore.
func (s *RESTStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error) {
	if limit <= 0 {
		return nil, nil
	}
	path := "/collections/" + collection + "/points/search"
	body := searchRequest{Vector: vector, Limit: limit, WithPayload: true}

	start := time.Now()
	hits, err := s.search(ctx, path, body)
	s.metrics.RecordVectorOp(monitoring.VectorOpSearch, time.Since(start), err)
	return hits, err
}

func (s *RESTStore) search(ctx context.Context, path string, body searchRequest) ([]ScoredPoint, error) {
	status, data, err := s.roundTrip(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, external(ServiceVectorStore, path, fmt.Errorf("unexpected status %d", status))
	}

	var resp searchResponse
	if err := s.codec.Unmarshal(data, &resp); err != nil {
		return nil, external(ServiceVectorStore, path, err)
	}
	return resp.Result, nil
}

// roundTrip sends one JSON request and reads the whole response body.
// It returns the HTTP status to the caller; transport failures come
// back as an ExternalError.
func (s *RESTStore) roundTrip(ctx context.Context, method, path string, body any) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	if err := s.rc.AcquireSearch(ctx); err != nil {
		return 0, nil, err
	}
	defer s.rc.ReleaseSearch()

	payload, err := s.codec.Marshal(body)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, external(ServiceVectorStore, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, external(ServiceVectorStore, path, err)
	}
	return resp.StatusCode, data, nil
}

func (s *RESTStore) endpoint(path string) string {
	u := *s.baseURL
	u.Path = path
	return u.String()
}

var _ VectorStore = (*RESTStore)(nil)
