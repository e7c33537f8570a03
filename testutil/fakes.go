package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/taxonomy"
	"github.com/santhoshtr/topictrends/titles"
)

// FakeEmbedder is a deterministic in-process EmbeddingClient. Each text
// maps to a fixed unit vector derived from its hash, independent of
// role, so an exact text match scores cosine 1.0 and unrelated texts
// score near zero. Calls are recorded for assertions.
type FakeEmbedder struct {
	// Err, when set, is returned by every Encode call.
	Err error

	mu    sync.Mutex
	calls []EncodeCall
}

// EncodeCall records one Encode invocation.
type EncodeCall struct {
	Texts []string
	Role  taxonomy.Role
}

// Encode implements taxonomy.EmbeddingClient.
func (f *FakeEmbedder) Encode(ctx context.Context, texts []string, role taxonomy.Role) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, EncodeCall{Texts: append([]string(nil), texts...), Role: role})
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = TextVector(t)
	}
	return out, nil
}

// Calls returns the recorded Encode invocations.
func (f *FakeEmbedder) Calls() []EncodeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EncodeCall(nil), f.calls...)
}

// TextVector returns the unit vector FakeEmbedder assigns to a text.
func TextVector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	state := h.Sum64()

	v := make([]float32, taxonomy.Dims)
	var sum float64
	for i := range v {
		// splitmix64 step
		state += 0x9E3779B97F4A7C15
		z := state
		z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
		z = (z ^ (z >> 27)) * 0x94D049BB133111EB
		z ^= z >> 31

		x := float64(int64(z)) / float64(math.MaxInt64)
		v[i] = float32(x)
		sum += x * x
	}

	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// FakeVectorStore is an in-memory VectorStore scoring by dot product,
// which equals cosine similarity for the unit vectors FakeEmbedder
// produces.
type FakeVectorStore struct {
	// Err, when set, is returned by every call.
	Err error

	mu          sync.Mutex
	collections map[string]map[uint64]taxonomy.Point
}

// EnsureCollection implements taxonomy.VectorStore.
func (f *FakeVectorStore) EnsureCollection(ctx context.Context, collection string, dims int) error {
	if f.Err != nil {
		return f.Err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collections == nil {
		f.collections = make(map[string]map[uint64]taxonomy.Point)
	}
	if _, ok := f.collections[collection]; !ok {
		f.collections[collection] = make(map[uint64]taxonomy.Point)
	}
	return nil
}

// Upsert implements taxonomy.VectorStore.
func (f *FakeVectorStore) Upsert(ctx context.Context, collection string, points []taxonomy.Point) error {
	if f.Err != nil {
		return f.Err
	}
	if err := f.EnsureCollection(ctx, collection, taxonomy.Dims); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range points {
		f.collections[collection][p.ID] = p
	}
	return nil
}

// Search implements taxonomy.VectorStore.
func (f *FakeVectorStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]taxonomy.ScoredPoint, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if limit <= 0 {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	hits := make([]taxonomy.ScoredPoint, 0, len(f.collections[collection]))
	for id, p := range f.collections[collection] {
		hits = append(hits, taxonomy.ScoredPoint{
			ID:      id,
			Score:   dot(vector, p.Vector),
			Payload: p.Payload,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Len returns the number of points stored in a collection.
func (f *FakeVectorStore) Len(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collections[collection])
}

// Point returns a stored point by id.
func (f *FakeVectorStore) Point(collection string, id uint64) (taxonomy.Point, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.collections[collection][id]
	return p, ok
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// StaticTitles is a TitleService over fixed wiki -> qid -> title maps.
type StaticTitles struct {
	// ByWiki maps wiki -> qid -> stored page title.
	ByWiki map[string]map[core.QID]string

	// Err, when set, is returned by every call.
	Err error
}

// QIDByTitle implements titles.TitleService.
func (s *StaticTitles) QIDByTitle(ctx context.Context, wiki, title string) (core.QID, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	for qid, t := range s.ByWiki[wiki] {
		if t == title {
			return qid, nil
		}
	}
	return 0, &titles.TitleNotFoundError{Wiki: wiki, Title: title}
}

// TitlesByQIDs implements titles.TitleService.
func (s *StaticTitles) TitlesByQIDs(ctx context.Context, wiki string, qids []core.QID) (map[core.QID]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make(map[core.QID]string, len(qids))
	for _, q := range qids {
		if t, ok := s.ByWiki[wiki][q]; ok {
			out[q] = t
		}
	}
	return out, nil
}

var (
	_ taxonomy.EmbeddingClient = (*FakeEmbedder)(nil)
	_ taxonomy.VectorStore     = (*FakeVectorStore)(nil)
	_ titles.TitleService      = (*StaticTitles)(nil)
)
