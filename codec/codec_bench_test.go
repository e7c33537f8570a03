package codec

import (
	"testing"
)

// benchPoint mirrors the vector-store upsert payload, the hottest JSON shape
// in the taxonomy indexing path.
type benchPoint struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type benchUpsert struct {
	Points []benchPoint `json:"points"`
}

func benchmarkCodecMarshal(b *testing.B, c Codec, v any) {
	b.Helper()
	b.ReportAllocs()

	warm, err := c.Marshal(v)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(warm)))

	var sink []byte
	b.ResetTimer()
	for b.Loop() {
		out, err := c.Marshal(v)
		if err != nil {
			b.Fatal(err)
		}
		sink = out
	}
	_ = sink
}

func benchmarkCodecUnmarshal[T any](b *testing.B, c Codec, data []byte, dst *T) {
	b.Helper()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))

	var v T
	b.ResetTimer()
	for b.Loop() {
		if err := c.Unmarshal(data, &v); err != nil {
			b.Fatal(err)
		}
	}
	if dst != nil {
		*dst = v
	}
}

func benchBatch() benchUpsert {
	vec := make([]float32, 384)
	for i := range vec {
		vec[i] = float32(i) / 384
	}
	points := make([]benchPoint, 100)
	for i := range points {
		points[i] = benchPoint{
			ID:     uint64(11019 + i),
			Vector: vec,
			Payload: map[string]any{
				"qid":      11019 + i,
				"title_en": "Artificial intelligence",
			},
		}
	}
	return benchUpsert{Points: points}
}

func BenchmarkCodec_Marshal_UpsertBatch(b *testing.B) {
	batch := benchBatch()

	b.Run("stdlib", func(b *testing.B) { benchmarkCodecMarshal(b, JSON{}, batch) })
	b.Run("go-json", func(b *testing.B) { benchmarkCodecMarshal(b, GoJSON{}, batch) })
}

func BenchmarkCodec_Unmarshal_UpsertBatch(b *testing.B) {
	batch := benchBatch()
	jsonData := MustMarshal(JSON{}, batch)

	b.Run("stdlib", func(b *testing.B) {
		var sink benchUpsert
		benchmarkCodecUnmarshal(b, JSON{}, jsonData, &sink)
		_ = sink
	})
	b.Run("go-json", func(b *testing.B) {
		var sink benchUpsert
		benchmarkCodecUnmarshal(b, GoJSON{}, jsonData, &sink)
		_ = sink
	})
}
