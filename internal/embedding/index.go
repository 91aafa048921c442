package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"agrovoice/internal/retrieval"
	"agrovoice/internal/storage"
)

// Index answers nearest-neighbor queries over the pre-embedded corpus by
// scanning every stored chunk. The corpus is deliberately small (it is the
// lower-priority branch of hybrid retrieval), so a brute-force scan holds up.
type Index struct {
	embedder Embedder
	chunks   *storage.ChunkRepository
}

// NewIndex creates an index over the stored corpus.
func NewIndex(embedder Embedder, chunks *storage.ChunkRepository) *Index {
	return &Index{embedder: embedder, chunks: chunks}
}

// Search embeds the query and returns the limit most similar chunks, scored
// by cosine similarity mapped onto [0,1].
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]retrieval.Chunk, error) {
	vector, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	stored, err := idx.chunks.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}

	candidates := make([]retrieval.Chunk, 0, len(stored))
	for _, c := range stored {
		score := (cosine(vector, c.Embedding) + 1) / 2
		candidates = append(candidates, retrieval.Chunk{
			ID:         c.ID,
			Content:    c.Content,
			SourceKey:  c.SourceKey,
			SourceType: retrieval.SourceEmbedded,
			Score:      score,
			Embedding:  c.Embedding,
			Metadata: retrieval.ChunkMetadata{
				Title:     c.Title,
				SourceURL: c.SourceURL,
			},
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// cosine returns the cosine similarity of two vectors, 0 for mismatched or
// zero-magnitude inputs.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
