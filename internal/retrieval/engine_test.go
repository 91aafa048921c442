package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"agrovoice/internal/logger"
	"agrovoice/internal/models"
)

type fakeVector struct {
	chunks []Chunk
	err    error
	calls  []int
}

func (f *fakeVector) Search(_ context.Context, _ string, limit int) ([]Chunk, error) {
	f.calls = append(f.calls, limit)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.chunks) > limit {
		return f.chunks[:limit], nil
	}
	return f.chunks, nil
}

type fakeMedia struct {
	entries []models.MediaEntry
	err     error
}

func (f *fakeMedia) Search(_ context.Context, _ string, _ int) ([]models.MediaEntry, error) {
	return f.entries, f.err
}

func newTestEngine(vector VectorSearcher, media MediaSearcher) *Engine {
	return NewEngine(vector, media, DefaultEngineConfig(), logger.Module("test"))
}

func embeddedChunk(id, source string, score float64) Chunk {
	return Chunk{
		ID:         id,
		Content:    "embedded content " + id,
		SourceKey:  source,
		SourceType: SourceEmbedded,
		Score:      score,
	}
}

func TestSelectDiverseOnePerSourceWhenSourcesSuffice(t *testing.T) {
	// S distinct sources with S >= topK: first pass alone fills the request
	var candidates []Chunk
	for i := 0; i < 8; i++ {
		source := fmt.Sprintf("video-%d", i)
		candidates = append(candidates, embeddedChunk(source+":0", source, 0.9-float64(i)*0.05))
	}
	e := newTestEngine(nil, nil)

	selected := e.selectDiverse(candidates, 5)
	if len(selected) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(selected))
	}
	seen := map[string]bool{}
	for _, c := range selected {
		if seen[c.SourceKey] {
			t.Errorf("source %s appears more than once", c.SourceKey)
		}
		seen[c.SourceKey] = true
	}
}

func TestSelectDiverseCapsDominantSource(t *testing.T) {
	// one source with 10 high-score candidates, two sources with one each
	var candidates []Chunk
	for i := 0; i < 10; i++ {
		candidates = append(candidates, embeddedChunk(fmt.Sprintf("dominant:%d", i), "dominant", 0.99-float64(i)*0.001))
	}
	candidates = append(candidates,
		embeddedChunk("other-1:0", "other-1", 0.5),
		embeddedChunk("other-2:0", "other-2", 0.4),
	)
	e := newTestEngine(nil, nil)

	selected := e.selectDiverse(candidates, 6)

	counts := map[string]int{}
	for _, c := range selected {
		counts[c.SourceKey]++
	}
	if counts["dominant"] > 2 { // floor(6/3)
		t.Errorf("dominant source contributed %d chunks, cap is 2", counts["dominant"])
	}
	if counts["other-1"] != 1 || counts["other-2"] != 1 {
		t.Errorf("both minor sources must be represented, got %v", counts)
	}
}

func TestSelectDiverseResortedByScore(t *testing.T) {
	candidates := []Chunk{
		embeddedChunk("a:0", "a", 0.9),
		embeddedChunk("a:1", "a", 0.8),
		embeddedChunk("b:0", "b", 0.3),
	}
	e := newTestEngine(nil, nil)
	selected := e.selectDiverse(candidates, 3)
	for i := 1; i < len(selected); i++ {
		if selected[i].Score > selected[i-1].Score {
			t.Errorf("result not sorted by score at %d: %v > %v", i, selected[i].Score, selected[i-1].Score)
		}
	}
}

func transcriptEntry(key, sentence string) models.MediaEntry {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString(sentence)
		b.WriteByte(' ')
	}
	return models.MediaEntry{
		Key:              key,
		Title:            "Video " + key,
		SourceURL:        "https://example.com/" + key,
		Transcript:       b.String(),
		ProcessingStatus: models.ProcessingCompleted,
	}
}

func TestQueryMergesBothCorpora(t *testing.T) {
	vector := &fakeVector{chunks: []Chunk{embeddedChunk("doc-1:0", "doc-1", 0.7)}}
	media := &fakeMedia{entries: []models.MediaEntry{
		transcriptEntry("vid-1", "Compost improves soil fertility over time."),
	}}
	e := newTestEngine(vector, media)

	result := e.Query(context.Background(), "compost soil fertility", 8)
	if len(result.Chunks) == 0 {
		t.Fatal("expected results")
	}

	types := map[SourceType]bool{}
	for _, c := range result.Chunks {
		types[c.SourceType] = true
	}
	if !types[SourceEmbedded] || !types[SourceTranscript] {
		t.Errorf("expected chunks from both corpora, got %v", types)
	}

	// embedded branch is weighted low: requested topK/4
	if vector.calls[0] != 2 {
		t.Errorf("embedded corpus should be asked for topK/4 = 2 candidates, got %d", vector.calls[0])
	}
}

func TestQueryStageOneLimitPerVideo(t *testing.T) {
	media := &fakeMedia{entries: []models.MediaEntry{
		transcriptEntry("vid-1", "Compost improves soil fertility over time."),
	}}
	e := newTestEngine(&fakeVector{}, media)

	result := e.Query(context.Background(), "compost soil fertility", 10)
	count := 0
	for _, c := range result.Chunks {
		if c.SourceKey == "vid-1" {
			count++
		}
	}
	if count > e.cfg.StageOnePerSource {
		t.Errorf("one video contributed %d candidates, cap is %d", count, e.cfg.StageOnePerSource)
	}
}

func TestQueryDegradesWhenEmbeddedFails(t *testing.T) {
	vector := &fakeVector{err: fmt.Errorf("vector index unavailable")}
	media := &fakeMedia{entries: []models.MediaEntry{
		transcriptEntry("vid-1", "Compost improves soil fertility over time."),
	}}
	e := newTestEngine(vector, media)

	result := e.Query(context.Background(), "compost soil", 6)
	if len(result.Chunks) == 0 {
		t.Fatal("expected transcript-only results when the embedded corpus fails")
	}
	for _, c := range result.Chunks {
		if c.SourceType != SourceTranscript {
			t.Errorf("unexpected source type %s", c.SourceType)
		}
	}
}

func TestQueryFallsBackWhenEverythingFails(t *testing.T) {
	// both sub-sources fail; the engine retries the embedded corpus directly
	// at full topK before giving up
	vector := &fakeVector{err: fmt.Errorf("vector index unavailable")}
	media := &fakeMedia{err: fmt.Errorf("store unavailable")}
	e := newTestEngine(vector, media)

	result := e.Query(context.Background(), "compost", 6)
	if result == nil {
		t.Fatal("Query must never return nil")
	}
	if len(result.Chunks) != 0 {
		t.Errorf("expected an empty result, got %d chunks", len(result.Chunks))
	}
	if len(vector.calls) != 2 || vector.calls[1] != 6 {
		t.Errorf("expected a fallback vector query at full topK, calls: %v", vector.calls)
	}
}

func TestQuerySkipsLowScoringSegments(t *testing.T) {
	media := &fakeMedia{entries: []models.MediaEntry{
		transcriptEntry("vid-1", "Tractor maintenance schedules and oil changes matter."),
	}}
	e := newTestEngine(&fakeVector{}, media)

	result := e.Query(context.Background(), "quantum entanglement research", 6)
	for _, c := range result.Chunks {
		if c.SourceType == SourceTranscript {
			t.Errorf("unrelated transcript segment leaked into results: %q", c.Content)
		}
	}
}
