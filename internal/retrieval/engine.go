package retrieval

import (
	"context"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"agrovoice/internal/metrics"
	"agrovoice/internal/models"
)

// SourceType identifies which corpus a chunk came from.
type SourceType string

const (
	SourceEmbedded   SourceType = "embedded-text"
	SourceTranscript SourceType = "transcript"
)

// Chunk is a retrieval candidate: a bounded span of text with provenance and
// a normalized score. Chunks are built per query and never persisted.
type Chunk struct {
	ID         string        `json:"id"`
	Content    string        `json:"content"`
	SourceKey  string        `json:"source_key"`
	SourceType SourceType    `json:"source_type"`
	Score      float64       `json:"score"`
	Embedding  []float32     `json:"-"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// ChunkMetadata carries display provenance for a chunk.
type ChunkMetadata struct {
	Title     string   `json:"title,omitempty"`
	SourceURL string   `json:"source_url,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// Result is the immutable snapshot returned to the caller.
type Result struct {
	Chunks          []Chunk  `json:"chunks"`
	Sources         []string `json:"sources"`
	TotalCandidates int      `json:"total_candidates"`
}

// VectorSearcher finds nearest-neighbor chunks in the pre-embedded corpus.
type VectorSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]Chunk, error)
}

// MediaSearcher runs the keyword search over stored media entries.
type MediaSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.MediaEntry, error)
}

// EngineConfig tunes candidate generation and diversity selection. The exact
// ratios are observed production values; the invariant is that no single
// source dominates the result set, not the literal numbers.
type EngineConfig struct {
	// MinScore drops transcript segments scoring below it.
	MinScore float64
	// StageOnePerSource caps how many segments one video contributes to the
	// candidate pool before the cross-item merge.
	StageOnePerSource int
	// PerSourceCap caps chunks per source in the second selection pass.
	// Zero means topK/3.
	PerSourceCap int
	// Chunker bounds the transcript segments.
	Chunker ChunkerConfig
}

// DefaultEngineConfig returns production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinScore:          0.1,
		StageOnePerSource: 2,
		Chunker:           DefaultChunkerConfig(),
	}
}

// Engine blends vector search over the embedded corpus with on-the-fly
// keyword scoring over long transcripts.
type Engine struct {
	vector VectorSearcher
	media  MediaSearcher
	cfg    EngineConfig
	log    *logrus.Entry
}

// NewEngine creates a hybrid retrieval engine.
func NewEngine(vector VectorSearcher, media MediaSearcher, cfg EngineConfig, log *logrus.Entry) *Engine {
	if cfg.StageOnePerSource == 0 {
		cfg = DefaultEngineConfig()
	}
	return &Engine{vector: vector, media: media, cfg: cfg, log: log}
}

// Query returns the diversity-aware top-K chunks for the query text. Partial
// failure of one sub-source degrades to whichever source succeeded; the caller
// never sees sub-source errors, only an empty or partial result.
func (e *Engine) Query(ctx context.Context, text string, topK int) *Result {
	if topK <= 0 {
		topK = 6
	}
	metrics.RetrievalQueries.Inc()

	candidates, total, ok := e.gatherCandidates(ctx, text, topK)
	if !ok {
		metrics.RetrievalDegraded.Inc()
		// Both sub-sources failed: last resort is a direct embedded-corpus
		// query at full topK.
		chunks, err := e.vector.Search(ctx, text, topK)
		if err != nil {
			e.log.WithError(err).Error("retrieval fallback failed, returning empty result")
			return &Result{Chunks: []Chunk{}, Sources: []string{}}
		}
		return buildResult(chunks, len(chunks))
	}

	selected := e.selectDiverse(candidates, topK)
	return buildResult(selected, total)
}

// gatherCandidates merges both corpora. ok is false only when every
// sub-source failed.
func (e *Engine) gatherCandidates(ctx context.Context, text string, topK int) ([]Chunk, int, bool) {
	var candidates []Chunk
	failures := 0

	// Embedded corpus is the smaller, lower-priority branch: ask for topK/4.
	embeddedLimit := topK / 4
	if embeddedLimit < 1 {
		embeddedLimit = 1
	}
	embedded, err := e.vector.Search(ctx, text, embeddedLimit)
	if err != nil {
		failures++
		e.log.WithError(err).Warn("embedded-corpus search failed, continuing with transcripts only")
	} else {
		candidates = append(candidates, embedded...)
	}

	transcript, err := e.transcriptCandidates(ctx, text, topK)
	if err != nil {
		failures++
		e.log.WithError(err).Warn("transcript-corpus search failed, continuing with embedded only")
	} else {
		candidates = append(candidates, transcript...)
	}

	if failures == 2 {
		return nil, 0, false
	}
	if failures > 0 {
		metrics.RetrievalDegraded.Inc()
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, len(candidates), true
}

// transcriptCandidates chunks the best-matching transcripts and scores each
// segment against the query, keeping at most StageOnePerSource segments per
// video to promote diversity before the cross-item merge.
func (e *Engine) transcriptCandidates(ctx context.Context, text string, topK int) ([]Chunk, error) {
	entries, err := e.media.Search(ctx, text, 2*topK)
	if err != nil {
		return nil, err
	}

	var candidates []Chunk
	for _, entry := range entries {
		if entry.Transcript == "" {
			continue
		}

		var scored []Chunk
		for i, segment := range SplitText(entry.Transcript, e.cfg.Chunker) {
			score := Score(segment, text)
			if score < e.cfg.MinScore {
				continue
			}
			scored = append(scored, Chunk{
				ID:         chunkID(entry.Key, i),
				Content:    segment,
				SourceKey:  entry.Key,
				SourceType: SourceTranscript,
				Score:      score,
				Metadata: ChunkMetadata{
					Title:     entry.Title,
					SourceURL: entry.SourceURL,
					Tags:      entry.Tags,
				},
			})
		}

		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].Score > scored[j].Score
		})
		if len(scored) > e.cfg.StageOnePerSource {
			scored = scored[:e.cfg.StageOnePerSource]
		}
		candidates = append(candidates, scored...)
	}
	return candidates, nil
}

// selectDiverse picks topK chunks from the score-sorted candidate list.
// First pass: the single best chunk from each distinct source. Second pass:
// remaining slots filled from already-represented sources, capped per source,
// never letting one source dominate while comparable sources exist.
func (e *Engine) selectDiverse(sorted []Chunk, topK int) []Chunk {
	selected := make([]Chunk, 0, topK)
	taken := make(map[string]bool)    // chunk IDs already selected
	perSource := make(map[string]int) // chunks selected per source

	for _, c := range sorted {
		if len(selected) >= topK {
			break
		}
		if perSource[c.SourceKey] > 0 {
			continue
		}
		selected = append(selected, c)
		taken[c.ID] = true
		perSource[c.SourceKey]++
	}

	if len(selected) < topK {
		sourceCap := e.cfg.PerSourceCap
		if sourceCap == 0 {
			sourceCap = topK / 3
		}
		for _, c := range sorted {
			if len(selected) >= topK {
				break
			}
			if taken[c.ID] || perSource[c.SourceKey] >= sourceCap {
				continue
			}
			selected = append(selected, c)
			taken[c.ID] = true
			perSource[c.SourceKey]++
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Score > selected[j].Score
	})
	return selected
}

func buildResult(chunks []Chunk, total int) *Result {
	if chunks == nil {
		chunks = []Chunk{}
	}
	seen := make(map[string]bool)
	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if !seen[c.SourceKey] {
			seen[c.SourceKey] = true
			sources = append(sources, c.SourceKey)
		}
	}
	return &Result{Chunks: chunks, Sources: sources, TotalCandidates: total}
}

func chunkID(key string, index int) string {
	return key + ":" + strconv.Itoa(index)
}
