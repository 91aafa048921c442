package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// CorpusChunk is one pre-embedded chunk of the traditional text corpus.
type CorpusChunk struct {
	ID        string
	SourceKey string
	Title     string
	SourceURL string
	Content   string
	Embedding []float32
	CreatedAt time.Time
}

// ChunkRepository is the data access layer for the embedded corpus.
type ChunkRepository struct {
	db *DB
}

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(db *DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// Insert stores a chunk with its embedding vector.
func (r *ChunkRepository) Insert(ctx context.Context, chunk *CorpusChunk) error {
	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO corpus_chunks (id, source_key, title, source_url, content, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.SourceKey, chunk.Title, chunk.SourceURL, chunk.Content,
		encodeVector(chunk.Embedding), chunk.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert corpus chunk: %w", err)
	}
	return nil
}

// All returns every chunk in the corpus. The embedded corpus is small by
// design, so vector search scans it in full.
func (r *ChunkRepository) All(ctx context.Context) ([]CorpusChunk, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, source_key, title, source_url, content, embedding, created_at FROM corpus_chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []CorpusChunk
	for rows.Next() {
		var c CorpusChunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.SourceKey, &c.Title, &c.SourceURL, &c.Content, &blob, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Embedding = decodeVector(blob)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Count returns the corpus size.
func (r *ChunkRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM corpus_chunks`).Scan(&n)
	return n, err
}

// Vectors are stored as little-endian float32 blobs.

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
