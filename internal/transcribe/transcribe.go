package transcribe

import (
	"context"

	"agrovoice/internal/models"
)

// Options control a single transcription request.
type Options struct {
	Language       string
	Prompt         string
	Temperature    float64
	ResponseFormat string // defaults to verbose_json
}

// Result is the stitched output of one transcription, direct or chunked.
type Result struct {
	Text       string
	Language   string
	Duration   float64 // seconds
	Confidence float64 // 0..1
	Segments   []models.Segment
}

// Service transcribes a single audio file that fits under the payload ceiling.
type Service interface {
	Transcribe(ctx context.Context, path string, opts Options) (*Result, error)
}
