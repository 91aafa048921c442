package models

import "time"

// VideoMeta is the descriptive metadata returned by the channel listing.
type VideoMeta struct {
	Key          string    `json:"key"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	URL          string    `json:"url"`
	ChannelTitle string    `json:"channel_title,omitempty"`
	PublishedAt  time.Time `json:"published_at,omitempty"`
	Duration     float64   `json:"duration_seconds,omitempty"`
	ViewCount    int       `json:"view_count,omitempty"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
}

// MediaEntry is the durable record of one ingestible video.
// Entries are never deleted by the pipeline, only superseded by newer versions.
type MediaEntry struct {
	Key              string             `json:"key"`
	Title            string             `json:"title"`
	SourceURL        string             `json:"source_url"`
	ChannelTitle     string             `json:"channel_title,omitempty"`
	PublishedAt      *time.Time         `json:"published_at,omitempty"`
	Duration         float64            `json:"duration_seconds,omitempty"`
	Tags             []string           `json:"tags,omitempty"`
	Transcript       string             `json:"transcript,omitempty"`
	Transcription    *TranscriptionMeta `json:"transcription,omitempty"`
	ProcessingStatus ProcessingStatus   `json:"processing_status"`
	ProcessingErrors []string           `json:"processing_errors,omitempty"`
	Version          int                `json:"version"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// TranscriptionMeta carries the transcription service output alongside the text.
type TranscriptionMeta struct {
	Language   string    `json:"language,omitempty"`
	Duration   float64   `json:"duration_seconds"`
	Confidence float64   `json:"confidence"`
	Segments   []Segment `json:"segments,omitempty"`
}

// Segment is one time-aligned span of transcript text.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type ProcessingStatus string

const (
	ProcessingPending      ProcessingStatus = "pending"
	ProcessingDownloading  ProcessingStatus = "downloading"
	ProcessingTranscribing ProcessingStatus = "transcribing"
	ProcessingCompleted    ProcessingStatus = "completed"
	ProcessingFailed       ProcessingStatus = "failed"
)
