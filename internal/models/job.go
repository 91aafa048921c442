package models

import "time"

// Job is one scheduled unit of acquire-transcribe-store work for a single video.
type Job struct {
	ID          string     `json:"id"`
	VideoKey    string     `json:"video_key"`
	Payload     VideoMeta  `json:"payload"`
	Status      JobStatus  `json:"status"`
	Priority    int        `json:"priority"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   string     `json:"last_error,omitempty"`
	LastStage   string     `json:"last_stage,omitempty"`
	Result      *JobResult `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// NotBefore delays the first or next attempt (batch stagger, retry backoff).
	NotBefore time.Time `json:"not_before,omitempty"`
}

// JobResult is recorded when a job reaches the completed state.
type JobResult struct {
	TranscriptChars int           `json:"transcript_chars"`
	Duration        time.Duration `json:"duration"`
	Skipped         bool          `json:"skipped,omitempty"`
}

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Terminal reports whether the job will not transition again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job priority: higher runs sooner.
const (
	PriorityLow    = 0
	PriorityNormal = 5
	PriorityHigh   = 10
)

// BatchReport summarizes the outcome of one batch submission.
type BatchReport struct {
	Processed int          `json:"processed"`
	Completed int          `json:"completed"`
	Failed    int          `json:"failed"`
	Errors    []BatchError `json:"errors,omitempty"`
}

// BatchError records one item's failure without aborting its siblings.
type BatchError struct {
	VideoKey string `json:"video_key"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
}
