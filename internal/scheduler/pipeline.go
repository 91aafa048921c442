package scheduler

import (
	"context"

	"agrovoice/internal/models"
	"agrovoice/internal/transcribe"
	"agrovoice/internal/youtube"
)

// Acquirer downloads a video's raw audio. The returned Cleanup must be
// invoked on every exit path.
type Acquirer interface {
	DownloadAudio(ctx context.Context, videoURL, key, dir string) (*youtube.Download, error)
}

// MediaStore is the durable record of per-video processing state.
type MediaStore interface {
	GetByKey(ctx context.Context, key string) (*models.MediaEntry, error)
	Upsert(ctx context.Context, entry *models.MediaEntry) error
	UpdateStatus(ctx context.Context, key string, status models.ProcessingStatus, errMsg string) error
	SetTranscript(ctx context.Context, key, transcript string, meta *models.TranscriptionMeta, tags []string) error
}

// stageError tags a pipeline failure with the stage it occurred in.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func atStage(stage string, err error) error {
	return &stageError{stage: stage, err: err}
}

// process drives one job through its state machine:
// pending → downloading → transcribing → completed. Returns the job result
// or an error the retry policy classifies.
func (s *Scheduler) process(ctx context.Context, job *models.Job) (*models.JobResult, error) {
	start := s.now()
	item := job.Payload

	// an already-completed entry with skipExisting set completes the job
	// without re-downloading anything
	existing, err := s.store.GetByKey(ctx, item.Key)
	if err != nil {
		return nil, atStage("store", err)
	}
	if existing != nil && existing.ProcessingStatus == models.ProcessingCompleted && s.cfg.SkipExisting {
		s.log.WithField("video", item.Key).Info("entry already completed, skipping")
		return &models.JobResult{
			TranscriptChars: len(existing.Transcript),
			Skipped:         true,
		}, nil
	}

	entry := &models.MediaEntry{
		Key:              item.Key,
		Title:            item.Title,
		SourceURL:        item.URL,
		ChannelTitle:     item.ChannelTitle,
		Duration:         item.Duration,
		Tags:             item.Tags,
		ProcessingStatus: models.ProcessingPending,
	}
	if !item.PublishedAt.IsZero() {
		published := item.PublishedAt
		entry.PublishedAt = &published
	}
	if err := s.store.Upsert(ctx, entry); err != nil {
		return nil, atStage("store", err)
	}

	if err := s.store.UpdateStatus(ctx, item.Key, models.ProcessingDownloading, ""); err != nil {
		return nil, atStage("store", err)
	}
	download, err := s.acquirer.DownloadAudio(ctx, item.URL, item.Key, s.cfg.WorkDir)
	if err != nil {
		return nil, atStage("download", err)
	}
	defer download.Cleanup()

	// pad elapsed time up to the configured floor before hitting external
	// transcription, so back-to-back jobs do not burst the API
	if elapsed := s.now().Sub(start); elapsed < s.cfg.MinStageDelay {
		s.sleep(ctx, s.cfg.MinStageDelay-elapsed)
	}

	if err := s.store.UpdateStatus(ctx, item.Key, models.ProcessingTranscribing, ""); err != nil {
		return nil, atStage("store", err)
	}
	result, err := s.transcriber.Transcribe(ctx, download.Path, transcribe.Options{
		Language: s.cfg.Language,
	})
	if err != nil {
		return nil, atStage("transcribe", err)
	}

	meta := &models.TranscriptionMeta{
		Language:   result.Language,
		Duration:   result.Duration,
		Confidence: result.Confidence,
		Segments:   result.Segments,
	}
	keywords := deriveKeywords(result.Text, 12)
	if err := s.store.SetTranscript(ctx, item.Key, result.Text, meta, keywords); err != nil {
		return nil, atStage("store", err)
	}

	return &models.JobResult{
		TranscriptChars: len(result.Text),
		Duration:        s.now().Sub(start),
	}, nil
}

// failureStage extracts the stage a pipeline error occurred in.
func failureStage(err error) string {
	for err != nil {
		if serr, ok := err.(*stageError); ok {
			return serr.stage
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return "pipeline"
		}
		err = u.Unwrap()
	}
	return "pipeline"
}
