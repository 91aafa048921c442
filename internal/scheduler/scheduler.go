package scheduler

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"agrovoice/internal/metrics"
	"agrovoice/internal/models"
	"agrovoice/internal/transcribe"
)

// Config tunes the batch processor.
type Config struct {
	// MaxConcurrentJobs bounds simultaneously processing jobs. Kept small in
	// production to respect the transcription service's rate limits.
	MaxConcurrentJobs int
	// MaxAttempts bounds attempts per job, first attempt included.
	MaxAttempts int
	// RetryDelayBase grows as base * 2^(attempts-1), plus jitter.
	RetryDelayBase time.Duration
	// MinStageDelay pads the time between job start and the transcription
	// call so back-to-back jobs do not burst the external API.
	MinStageDelay time.Duration
	// StaggerBase/StaggerStep delay job i of a batch by base + i*step.
	StaggerBase time.Duration
	StaggerStep time.Duration
	// SkipExisting short-circuits jobs whose entry is already completed.
	SkipExisting bool
	// Off-peak gating: when enabled, jobs only dispatch while the local hour
	// is inside [StartHour, EndHour).
	OffPeakEnabled   bool
	OffPeakStartHour int
	OffPeakEndHour   int
	// TickInterval is the dispatcher loop period.
	TickInterval time.Duration
	// WorkDir hosts downloaded audio files.
	WorkDir string
	// Language is passed to the transcription service.
	Language string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 2,
		MaxAttempts:       3,
		RetryDelayBase:    30 * time.Second,
		MinStageDelay:     5 * time.Second,
		StaggerBase:       2 * time.Second,
		StaggerStep:       3 * time.Second,
		SkipExisting:      true,
		TickInterval:      time.Second,
	}
}

// Status is the polling snapshot of the scheduler.
type Status struct {
	TotalJobs  int                      `json:"total_jobs"`
	Queued     int                      `json:"queued"`
	Active     int                      `json:"active"`
	ByStatus   map[models.JobStatus]int `json:"by_status"`
	EtaNextJob *time.Time               `json:"eta_next_job,omitempty"`
}

// Scheduler drives the acquire-transcribe-store state machine for each
// enqueued video: a priority queue feeds a fixed-tick dispatcher which admits
// jobs up to the concurrency bound and fires each as its own goroutine.
type Scheduler struct {
	cfg         Config
	store       MediaStore
	acquirer    Acquirer
	transcriber transcribe.Service
	log         *logrus.Entry

	mu     sync.Mutex
	jobs   map[string]*models.Job
	queue  jobQueue
	active map[string]bool

	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	// seams for tests
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration)
	jitter func() time.Duration
}

// New creates a scheduler with injected collaborators.
func New(store MediaStore, acquirer Acquirer, transcriber transcribe.Service, cfg Config, log *logrus.Entry) *Scheduler {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = DefaultConfig().MaxConcurrentJobs
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Scheduler{
		cfg:         cfg,
		store:       store,
		acquirer:    acquirer,
		transcriber: transcriber,
		log:         log,
		jobs:        make(map[string]*models.Job),
		active:      make(map[string]bool),
		stop:        make(chan struct{}),
		now:         time.Now,
		sleep:       sleepCtx,
		jitter:      func() time.Duration { return time.Duration(rand.Int63n(int64(time.Second))) },
	}
}

// Enqueue adds one item to the queue and returns its job ID.
func (s *Scheduler) Enqueue(item models.VideoMeta, priority int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.newJobLocked(item, priority, s.now())
	return job.ID
}

// EnqueueBatch adds every item with the same priority, staggering successive
// first attempts (base + index*step) to avoid a synchronized burst against
// the external service. Returns the job IDs in submission order.
func (s *Scheduler) EnqueueBatch(items []models.VideoMeta, priority int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	ids := make([]string, 0, len(items))
	for i, item := range items {
		notBefore := now.Add(s.cfg.StaggerBase + time.Duration(i)*s.cfg.StaggerStep)
		job := s.newJobLocked(item, priority, notBefore)
		ids = append(ids, job.ID)
	}
	return ids
}

func (s *Scheduler) newJobLocked(item models.VideoMeta, priority int, notBefore time.Time) *models.Job {
	job := &models.Job{
		ID:          uuid.New().String(),
		VideoKey:    item.Key,
		Payload:     item,
		Status:      models.JobStatusQueued,
		Priority:    priority,
		MaxAttempts: s.cfg.MaxAttempts,
		CreatedAt:   s.now(),
		NotBefore:   notBefore,
	}
	s.jobs[job.ID] = job
	s.queue.push(job)
	metrics.JobsEnqueued.WithLabelValues(strconv.Itoa(priority)).Inc()
	s.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"video":    job.VideoKey,
		"priority": priority,
	}).Info("job enqueued")
	return job
}

// Start launches the dispatcher loop. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
	s.log.Info("scheduler started")
}

// Stop halts future dispatch ticks. Jobs already processing run to completion
// or failure; there is no per-job preemption. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick is one dispatcher pass: requeue due retries, then admit queued jobs
// until the concurrency bound saturates. A no-op outside the off-peak window
// or when the queue is empty. Never blocks on job execution.
func (s *Scheduler) tick() {
	now := s.now()
	if !s.inProcessingWindow(now) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requeueDueRetriesLocked(now)

	for len(s.active) < s.cfg.MaxConcurrentJobs {
		job := s.queue.pop(now)
		if job == nil {
			return
		}
		if s.active[job.ID] {
			// never admit a job already holding a slot
			continue
		}
		s.admitLocked(job)
	}
}

func (s *Scheduler) requeueDueRetriesLocked(now time.Time) {
	for _, job := range s.jobs {
		if job.Status == models.JobStatusRetrying && !job.NotBefore.After(now) {
			job.Status = models.JobStatusQueued
			s.queue.push(job)
		}
	}
}

// admitLocked moves a job into processing: slot acquired, attempts bumped,
// execution fired as its own goroutine.
func (s *Scheduler) admitLocked(job *models.Job) {
	job.Status = models.JobStatusProcessing
	job.Attempts++
	started := s.now()
	job.StartedAt = &started
	s.active[job.ID] = true

	s.wg.Add(1)
	go s.runJob(job)
}

func (s *Scheduler) runJob(job *models.Job) {
	defer s.wg.Done()
	// slot release is unconditional, whatever the outcome
	defer func() {
		s.mu.Lock()
		delete(s.active, job.ID)
		s.mu.Unlock()
	}()

	log := s.log.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"video":   job.VideoKey,
		"attempt": job.Attempts,
	})
	log.Info("processing job")

	result, err := s.process(context.Background(), job)
	if err != nil {
		s.handleFailure(job, err, log)
		return
	}

	s.mu.Lock()
	job.Status = models.JobStatusCompleted
	job.Result = result
	completed := s.now()
	job.CompletedAt = &completed
	duration := completed.Sub(*job.StartedAt)
	s.mu.Unlock()
	metrics.JobsProcessed.WithLabelValues(string(models.JobStatusCompleted)).Inc()
	metrics.JobDuration.Observe(duration.Seconds())
	log.WithField("transcript_chars", result.TranscriptChars).Info("job completed")
}

// handleFailure applies the retry policy: permanent errors fail immediately,
// transient errors requeue with exponential backoff and jitter until attempts
// run out.
func (s *Scheduler) handleFailure(job *models.Job, err error, log *logrus.Entry) {
	// failed attempts are recorded on the entry but only fail the job once
	// attempts are exhausted
	if serr := s.store.UpdateStatus(context.Background(), job.VideoKey, models.ProcessingFailed, err.Error()); serr != nil {
		log.WithError(serr).Warn("could not record failure on media entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job.LastError = err.Error()
	job.LastStage = failureStage(err)

	if !transcribe.IsRetryable(err) {
		job.Status = models.JobStatusFailed
		completed := s.now()
		job.CompletedAt = &completed
		metrics.JobsProcessed.WithLabelValues(string(models.JobStatusFailed)).Inc()
		log.WithError(err).Error("job failed permanently")
		return
	}

	if job.Attempts >= job.MaxAttempts {
		job.Status = models.JobStatusFailed
		completed := s.now()
		job.CompletedAt = &completed
		metrics.JobsProcessed.WithLabelValues(string(models.JobStatusFailed)).Inc()
		log.WithError(err).Error("job failed, attempts exhausted")
		return
	}

	delay := s.cfg.RetryDelayBase*(1<<(job.Attempts-1)) + s.jitter()
	job.Status = models.JobStatusRetrying
	job.NotBefore = s.now().Add(delay)
	log.WithError(err).WithField("retry_in", delay).Warn("job will retry")
}

// inProcessingWindow applies off-peak gating. Windows may wrap midnight.
func (s *Scheduler) inProcessingWindow(now time.Time) bool {
	if !s.cfg.OffPeakEnabled {
		return true
	}
	hour := now.Hour()
	start, end := s.cfg.OffPeakStartHour, s.cfg.OffPeakEndHour
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// GetJob returns a snapshot of one job, or nil.
func (s *Scheduler) GetJob(id string) *models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// ListJobs returns snapshots of all jobs, optionally filtered by status.
func (s *Scheduler) ListJobs(status models.JobStatus) []models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if status != "" && job.Status != status {
			continue
		}
		jobs = append(jobs, *job)
	}
	return jobs
}

// Status returns queue counters and the earliest time the next job can start.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		TotalJobs: len(s.jobs),
		Queued:    s.queue.len(),
		Active:    len(s.active),
		ByStatus:  make(map[models.JobStatus]int),
	}
	for _, job := range s.jobs {
		st.ByStatus[job.Status]++
	}
	if eta := s.queue.nextReadyAt(s.now()); !eta.IsZero() {
		st.EtaNextJob = &eta
	}
	return st
}

// Report aggregates a batch's outcome. Every job is accounted for:
// processed == completed + failed once all jobs are terminal.
func (s *Scheduler) Report(jobIDs []string) models.BatchReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report models.BatchReport
	for _, id := range jobIDs {
		job, ok := s.jobs[id]
		if !ok {
			continue
		}
		if !job.Status.Terminal() {
			continue
		}
		report.Processed++
		switch job.Status {
		case models.JobStatusCompleted:
			report.Completed++
		case models.JobStatusFailed:
			report.Failed++
			stage := job.LastStage
			if stage == "" {
				stage = "pipeline"
			}
			report.Errors = append(report.Errors, models.BatchError{
				VideoKey: job.VideoKey,
				Stage:    stage,
				Message:  job.LastError,
			})
		}
	}
	return report
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
