package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"agrovoice/internal/models"
)

// ChunkedConfig tunes the chunked transcription adapter.
type ChunkedConfig struct {
	// MaxPayloadBytes is the external service's payload ceiling. Inputs over
	// it are split before upload.
	MaxPayloadBytes int64
	// SegmentSeconds is the fixed duration of each split segment.
	SegmentSeconds int
	// MaxRetries bounds retry attempts per upload (direct or per segment).
	MaxRetries int
	// RetryBaseDelay is the initial backoff delay; subsequent delays double
	// with jitter.
	RetryBaseDelay time.Duration
	// SegmentStagger delays segment i's first attempt by i*SegmentStagger to
	// avoid bursting the service.
	SegmentStagger time.Duration
	// WorkDir hosts intermediate segment files.
	WorkDir string
}

// DefaultChunkedConfig returns production defaults (25MB ceiling, 240s segments).
func DefaultChunkedConfig() ChunkedConfig {
	return ChunkedConfig{
		MaxPayloadBytes: 25 * 1024 * 1024,
		SegmentSeconds:  240,
		MaxRetries:      3,
		RetryBaseDelay:  2 * time.Second,
		SegmentStagger:  500 * time.Millisecond,
		WorkDir:         os.TempDir(),
	}
}

// Chunked wraps a size-constrained transcription service with file splitting,
// per-segment retry and time-aligned stitching.
type Chunked struct {
	service Service
	cfg     ChunkedConfig
	log     *logrus.Entry

	// seams for tests
	fileSize func(path string) (int64, error)
	split    func(path string, seconds int, dir string) ([]string, error)
	sleep    func(d time.Duration)
}

// NewChunked creates the adapter around the given service.
func NewChunked(service Service, cfg ChunkedConfig, log *logrus.Entry) *Chunked {
	if cfg.MaxPayloadBytes == 0 {
		cfg = DefaultChunkedConfig()
	}
	return &Chunked{
		service:  service,
		cfg:      cfg,
		log:      log,
		fileSize: statSize,
		split:    SplitAudio,
		sleep:    time.Sleep,
	}
}

// Transcribe transcribes the file at path, splitting it first when it exceeds
// the payload ceiling. Intermediate segment files are removed whether or not
// stitching succeeds.
func (c *Chunked) Transcribe(ctx context.Context, path string, opts Options) (*Result, error) {
	size, err := c.fileSize(path)
	if err != nil {
		return nil, NewError(KindInvalidInput, fmt.Sprintf("cannot stat audio file: %v", err))
	}

	if size <= c.cfg.MaxPayloadBytes {
		return c.transcribeWithRetry(ctx, path, opts)
	}

	c.log.WithFields(logrus.Fields{
		"path":  path,
		"bytes": size,
	}).Info("audio exceeds payload ceiling, splitting into segments")

	segDir := filepath.Join(c.cfg.WorkDir, "segments_"+strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	defer os.RemoveAll(segDir)

	paths, err := c.split(path, c.cfg.SegmentSeconds, segDir)
	if err != nil {
		return nil, fmt.Errorf("failed to split audio: %w", err)
	}

	results, err := c.transcribeSegments(ctx, paths, opts)
	if err != nil {
		return nil, err
	}
	return stitch(results), nil
}

// transcribeSegments runs every segment concurrently with staggered starts.
// Each segment is retried individually; the first failure wins.
func (c *Chunked) transcribeSegments(ctx context.Context, paths []string, opts Options) ([]*Result, error) {
	results := make([]*Result, len(paths))
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			c.sleep(time.Duration(i) * c.cfg.SegmentStagger)
			results[i], errs[i] = c.transcribeWithRetry(ctx, p, opts)
		}(i, p)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("segment %d failed: %w", i, err)
		}
	}
	return results, nil
}

// transcribeWithRetry wraps a single upload in exponential backoff with jitter.
// Permanent failures short-circuit without further attempts.
func (c *Chunked) transcribeWithRetry(ctx context.Context, path string, opts Options) (*Result, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryBaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.5
	bo.MaxElapsedTime = 0

	var result *Result
	attempt := 0
	op := func() error {
		attempt++
		r, err := c.service.Transcribe(ctx, path, opts)
		if err != nil {
			if !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			c.log.WithFields(logrus.Fields{
				"path":    path,
				"attempt": attempt,
			}).WithError(err).Warn("transcription attempt failed, will retry")
			return err
		}
		result = r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.cfg.MaxRetries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return result, nil
}

// stitch merges per-segment results into one continuous timeline: texts joined
// with single spaces, durations summed, confidence averaged, and each
// segment's timestamps shifted by the cumulative duration of prior segments.
func stitch(results []*Result) *Result {
	combined := &Result{}
	var confidenceSum float64
	var offset float64

	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text)
		confidenceSum += r.Confidence
		if combined.Language == "" {
			combined.Language = r.Language
		}
		for _, s := range r.Segments {
			combined.Segments = append(combined.Segments, models.Segment{
				Start: s.Start + offset,
				End:   s.End + offset,
				Text:  s.Text,
			})
		}
		offset += r.Duration
		combined.Duration += r.Duration
	}

	combined.Text = strings.Join(texts, " ")
	if len(results) > 0 {
		combined.Confidence = confidenceSum / float64(len(results))
	}
	sort.SliceStable(combined.Segments, func(i, j int) bool {
		return combined.Segments[i].Start < combined.Segments[j].Start
	})
	return combined
}

func statSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
