package transcribe

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"agrovoice/internal/logger"
	"agrovoice/internal/models"
)

// fakeService scripts per-path transcription outcomes and counts calls.
type fakeService struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string]*Result
	// failures[path] errors are returned before results[path] succeeds
	failures map[string][]error
}

func newFakeService() *fakeService {
	return &fakeService{
		calls:    make(map[string]int),
		results:  make(map[string]*Result),
		failures: make(map[string][]error),
	}
}

func (f *fakeService) Transcribe(_ context.Context, path string, _ Options) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	if pending := f.failures[path]; len(pending) > 0 {
		err := pending[0]
		f.failures[path] = pending[1:]
		return nil, err
	}
	r, ok := f.results[path]
	if !ok {
		return nil, fmt.Errorf("no scripted result for %s", path)
	}
	return r, nil
}

func newTestChunked(svc Service, maxBytes int64) *Chunked {
	cfg := DefaultChunkedConfig()
	cfg.MaxPayloadBytes = maxBytes
	cfg.RetryBaseDelay = time.Millisecond
	cfg.SegmentStagger = 0
	c := NewChunked(svc, cfg, logger.Module("test"))
	c.sleep = func(time.Duration) {}
	return c
}

func segmentResult(duration float64, text string) *Result {
	return &Result{
		Text:       text,
		Language:   "en",
		Duration:   duration,
		Confidence: 0.9,
		Segments: []models.Segment{
			{Start: 0, End: duration / 2, Text: text + " a"},
			{Start: duration / 2, End: duration, Text: text + " b"},
		},
	}
}

func TestDirectPathUnderCeiling(t *testing.T) {
	svc := newFakeService()
	svc.results["audio.m4a"] = segmentResult(10, "hello")

	c := newTestChunked(svc, 100)
	c.fileSize = func(string) (int64, error) { return 50, nil }
	c.split = func(string, int, string) ([]string, error) {
		t.Fatal("split must not be called for inputs under the ceiling")
		return nil, nil
	}

	result, err := c.Transcribe(context.Background(), "audio.m4a", Options{})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Text != "hello" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if svc.calls["audio.m4a"] != 1 {
		t.Errorf("expected 1 call, got %d", svc.calls["audio.m4a"])
	}
}

func TestOversizedInputIsSplitAndStitched(t *testing.T) {
	svc := newFakeService()
	texts := []string{"soil health basics", "rotate your crops", "cover crop timing"}
	paths := []string{"seg0.m4a", "seg1.m4a", "seg2.m4a"}
	for i, p := range paths {
		svc.results[p] = segmentResult(240, texts[i])
	}

	// 40MB input against a 25MB ceiling
	c := newTestChunked(svc, 25*1024*1024)
	c.fileSize = func(string) (int64, error) { return 40 * 1024 * 1024, nil }
	var splitCalled bool
	c.split = func(_ string, seconds int, _ string) ([]string, error) {
		splitCalled = true
		if seconds != 240 {
			t.Errorf("expected 240s segments, got %d", seconds)
		}
		return paths, nil
	}

	result, err := c.Transcribe(context.Background(), "big.m4a", Options{})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if !splitCalled {
		t.Fatal("expected the input to be split")
	}

	// combined length = sum of segment lengths + one join space per boundary
	wantLen := 0
	for _, s := range texts {
		wantLen += len(s)
	}
	wantLen += len(texts) - 1
	if len(result.Text) != wantLen {
		t.Errorf("combined text length = %d, want %d", len(result.Text), wantLen)
	}
	if result.Duration != 720 {
		t.Errorf("combined duration = %v, want 720", result.Duration)
	}
	if result.Confidence != 0.9 {
		t.Errorf("combined confidence = %v, want 0.9", result.Confidence)
	}
}

func TestStitchedTimestampsAreMonotonic(t *testing.T) {
	const d = 240.0
	svc := newFakeService()
	paths := []string{"s0", "s1", "s2", "s3"}
	for _, p := range paths {
		svc.results[p] = segmentResult(d, p)
	}

	c := newTestChunked(svc, 10)
	c.fileSize = func(string) (int64, error) { return 100, nil }
	c.split = func(string, int, string) ([]string, error) { return paths, nil }

	result, err := c.Transcribe(context.Background(), "big.m4a", Options{})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(result.Segments) != 2*len(paths) {
		t.Fatalf("expected %d segments, got %d", 2*len(paths), len(result.Segments))
	}
	prev := -1.0
	for i, s := range result.Segments {
		if s.Start < prev {
			t.Errorf("segment %d starts at %v, before previous %v", i, s.Start, prev)
		}
		if s.End < s.Start {
			t.Errorf("segment %d ends before it starts", i)
		}
		prev = s.Start
	}
	// last segment of segment file i should sit at offset i*d
	last := result.Segments[len(result.Segments)-1]
	if want := 3*d + d; last.End != want {
		t.Errorf("final segment end = %v, want %v", last.End, want)
	}
}

func TestTransientFailureIsRetried(t *testing.T) {
	svc := newFakeService()
	svc.failures["audio.m4a"] = []error{fmt.Errorf("rate limit exceeded")}
	svc.results["audio.m4a"] = segmentResult(10, "ok")

	c := newTestChunked(svc, 100)
	c.fileSize = func(string) (int64, error) { return 50, nil }

	result, err := c.Transcribe(context.Background(), "audio.m4a", Options{})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Text != "ok" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if svc.calls["audio.m4a"] != 2 {
		t.Errorf("expected 2 calls (1 failure + 1 success), got %d", svc.calls["audio.m4a"])
	}
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	svc := newFakeService()
	svc.failures["audio.m4a"] = []error{
		fmt.Errorf("unauthorized: bad token"),
		fmt.Errorf("unauthorized: bad token"),
	}

	c := newTestChunked(svc, 100)
	c.fileSize = func(string) (int64, error) { return 50, nil }

	_, err := c.Transcribe(context.Background(), "audio.m4a", Options{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if IsRetryable(err) {
		t.Errorf("unauthorized error should be permanent, got retryable: %v", err)
	}
	if svc.calls["audio.m4a"] != 1 {
		t.Errorf("expected exactly 1 call for a permanent failure, got %d", svc.calls["audio.m4a"])
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg       string
		kind      ErrorKind
		retryable bool
	}{
		{"Unauthorized access", KindUnauthorized, false},
		{"file format invalid", KindInvalidInput, false},
		{"payload too large", KindTooLarge, false},
		{"unsupported media type", KindUnsupported, false},
		{"connection reset by peer", KindTransient, true},
		{"rate limit exceeded", KindTransient, true},
		{"something entirely new", KindTransient, true},
	}
	for _, tt := range tests {
		got := Classify(fmt.Errorf("%s", tt.msg))
		if got.Kind != tt.kind {
			t.Errorf("Classify(%q).Kind = %v, want %v", tt.msg, got.Kind, tt.kind)
		}
		if got.Retryable() != tt.retryable {
			t.Errorf("Classify(%q).Retryable() = %v, want %v", tt.msg, got.Retryable(), tt.retryable)
		}
	}
}
