package retrieval

import (
	"strings"
	"testing"
)

func TestSplitTextShortInput(t *testing.T) {
	text := "One short sentence."
	chunks := SplitText(text, DefaultChunkerConfig())
	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("short input should come back as a single chunk, got %v", chunks)
	}
}

func TestSplitTextEmpty(t *testing.T) {
	if chunks := SplitText("   ", DefaultChunkerConfig()); chunks != nil {
		t.Errorf("expected nil for blank input, got %v", chunks)
	}
}

func TestSplitTextBoundedSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("The soil needs regular testing for nutrient levels. ")
	}
	cfg := DefaultChunkerConfig()
	chunks := SplitText(b.String(), cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		// target size plus one sentence of slack
		if len(c) > cfg.TargetSize+60 {
			t.Errorf("chunk %d is %d chars, exceeds bound", i, len(c))
		}
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestSplitTextSentenceBoundaries(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("Plant the seeds after the last frost. ")
	}
	chunks := SplitText(b.String(), DefaultChunkerConfig())
	for i, c := range chunks {
		if !strings.HasSuffix(strings.TrimSpace(c), ".") {
			t.Errorf("chunk %d does not end on a sentence boundary: %q", i, c)
		}
	}
}

func TestSplitTextOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("Rotate crops each season to break pest cycles. ")
	}
	cfg := DefaultChunkerConfig()
	chunks := SplitText(b.String(), cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// each later chunk should open with text carried over from its predecessor
	for i := 1; i < len(chunks); i++ {
		head := chunks[i]
		if len(head) > cfg.Overlap {
			head = head[:cfg.Overlap]
		}
		if !strings.Contains(chunks[i-1], strings.Fields(head)[0]) {
			t.Errorf("chunk %d does not overlap its predecessor", i)
		}
	}
}

func TestSplitTextHardSplitsLongSentence(t *testing.T) {
	text := strings.Repeat("word ", 300) // one 1500-char "sentence", no periods
	cfg := DefaultChunkerConfig()
	chunks := SplitText(text, cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected the long sentence to be hard-split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > cfg.TargetSize {
			t.Errorf("chunk %d is %d chars, exceeds target", i, len(c))
		}
	}
}
