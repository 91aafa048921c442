package retrieval

import "strings"

// ChunkerConfig bounds the overlapping segments the chunker emits.
type ChunkerConfig struct {
	TargetSize int // target chunk length in characters
	Overlap    int // characters carried over from the previous chunk
}

// DefaultChunkerConfig matches the retrieval candidate parameters
// (~500 character chunks with ~50 character overlap).
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{TargetSize: 500, Overlap: 50}
}

// SplitText splits long text into overlapping bounded-size segments,
// preferring sentence boundaries. Short inputs come back as a single segment.
func SplitText(text string, cfg ChunkerConfig) []string {
	if cfg.TargetSize <= 0 {
		cfg = DefaultChunkerConfig()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= cfg.TargetSize {
		return []string{text}
	}

	sentences := splitSentences(text)

	var chunks []string
	var current strings.Builder
	for _, sentence := range sentences {
		// A single sentence longer than the target is hard-split.
		for len(sentence) > cfg.TargetSize {
			if current.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
			}
			chunks = append(chunks, strings.TrimSpace(sentence[:cfg.TargetSize]))
			sentence = carryOverlap(sentence[:cfg.TargetSize], cfg.Overlap) + sentence[cfg.TargetSize:]
		}

		if current.Len() > 0 && current.Len()+len(sentence)+1 > cfg.TargetSize {
			chunk := strings.TrimSpace(current.String())
			chunks = append(chunks, chunk)
			current.Reset()
			if overlap := carryOverlap(chunk, cfg.Overlap); overlap != "" {
				current.WriteString(overlap)
				current.WriteByte(' ')
			}
		}
		current.WriteString(sentence)
		current.WriteByte(' ')
	}
	if tail := strings.TrimSpace(current.String()); tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}

// splitSentences cuts text at sentence-ending punctuation followed by space.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(text[start:i+1]))
			start = i + 2
		}
	}
	if start < len(text) {
		sentences = append(sentences, strings.TrimSpace(text[start:]))
	}
	return sentences
}

// carryOverlap returns the trailing overlap of a finished chunk, aligned to a
// word boundary so the next chunk does not start mid-word.
func carryOverlap(chunk string, overlap int) string {
	if overlap <= 0 || len(chunk) <= overlap {
		return ""
	}
	tail := chunk[len(chunk)-overlap:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
