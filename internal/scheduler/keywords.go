package scheduler

import (
	"sort"
	"strings"
)

// stopwords excluded from derived transcript keywords.
var stopwords = map[string]bool{
	"that": true, "this": true, "with": true, "from": true, "have": true,
	"they": true, "your": true, "what": true, "when": true, "will": true,
	"would": true, "there": true, "their": true, "about": true, "which": true,
	"were": true, "been": true, "into": true, "just": true, "like": true,
	"some": true, "then": true, "them": true, "these": true, "than": true,
	"because": true, "really": true, "going": true, "gonna": true, "thing": true,
	"things": true, "very": true, "more": true, "over": true, "here": true,
	"also": true, "want": true, "know": true, "dont": true, "youre": true,
}

// deriveKeywords returns the most frequent substantive terms of a transcript,
// used to enrich the entry's tags for keyword search.
func deriveKeywords(text string, limit int) []string {
	counts := make(map[string]int)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(field, ".,!?;:'\"()[]-")
		if len(word) < 4 || stopwords[word] {
			continue
		}
		counts[word]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > limit {
		words = words[:limit]
	}
	return words
}
