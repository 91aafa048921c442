package retrieval

import "strings"

// minQueryTokenLen drops short query tokens ("a", "of", "is") before matching.
const minQueryTokenLen = 3

// normalizationWindow is the text length, in tokens, that scores are
// normalized against. Longer texts are penalized proportionally so a match in
// a short chunk outranks the same match buried in a long one.
const normalizationWindow = 50

// Score rates how well text answers query, returning a value in [0,1].
//
// Both sides are tokenized on whitespace. Each query token of at least three
// characters earns one point when any text token contains it or is contained
// by it; a query token is counted at most once. Matching more than one query
// token earns a bonus of 0.5 per matched token. The total is normalized by
// the text length in 50-token windows and clipped to [0,1].
func Score(text, query string) float64 {
	textTokens := strings.Fields(strings.ToLower(text))
	queryTokens := strings.Fields(strings.ToLower(query))
	if len(textTokens) == 0 || len(queryTokens) == 0 {
		return 0
	}

	matched := 0
	for _, qt := range queryTokens {
		if len(qt) < minQueryTokenLen {
			continue
		}
		for _, tt := range textTokens {
			if strings.Contains(tt, qt) || strings.Contains(qt, tt) {
				matched++
				break
			}
		}
	}
	if matched == 0 {
		return 0
	}

	score := float64(matched)
	if matched > 1 {
		score += float64(matched) * 0.5
	}

	normalizer := float64(len(textTokens)) / normalizationWindow
	if normalizer < 1 {
		normalizer = 1
	}
	score /= normalizer

	if score > 1 {
		return 1
	}
	return score
}
