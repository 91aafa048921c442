package retrieval

import (
	"strings"
	"testing"
)

func TestScoreBounds(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		query string
	}{
		{"exact match", "crop rotation improves soil", "crop rotation improves soil"},
		{"no match", "irrigation schedules for tomatoes", "quantum physics"},
		{"empty text", "", "crop rotation"},
		{"empty query", "crop rotation", ""},
		{"short query tokens only", "a big farm", "a of is"},
		{"long text", strings.Repeat("soil health matters greatly here ", 100), "soil health"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := Score(tt.text, tt.query)
			if score < 0 || score > 1 {
				t.Errorf("Score(%q, %q) = %v, outside [0,1]", tt.text, tt.query, score)
			}
		})
	}
}

func TestScoreSelfSimilarity(t *testing.T) {
	text := "nitrogen fixing cover crops improve soil structure"
	self := Score(text, text)
	unrelated := Score(text, "submarine navigation protocols")
	if self < unrelated {
		t.Errorf("self score %v < unrelated score %v", self, unrelated)
	}
	if self == 0 {
		t.Error("self score should be positive")
	}
}

func TestScoreMultiMatchBonus(t *testing.T) {
	text := "crop rotation and cover crops"
	one := Score(text, "rotation")
	two := Score(text, "rotation cover")
	if two <= one {
		t.Errorf("two matched tokens (%v) should outscore one (%v)", two, one)
	}
}

func TestScoreIgnoresShortQueryTokens(t *testing.T) {
	text := "an ox is in a pen"
	if score := Score(text, "ox in an"); score != 0 {
		t.Errorf("tokens under 3 chars should be discarded, got score %v", score)
	}
}

func TestScoreLengthNormalization(t *testing.T) {
	shortText := "soil compaction"
	longText := "soil compaction " + strings.Repeat("unrelated filler words keep going ", 30)
	short := Score(shortText, "compaction")
	long := Score(longText, "compaction")
	if long >= short {
		t.Errorf("match in long text (%v) should score below match in short text (%v)", long, short)
	}
}

func TestScoreSubstringMatching(t *testing.T) {
	// query token contained in a text token
	if Score("overwintering cattle", "winter") == 0 {
		t.Error("expected containment match for 'winter' in 'overwintering'")
	}
	// text token contained in a query token
	if Score("the corn harvest", "harvesting") == 0 {
		t.Error("expected containment match for 'harvest' in 'harvesting'")
	}
}
