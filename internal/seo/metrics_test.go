package seo

import (
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"single", "One plain sentence.", 1},
		{"mixed terminators", "First! Second? Third.", 3},
		{"run of punctuation", "Really?! Sure...", 2},
		{"no terminator", "a trailing fragment", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitSentences(tt.in); len(got) != tt.want {
				t.Errorf("splitSentences(%q) = %d sentences %v, want %d", tt.in, len(got), got, tt.want)
			}
		})
	}
}

func TestSplitParagraphs(t *testing.T) {
	text := "First block.\n\nSecond block\nstill second.\n\n\n\nThird."
	got := splitParagraphs(text)
	if len(got) != 3 {
		t.Errorf("expected 3 paragraphs, got %d: %v", len(got), got)
	}
}

func TestSyllableCount(t *testing.T) {
	tests := []struct {
		word string
		want int
	}{
		{"the", 1},
		{"cat", 1},
		{"care", 1},
		{"simple", 2},
		{"coffee", 2},
		{"table", 2},
		{"result", 2},
		{"keyword", 2},
		{"readability", 5},
		{"42", 1},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			if got := syllableCount(tt.word); got != tt.want {
				t.Errorf("syllableCount(%q) = %d, want %d", tt.word, got, tt.want)
			}
		})
	}
}

func TestReadability_SimpleTextScoresHigh(t *testing.T) {
	// Six one-syllable words in one sentence clamp to the top of the scale.
	got := readability("The cat sat on the mat.")
	if got != 100 {
		t.Errorf("readability = %.2f, want 100", got)
	}
}

func TestReadability_DensePolysyllablesScoreLow(t *testing.T) {
	text := "Extraordinarily sophisticated implementations demonstrate incomprehensible organizational methodologies."
	got := readability(text)
	if got != 0 {
		t.Errorf("readability = %.2f, want 0", got)
	}
}

func TestReadability_EmptyText(t *testing.T) {
	if got := readability(""); got != 0 {
		t.Errorf("readability of empty text = %.2f, want 0", got)
	}
}

func TestOriginality(t *testing.T) {
	original := "The quick brown fox jumps over the lazy dog. A second original sentence lives here."

	t.Run("identical text scores zero", func(t *testing.T) {
		if got := originality(original, original); got != 0 {
			t.Errorf("originality = %.2f, want 0", got)
		}
	})

	t.Run("disjoint text scores full", func(t *testing.T) {
		if got := originality("Nothing in common with that source at all, truly.", original); got != 100 {
			t.Errorf("originality = %.2f, want 100", got)
		}
	})

	t.Run("half overlap", func(t *testing.T) {
		half := "The quick brown fox jumps over the lazy dog. This fresh sentence is entirely new writing."
		if got := originality(half, original); got != 50 {
			t.Errorf("originality = %.2f, want 50", got)
		}
	})

	t.Run("containment is case-insensitive", func(t *testing.T) {
		upper := strings.ToUpper("A second original sentence lives here.")
		if got := originality(upper, original); got != 0 {
			t.Errorf("originality = %.2f, want 0 for case-changed copy", got)
		}
	})

	t.Run("short fragments are ignored", func(t *testing.T) {
		if got := originality("Lazy dog. Brown fox.", original); got != 100 {
			t.Errorf("originality = %.2f, want 100 for fragments of 10 chars or less", got)
		}
	})

	t.Run("empty source scores full", func(t *testing.T) {
		if got := originality("Any candidate text whatsoever goes here.", ""); got != 100 {
			t.Errorf("originality = %.2f, want 100", got)
		}
	})
}

func TestKeywordDensity(t *testing.T) {
	body := strings.Repeat("team ", 98) + "coffee Coffee"
	// 100 words, 2 case-insensitive occurrences.
	if got := keywordOccurrences(body, "coffee"); got != 2 {
		t.Errorf("keywordOccurrences = %d, want 2", got)
	}
	if got := keywordDensity(body, "coffee"); got != 0.02 {
		t.Errorf("keywordDensity = %v, want 0.02", got)
	}
	if got := keywordDensity("", "coffee"); got != 0 {
		t.Errorf("keywordDensity of empty body = %v, want 0", got)
	}
	if got := keywordOccurrences(body, ""); got != 0 {
		t.Errorf("keywordOccurrences with empty keyword = %d, want 0", got)
	}
}

func TestStructureCounts(t *testing.T) {
	body := "## Intro\n\n" +
		"See [guide](/a) and [ref](/b).\n\n" +
		"### Deep\n\n" +
		"![alt](img.png)\n\n" +
		"<h2>HTML section</h2>\n" +
		"<img src=\"x.png\">\n" +
		"<a href=\"/c\">c</a>\n\n" +
		"[IMAGE]"

	if got := countInternalLinks(body); got != 3 {
		t.Errorf("countInternalLinks = %d, want 3", got)
	}
	if got := countImages(body); got != 3 {
		t.Errorf("countImages = %d, want 3", got)
	}
	if got := countH2(body); got != 2 {
		t.Errorf("countH2 = %d, want 2", got)
	}
	if got := countH3(body); got != 1 {
		t.Errorf("countH3 = %d, want 1", got)
	}
}
