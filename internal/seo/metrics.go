package seo

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Text metrics shared by the scoring dimensions. All functions are pure.
// The prose metrics receive tag-stripped text; the structure counters get
// the raw body, which may mix markdown and HTML.

var (
	sentenceSplitRe = regexp.MustCompile(`[.!?]+`)

	htmlLinkRe  = regexp.MustCompile(`(?i)<a\s+[^>]*href=["'][^"'>]*["'][^>]*>`)
	htmlImageRe = regexp.MustCompile(`(?i)<img\s+[^>]*src=["'][^"'>]*["'][^>]*>`)
	htmlH2Re    = regexp.MustCompile(`(?is)<h2[^>]*>.*?</h2>`)
	htmlH3Re    = regexp.MustCompile(`(?is)<h3[^>]*>.*?</h3>`)

	mdLinkRe  = regexp.MustCompile(`\[[^\]]*\]\([^)]+\)`)
	mdImageRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdH2Re    = regexp.MustCompile(`(?m)^##[ \t]`)
	mdH3Re    = regexp.MustCompile(`(?m)^###[ \t]`)
)

// splitSentences breaks text on sentence-final punctuation runs and drops
// empty fragments.
func splitSentences(text string) []string {
	parts := sentenceSplitRe.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// avgSentenceLength returns words per sentence, 0 for empty text.
func avgSentenceLength(text string) float64 {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return 0
	}
	return round2(float64(wordCount(text)) / float64(len(sentences)))
}

// readability computes the Flesch reading-ease score
// 206.835 - 1.015*ASL - 84.6*ASW clamped to [0,100], where ASL is words per
// sentence and ASW is syllables per word estimated from vowel groups.
func readability(text string) float64 {
	sentences := splitSentences(text)
	words := strings.Fields(text)
	if len(sentences) == 0 || len(words) == 0 {
		return 0
	}

	asl := float64(len(words)) / float64(len(sentences))

	var syllables int
	for _, w := range words {
		syllables += syllableCount(w)
	}
	asw := float64(syllables) / float64(len(words))

	score := 206.835 - 1.015*asl - 84.6*asw
	return round2(math.Max(0, math.Min(100, score)))
}

// syllableCount estimates syllables by counting vowel groups, with a
// silent-e adjustment ("care" is one syllable, "simple" and "coffee" stay
// two). Words without recognizable vowels count as one.
func syllableCount(word string) int {
	var letters []rune
	for _, r := range strings.ToLower(word) {
		if r >= 'a' && r <= 'z' {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return 1
	}

	count := 0
	prevVowel := false
	for _, r := range letters {
		isVowel := strings.ContainsRune("aeiouy", r)
		if isVowel && !prevVowel {
			count++
		}
		prevVowel = isVowel
	}

	n := len(letters)
	if count > 1 && n >= 2 && letters[n-1] == 'e' && letters[n-2] != 'e' && letters[n-2] != 'l' {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

// originality estimates how far the candidate has moved from the source:
// 100 minus the share of candidate sentences (longer than 10 characters)
// still contained verbatim, case-insensitively, in the source body. An empty
// source scores 100.
func originality(candidate, original string) float64 {
	if strings.TrimSpace(original) == "" {
		return 100
	}
	sentences := splitSentences(candidate)
	if len(sentences) == 0 {
		return 0
	}

	lowerOriginal := strings.ToLower(original)
	similar := 0
	for _, s := range sentences {
		if utf8.RuneCountInString(s) > 10 && strings.Contains(lowerOriginal, strings.ToLower(s)) {
			similar++
		}
	}

	return round2(100 - float64(similar)/float64(len(sentences))*100)
}

// keywordOccurrences counts case-insensitive substring occurrences.
func keywordOccurrences(text, keyword string) int {
	if keyword == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), strings.ToLower(keyword))
}

// keywordDensity is occurrences per word.
func keywordDensity(text, keyword string) float64 {
	words := wordCount(text)
	if words == 0 {
		return 0
	}
	return float64(keywordOccurrences(text, keyword)) / float64(words)
}

// countInternalLinks counts HTML anchors plus markdown links (images
// excluded).
func countInternalLinks(text string) int {
	md := len(mdLinkRe.FindAllString(text, -1)) - len(mdImageRe.FindAllString(text, -1))
	if md < 0 {
		md = 0
	}
	return len(htmlLinkRe.FindAllString(text, -1)) + md
}

// countImages counts HTML <img> tags, markdown images and literal [IMAGE]
// markers left by scrapers.
func countImages(text string) int {
	return len(htmlImageRe.FindAllString(text, -1)) +
		len(mdImageRe.FindAllString(text, -1)) +
		strings.Count(text, "[IMAGE]")
}

func countH2(text string) int {
	return len(htmlH2Re.FindAllString(text, -1)) + len(mdH2Re.FindAllString(text, -1))
}

func countH3(text string) int {
	return len(htmlH3Re.FindAllString(text, -1)) + len(mdH3Re.FindAllString(text, -1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
