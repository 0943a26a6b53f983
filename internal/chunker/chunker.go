// Package chunker splits long article bodies into pieces small enough to
// send through a translation API in one request, preferring paragraph
// and sentence boundaries so no request ends mid-thought.
package chunker

import (
	"strings"
	"unicode"
)

// Chunk splits text into pieces each no longer than maxChars unicode
// code points. Splits are attempted, in order of preference, at:
//  1. Paragraph boundaries (\n\n or \r\n\r\n)
//  2. Sentence-ending punctuation (. ! ?)
//  3. Whitespace (word boundary)
//  4. Hard cut at maxChars if no suitable boundary is found
//
// If text fits within maxChars, a single-element slice is returned.
// maxChars <= 0 disables splitting.
func Chunk(text string, maxChars int) []string {
	if maxChars <= 0 || len([]rune(text)) <= maxChars {
		return []string{text}
	}

	var chunks []string
	remaining := text

	for len([]rune(remaining)) > maxChars {
		split := findSplit(remaining, maxChars)
		chunk := strings.TrimSpace(remaining[:split])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = strings.TrimSpace(remaining[split:])
	}

	if strings.TrimSpace(remaining) != "" {
		chunks = append(chunks, strings.TrimSpace(remaining))
	}

	return chunks
}

// findSplit returns the byte offset at which to cut text so the head
// holds at most maxChars runes, searching backwards for the best
// boundary.
func findSplit(text string, maxChars int) int {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return len(text)
	}

	head := runes[:maxChars]
	candidate := string(head)

	if idx := strings.LastIndex(candidate, "\n\n"); idx > 0 {
		return idx + 2
	}
	if idx := strings.LastIndex(candidate, "\r\n\r\n"); idx > 0 {
		return idx + 4
	}

	// Sentence end followed by a space. The final rune never qualifies:
	// without the rune after the cut there is no telling a sentence end
	// from a decimal point or an abbreviation.
	for i := len(head) - 1; i > 0; i-- {
		r := head[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(head) && unicode.IsSpace(head[i+1]) {
			return len(string(head[:i+1]))
		}
	}

	for i := len(head) - 1; i > 0; i-- {
		if unicode.IsSpace(head[i]) {
			return len(string(head[:i]))
		}
	}

	return len(candidate)
}
