// Package postprocess removes common LLM artifacts from rewrite output.
//
// It is applied to the raw text returned by any model backend (full rewrite,
// title/description optimization, SEO title/description generation) before
// the result is used downstream.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes LLM artifacts from text in four phases and returns the
// trimmed result:
//  1. Thinking / reasoning block removal
//  2. Instruction echo removal (prompt leakage)
//  3. Code-fence unwrapping (entire output wrapped in ``` fences)
//  4. Quote wrapping removal
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = removeInstructionEchoes(text)
	text = unwrapCodeFence(text)
	text = removeQuoteWrapping(text)
	return strings.TrimSpace(text)
}

// --- Phase 1: thinking blocks ---

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// Each tag variant is listed explicitly because Go's RE2 engine does not
// support backreferences.
// Flags: i = case-insensitive, s = dot matches newline.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened thinking tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- Phase 2: instruction echoes ---

// echoPatterns match introductory phrases that LLMs sometimes prepend even
// when instructed not to.  Each pattern is anchored to the start of the string
// and requires a colon to reduce false positives on legitimate content.
var echoPatterns = []*regexp.Regexp{
	// "Here is / Here's [the] [rewritten|improved|optimized|final] article:"
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:rewritten |improved |optimized |final )?(?:article|title|description|text|version)\s*:`),
	// "[The] [rewritten|improved|optimized] [article|title|description]:"
	regexp.MustCompile(`(?i)^(?:the )?(?:rewritten |improved |optimized |final )(?:article|title|description|version)\s*:`),
	// "Certainly / Sure / Of course[,] here is the rewritten article:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.]? here(?:'s| is)(?: the)? (?:rewritten |improved |optimized |final )?(?:article|title|description|text|version)\s*:`),
}

func removeInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- Phase 3: code-fence unwrapping ---

// fenceWrapRe matches a whole text wrapped in a single fenced block, with an
// optional language tag on the opening fence (```markdown, ```html, …).
var fenceWrapRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\r?\\n(.*)\\r?\\n```$")

// unwrapCodeFence strips outer ``` fences when the entire output is one
// fenced block. Only applied when exactly two fence markers exist, so an
// article that legitimately contains code blocks is left alone.
func unwrapCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.Count(trimmed, "```") != 2 {
		return text
	}
	m := fenceWrapRe.FindStringSubmatch(trimmed)
	if m == nil {
		return text
	}
	return strings.TrimSpace(m[1])
}

// --- Phase 4: quote wrapping ---

// removeQuoteWrapping strips a matching pair of outer quotes when the entire
// text is wrapped in them (frequent on optimized titles and descriptions).
// Supported pairs:
//
//	"…"  '…'  «…»  "…"  '…'
func removeQuoteWrapping(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') || // " "
		(first == '‘' && last == '’') { //  ' '
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
