// Package placeholder protects article markup during machine
// translation. Image references, link targets, code and raw HTML are
// replaced with numbered markers ([PH0], [PH1], …) before the text is
// sent out, and substituted back afterwards, so URLs and code never get
// mangled by the translator.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// fenced code blocks: ```...``` (non-greedy, may span lines)
	reFencedCode = regexp.MustCompile("(?s)```.*?```")

	// markdown images, protected whole: ![alt](src "title")
	reImage = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)

	// link targets: the ](url) tail of [text](url); the link text stays
	// translatable
	reLinkTarget = regexp.MustCompile(`\]\([^)]*\)`)

	// inline code spans: `...`
	reInlineCode = regexp.MustCompile("`[^`]+`")

	// HTML/XML tags: opening, closing, and self-closing
	reHTMLTag = regexp.MustCompile(`<[^>]+>`)

	// placeholder reference in translated text
	rePlaceholder = regexp.MustCompile(`\[PH(\d+)\]`)
)

// Protect replaces markup with numbered placeholders [PH0], [PH1], … in
// the order the patterns run. It returns the modified text and the slice
// of captured originals so Restore can put them back.
func Protect(text string) (string, []string) {
	var markers []string
	counter := 0

	replace := func(match string) string {
		id := fmt.Sprintf("[PH%d]", counter)
		markers = append(markers, match)
		counter++
		return id
	}

	// Order matters: fenced blocks first (longest match), then whole
	// images before bare link targets, code spans and tags last.
	text = reFencedCode.ReplaceAllStringFunc(text, replace)
	text = reImage.ReplaceAllStringFunc(text, replace)
	text = reLinkTarget.ReplaceAllStringFunc(text, replace)
	text = reInlineCode.ReplaceAllStringFunc(text, replace)
	text = reHTMLTag.ReplaceAllStringFunc(text, replace)

	return text, markers
}

// Restore substitutes [PHn] markers in text back with the originals
// captured by Protect. Unrecognised indices leave the placeholder as-is.
func Restore(text string, markers []string) string {
	return rePlaceholder.ReplaceAllStringFunc(text, func(match string) string {
		sub := rePlaceholder.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(markers) {
			return match
		}
		return markers[idx]
	})
}

// Validate checks whether every marker created by Protect is still
// present in the translated text. It returns the list of missing indices.
func Validate(text string, markers []string) []int {
	var missing []int
	for i := range markers {
		if !strings.Contains(text, fmt.Sprintf("[PH%d]", i)) {
			missing = append(missing, i)
		}
	}
	return missing
}
