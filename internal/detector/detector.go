// Package detector identifies the language of scraped and rewritten articles.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// Classification below this many runes is unreliable; shorter samples
// report no language rather than a guess.
const minSampleRunes = 20

// maxSampleRunes caps how much of a long article feeds the classifier.
const maxSampleRunes = 4000

// Detector wraps a lingua-go language detector. Building one loads the
// language models and is expensive; construct once and share.
type Detector struct {
	detector lingua.LanguageDetector
}

func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	return &Detector{detector: detector}
}

// Detect classifies text, reporting ok=false for samples too short or too
// ambiguous to call.
func (d *Detector) Detect(text string) (lingua.Language, bool) {
	sample := sampleOf(text)
	if len([]rune(sample)) < minSampleRunes {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(sample)
}

// DetectISO returns the lowercase ISO 639-1 code of the detected language,
// the form article metadata and the expected-language setting use.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

func sampleOf(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > maxSampleRunes {
		return string(runes[:maxSampleRunes])
	}
	return text
}
