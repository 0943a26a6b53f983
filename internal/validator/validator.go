// Package validator checks that pipeline output is written in the expected
// language. The check is advisory; the pipeline records mismatches as
// warnings and keeps going.
package validator

import (
	"fmt"
	"strings"

	"github.com/valpere/perepys/internal/detector"
)

// Validator compares the detected language of an article against the
// configured expectation.
type Validator struct {
	det *detector.Detector
}

// New creates a Validator with its own lingua-go detector.
func New() *Validator {
	return &Validator{det: detector.New()}
}

// NewWithDetector shares an existing detector instance; building one is
// expensive and the scraper usually holds one already.
func NewWithDetector(det *detector.Detector) *Validator {
	return &Validator{det: det}
}

// IsValid reports whether text appears to be written in wantLang (ISO
// 639-1, any case). Empty wantLang, texts too short to classify and
// ambiguous texts pass without error. When the detected language differs
// the returned error names both codes.
func (v *Validator) IsValid(text, wantLang string) (bool, error) {
	if wantLang == "" {
		return true, nil
	}

	if strings.TrimSpace(text) == "" {
		return false, fmt.Errorf("article text is empty")
	}

	detected, ok := v.det.DetectISO(text)
	if !ok {
		// Too short or too ambiguous to call.
		return true, nil
	}

	if !strings.EqualFold(detected, wantLang) {
		return false, fmt.Errorf("expected %s but detected %s", strings.ToLower(wantLang), detected)
	}

	return true, nil
}
