package validator

import (
	"strings"
	"testing"
)

func TestIsValid_EmptyWantLang(t *testing.T) {
	v := New()

	valid, err := v.IsValid("Some article text", "")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("expected valid=true for empty wantLang")
	}
}

func TestIsValid_EmptyText(t *testing.T) {
	v := New()

	valid, err := v.IsValid("", "en")
	if err == nil {
		t.Error("expected error for empty text")
	}
	if valid {
		t.Error("expected valid=false for empty text")
	}
}

func TestIsValid_WhitespaceOnlyText(t *testing.T) {
	v := New()

	valid, err := v.IsValid("   ", "en")
	if err == nil {
		t.Error("expected error for whitespace-only text")
	}
	if valid {
		t.Error("expected valid=false for whitespace-only text")
	}
}

func TestIsValid_ShortTextPasses(t *testing.T) {
	v := New()

	valid, err := v.IsValid("Hi", "en")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("expected valid=true for text too short to classify")
	}
}

func TestIsValid_EnglishAsEnglish(t *testing.T) {
	v := New()

	text := "This is a longer piece of text that should be detected as English."
	valid, err := v.IsValid(text, "en")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("expected valid=true when detecting English as English")
	}
}

func TestIsValid_MismatchedLanguage(t *testing.T) {
	v := New()

	englishText := "This is a longer piece of text that should be detected as English."
	valid, err := v.IsValid(englishText, "uk")
	if err == nil {
		t.Fatal("expected error for mismatched language")
	}
	if valid {
		t.Error("expected valid=false when detecting English but expecting Ukrainian")
	}
	if !strings.Contains(err.Error(), "uk") || !strings.Contains(err.Error(), "en") {
		t.Errorf("error should name both codes: %v", err)
	}
}

func TestIsValid_UkrainianText(t *testing.T) {
	v := New()

	ukrainianText := "Це є тестовий текст українською мовою для перевірки роботи валідатора."
	valid, err := v.IsValid(ukrainianText, "uk")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("expected valid=true when detecting Ukrainian as Ukrainian")
	}
}

func TestIsValid_CaseInsensitiveWantLang(t *testing.T) {
	v := New()

	text := "This is a longer piece of text that should be detected as English."
	valid, err := v.IsValid(text, "EN")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("expected valid=true for case-insensitive wantLang")
	}
}
