// Package guard strips source-site branding from rewritten text before it
// is scored or published. Each forbidden term is matched case-insensitively,
// tolerating punctuation/whitespace variation between its tokens, and every
// match is replaced with a neutral token and recorded as a finding. An
// optional heuristic flags probable brand names (capitalized tokens that
// recur and are not common words) and treats them as forbidden for the
// current call only.
package guard

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// DefaultReplacement substitutes redacted brand mentions. Redaction is
// idempotent as long as the replacement itself contains no forbidden term.
const DefaultReplacement = "the original source"

const defaultMinBrandOccurrences = 3

// Config mirrors the guard section of the configuration file.
type Config struct {
	ForbiddenTerms      []string `mapstructure:"forbidden_terms" json:"forbidden_terms"`
	DetectBrandNames    bool     `mapstructure:"detect_brand_names" json:"detect_brand_names"`
	Replacement         string   `mapstructure:"replacement" json:"replacement"`
	MinBrandOccurrences int      `mapstructure:"min_brand_occurrences" json:"min_brand_occurrences"`
}

type compiledTerm struct {
	term string
	re   *regexp.Regexp
}

// Guard redacts forbidden terms from text. Immutable after New; safe for
// concurrent use.
type Guard struct {
	terms          []compiledTerm
	replacement    string
	detectBrands   bool
	minOccurrences int
	known          map[string]bool
}

func New(cfg Config) *Guard {
	replacement := cfg.Replacement
	if replacement == "" {
		replacement = DefaultReplacement
	}
	minOcc := cfg.MinBrandOccurrences
	if minOcc <= 0 {
		minOcc = defaultMinBrandOccurrences
	}

	g := &Guard{
		replacement:    replacement,
		detectBrands:   cfg.DetectBrandNames,
		minOccurrences: minOcc,
		known:          make(map[string]bool, len(cfg.ForbiddenTerms)),
	}
	for _, term := range sortedByLength(cfg.ForbiddenTerms) {
		re := compileTerm(term)
		if re == nil {
			continue
		}
		g.terms = append(g.terms, compiledTerm{term: term, re: re})
		g.known[strings.ToLower(term)] = true
	}
	return g
}

// Redact replaces every forbidden-term match in text with the configured
// replacement and returns the cleaned text plus one finding per match (the
// matched text as it appeared). Clean input yields empty findings.
func (g *Guard) Redact(text string) (string, []string) {
	terms := g.terms
	if g.detectBrands {
		for _, suspect := range brandSuspects(text, g.minOccurrences, g.known) {
			if re := compileTerm(suspect); re != nil {
				terms = append(terms, compiledTerm{term: suspect, re: re})
			}
		}
		// Re-sort so a detected long brand ("Acme Labs") still wins over a
		// configured short one ("Acme").
		terms = sortedCompiled(terms)
	}

	var findings []string
	for _, ct := range terms {
		text = ct.re.ReplaceAllStringFunc(text, func(match string) string {
			findings = append(findings, match)
			return g.replacement
		})
	}
	return text, findings
}

// Redact applies a default-configured guard to text. It matches the
// pipeline contract: (clean text, findings), no error, no side effects.
func Redact(text string, terms []string, detectBrands bool) (string, []string) {
	return New(Config{ForbiddenTerms: terms, DetectBrandNames: detectBrands}).Redact(text)
}

// --- term matching ---

var termTokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// separator between term tokens: any run of whitespace/punctuation, so
// "Acme Inc" also matches "Acme, Inc." and "acme-inc".
const tokenSeparator = `[\s[:punct:]]*`

// compileTerm builds the case-insensitive near-match pattern for one term.
// Returns nil for terms with no word characters. \b anchors are applied only
// next to ASCII word characters because RE2 word boundaries are ASCII-only.
func compileTerm(term string) *regexp.Regexp {
	tokens := termTokenRe.FindAllString(term, -1)
	if len(tokens) == 0 {
		return nil
	}
	escaped := make([]string, len(tokens))
	for i, tok := range tokens {
		escaped[i] = regexp.QuoteMeta(tok)
	}
	pat := strings.Join(escaped, tokenSeparator)
	if first := []rune(tokens[0]); asciiWord(first[0]) {
		pat = `\b` + pat
	}
	if last := []rune(tokens[len(tokens)-1]); asciiWord(last[len(last)-1]) {
		pat += `\b`
	}
	return regexp.MustCompile(`(?i)` + pat)
}

func asciiWord(r rune) bool {
	return r == '_' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z')
}

// Longest term first, so "acme.com" is redacted before "acme" can eat its
// prefix. Order matters.
func sortedByLength(terms []string) []string {
	out := make([]string, len(terms))
	copy(out, terms)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func sortedCompiled(terms []compiledTerm) []compiledTerm {
	out := make([]compiledTerm, len(terms))
	copy(out, terms)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].term) > len(out[j].term) })
	return out
}

// --- brand-name heuristic ---

var wordRe = regexp.MustCompile(`[\p{L}][\p{L}\p{N}']*`)

// brandSuspects returns capitalized tokens of at least three characters that
// occur minOccurrences times or more, are not common words, and are not
// already covered by configured terms. Order is deterministic (sorted).
func brandSuspects(text string, minOccurrences int, known map[string]bool) []string {
	counts := make(map[string]int)
	display := make(map[string]string)

	for _, tok := range wordRe.FindAllString(text, -1) {
		runes := []rune(tok)
		if len(runes) < 3 || !unicode.IsUpper(runes[0]) {
			continue
		}
		key := strings.ToLower(tok)
		if commonWords[key] || known[key] {
			continue
		}
		counts[key]++
		if _, seen := display[key]; !seen {
			display[key] = tok
		}
	}

	var suspects []string
	for key, n := range counts {
		if n >= minOccurrences {
			suspects = append(suspects, display[key])
		}
	}
	sort.Strings(suspects)
	return suspects
}

// commonWords holds capitalized words frequent enough in English prose that
// flagging them as brands would be noise. Lookup is by lowercased token.
var commonWords = map[string]bool{
	"the": true, "this": true, "that": true, "these": true, "those": true,
	"there": true, "then": true, "than": true, "they": true, "them": true,
	"their": true, "what": true, "when": true, "where": true, "which": true,
	"while": true, "who": true, "why": true, "how": true, "here": true,
	"have": true, "has": true, "had": true, "was": true, "were": true,
	"will": true, "would": true, "should": true, "could": true, "can": true,
	"cannot": true, "may": true, "might": true, "must": true, "shall": true,
	"you": true, "your": true, "yours": true, "our": true, "ours": true,
	"his": true, "her": true, "hers": true, "its": true, "it's": true,
	"and": true, "but": true, "for": true, "nor": true, "not": true,
	"with": true, "from": true, "into": true, "onto": true, "over": true,
	"under": true, "about": true, "after": true, "before": true, "between": true,
	"during": true, "through": true, "without": true, "within": true,
	"all": true, "any": true, "both": true, "each": true, "every": true,
	"few": true, "more": true, "most": true, "other": true, "another": true,
	"some": true, "such": true, "only": true, "own": true, "same": true,
	"just": true, "also": true, "even": true, "still": true, "yet": true,
	"one": true, "two": true, "three": true, "four": true, "five": true,
	"first": true, "second": true, "third": true, "last": true, "next": true,
	"new": true, "old": true, "good": true, "great": true, "best": true,
	"better": true, "big": true, "small": true, "long": true, "short": true,
	"high": true, "low": true, "many": true, "much": true, "very": true,
	"like": true, "make": true, "made": true, "take": true, "get": true,
	"use": true, "using": true, "used": true, "way": true, "ways": true,
	"time": true, "times": true, "day": true, "days": true, "year": true,
	"years": true, "people": true, "thing": true, "things": true,
	"world": true, "life": true, "work": true, "home": true, "part": true,
	"place": true, "case": true, "fact": true, "point": true, "number": true,
	"however": true, "because": true, "although": true, "though": true,
	"therefore": true, "instead": true, "perhaps": true, "maybe": true,
	"finally": true, "now": true, "today": true, "tomorrow": true,
	"yesterday": true, "always": true, "never": true, "often": true,
	"sometimes": true, "usually": true, "whether": true, "since": true,
	"once": true, "let": true, "lets": true, "let's": true, "step": true,
	"example": true, "note": true, "remember": true, "conclusion": true,
	"introduction": true, "summary": true, "overview": true, "tips": true,
	"guide": true, "read": true, "learn": true, "start": true, "try": true,
	"keep": true, "think": true, "know": true, "want": true, "need": true,
	"see": true, "say": true, "said": true, "well": true, "right": true,
	"yes": true, "no": true, "don't": true, "doesn't": true, "it": true,
	"are": true, "is": true, "be": true, "been": true, "being": true,
	"do": true, "does": true, "did": true, "done": true, "go": true,
	"going": true, "gone": true, "come": true, "coming": true,
}
