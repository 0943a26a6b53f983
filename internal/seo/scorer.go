// Package seo scores rewrite candidates against SEO and content-quality
// heuristics. Scoring is a pure function of one candidate, the source body
// and the active configuration: identical inputs produce identical reports,
// including suggestion order, because suggestion order is replayed verbatim
// into the next optimization prompt.
package seo

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/valpere/perepys/internal/article"
	"github.com/valpere/perepys/internal/markdown"
)

// Dimension names, in declaration order. The weighted dimensions come
// first; the advisory ones carry zero weight and only produce suggestions.
const (
	DimWordCount         = "word_count"
	DimKeywordDensity    = "keyword_density"
	DimDescriptionLength = "meta_description_length"
	DimTitleLength       = "title_length"
	DimReadability       = "readability"
	DimOriginality       = "originality"
	DimSentenceLength    = "avg_sentence_length"
	DimParagraphCount    = "paragraph_count"
	DimInternalLinks     = "internal_links"
	DimImages            = "images"
	DimH2Sections        = "h2_sections"
	DimH3Sections        = "h3_sections"
)

// Aggregate weights. Each group sums to 1.0.
const (
	weightWordCount      = 0.35
	weightKeywordDensity = 0.35
	weightDescription    = 0.15
	weightTitle          = 0.15

	weightReadability    = 0.30
	weightOriginality    = 0.40
	weightSentenceLength = 0.15
	weightParagraphs     = 0.15
)

// The keyword-density band spans 0.5x to 1.5x of the configured target.
const (
	densityBandLow  = 0.5
	densityBandHigh = 1.5
)

// Config holds the SEO-side thresholds.
type Config struct {
	MinWordCount          int     `mapstructure:"min_word_count" json:"min_word_count"`
	KeywordDensity        float64 `mapstructure:"keyword_density" json:"keyword_density"`
	MetaDescriptionLength int     `mapstructure:"meta_description_length" json:"meta_description_length"`
	TitleMaxLength        int     `mapstructure:"title_max_length" json:"title_max_length"`
	MinInternalLinks      int     `mapstructure:"min_internal_links" json:"min_internal_links"`
	MinImages             int     `mapstructure:"min_images" json:"min_images"`
	MinH2                 int     `mapstructure:"min_h2" json:"min_h2"`
	MinH3                 int     `mapstructure:"min_h3" json:"min_h3"`
	Threshold             float64 `mapstructure:"threshold" json:"threshold"`
}

// QualityConfig holds the content-side thresholds.
type QualityConfig struct {
	MinReadability       float64 `mapstructure:"min_readability" json:"min_readability"`
	MinOriginality       float64 `mapstructure:"min_originality" json:"min_originality"`
	MaxAvgSentenceLength float64 `mapstructure:"max_avg_sentence_length" json:"max_avg_sentence_length"`
	MinParagraphCount    int     `mapstructure:"min_paragraph_count" json:"min_paragraph_count"`
	Threshold            float64 `mapstructure:"threshold" json:"threshold"`
}

// DefaultConfig returns the stock SEO thresholds.
func DefaultConfig() Config {
	return Config{
		MinWordCount:          800,
		KeywordDensity:        0.02,
		MetaDescriptionLength: 160,
		TitleMaxLength:        60,
		MinInternalLinks:      2,
		MinImages:             1,
		MinH2:                 2,
		MinH3:                 3,
		Threshold:             80,
	}
}

// DefaultQualityConfig returns the stock content-quality thresholds.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		MinReadability:       60,
		MinOriginality:       70,
		MaxAvgSentenceLength: 25,
		MinParagraphCount:    5,
		Threshold:            70,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinWordCount <= 0 {
		c.MinWordCount = d.MinWordCount
	}
	if c.KeywordDensity <= 0 {
		c.KeywordDensity = d.KeywordDensity
	}
	if c.MetaDescriptionLength <= 0 {
		c.MetaDescriptionLength = d.MetaDescriptionLength
	}
	if c.TitleMaxLength <= 0 {
		c.TitleMaxLength = d.TitleMaxLength
	}
	if c.MinInternalLinks <= 0 {
		c.MinInternalLinks = d.MinInternalLinks
	}
	if c.MinImages <= 0 {
		c.MinImages = d.MinImages
	}
	if c.MinH2 <= 0 {
		c.MinH2 = d.MinH2
	}
	if c.MinH3 <= 0 {
		c.MinH3 = d.MinH3
	}
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	return c
}

func (c QualityConfig) withDefaults() QualityConfig {
	d := DefaultQualityConfig()
	if c.MinReadability <= 0 {
		c.MinReadability = d.MinReadability
	}
	if c.MinOriginality <= 0 {
		c.MinOriginality = d.MinOriginality
	}
	if c.MaxAvgSentenceLength <= 0 {
		c.MaxAvgSentenceLength = d.MaxAvgSentenceLength
	}
	if c.MinParagraphCount <= 0 {
		c.MinParagraphCount = d.MinParagraphCount
	}
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	return c
}

// Scorer evaluates candidates. Immutable after New; safe for concurrent use.
type Scorer struct {
	seo     Config
	quality QualityConfig
}

func New(seoCfg Config, qualityCfg QualityConfig) *Scorer {
	return &Scorer{seo: seoCfg.withDefaults(), quality: qualityCfg.withDefaults()}
}

// Accepts reports whether both aggregates clear their thresholds.
func (s *Scorer) Accepts(r *article.QualityReport) bool {
	return r.Passes(s.seo.Threshold, s.quality.Threshold)
}

// Thresholds returns the configured (seo, content) acceptance thresholds.
func (s *Scorer) Thresholds() (float64, float64) {
	return s.seo.Threshold, s.quality.Threshold
}

// Score builds the quality report for one candidate. originalBody is the
// scraped source text used for the originality estimate; keywords keep their
// configured order and the first one drives the density dimension.
func (s *Scorer) Score(cand article.Candidate, originalBody string, keywords []string) article.QualityReport {
	var (
		dims        []article.DimensionResult
		suggestions []string
	)
	add := func(d article.DimensionResult, suggestion string) {
		dims = append(dims, d)
		if !d.Passed && suggestion != "" {
			suggestions = append(suggestions, suggestion)
		}
	}

	// Prose metrics run on tag-stripped text; the structure counters need
	// the raw body.
	body := cand.Body
	prose := markdown.StripHTMLTags(body)
	words := wordCount(prose)

	// SEO group.
	add(s.scoreWordCount(words))
	add(s.scoreKeywordDensity(prose, keywords))
	add(s.scoreDescription(cand.Description))
	add(s.scoreTitle(cand.Title))

	// Content-quality group.
	add(s.scoreReadability(prose))
	add(s.scoreOriginality(prose, markdown.StripHTMLTags(originalBody)))
	add(s.scoreSentenceLength(prose))
	add(s.scoreParagraphs(prose))

	// Advisory structure checks. Zero weight: they only nudge the next
	// optimization pass.
	add(s.scoreCount(DimInternalLinks, countInternalLinks(body), s.seo.MinInternalLinks,
		"Too few internal links (%d), consider adding at least %d internal links to improve SEO"))
	add(s.scoreCount(DimImages, countImages(body), s.seo.MinImages,
		"Too few images (%d), consider adding at least %d images with alt text to improve SEO"))
	add(s.scoreCount(DimH2Sections, countH2(body), s.seo.MinH2,
		"Too few H2 headings (%d), consider adding at least %d H2 headings to improve structure and SEO"))
	add(s.scoreCount(DimH3Sections, countH3(body), s.seo.MinH3,
		"Too few H3 headings (%d), consider adding at least %d H3 headings to improve structure and SEO"))

	var seoScore, contentScore float64
	for _, d := range dims {
		switch d.Name {
		case DimWordCount, DimKeywordDensity, DimDescriptionLength, DimTitleLength:
			seoScore += d.Score * d.Weight
		case DimReadability, DimOriginality, DimSentenceLength, DimParagraphCount:
			contentScore += d.Score * d.Weight
		}
	}

	return article.QualityReport{
		SEOScore:     round2(seoScore),
		ContentScore: round2(contentScore),
		Dimensions:   dims,
		Suggestions:  suggestions,
	}
}

func (s *Scorer) scoreWordCount(words int) (article.DimensionResult, string) {
	minWords := s.seo.MinWordCount
	score := 100.0
	if words < minWords {
		score = 100 * float64(words) / float64(minWords)
	}
	return article.DimensionResult{
			Name:   DimWordCount,
			Passed: words >= minWords,
			Detail: fmt.Sprintf("%d words (min %d)", words, minWords),
			Score:  round2(score),
			Weight: weightWordCount,
		}, fmt.Sprintf("Word count is too low (%d), consider expanding content to at least %d words",
			words, minWords)
}

func (s *Scorer) scoreKeywordDensity(body string, keywords []string) (article.DimensionResult, string) {
	primary := primaryKeyword(keywords)
	if primary == "" {
		return article.DimensionResult{
			Name:   DimKeywordDensity,
			Passed: true,
			Detail: "no keywords configured",
			Score:  100,
			Weight: weightKeywordDensity,
		}, ""
	}

	density := keywordDensity(body, primary)
	low := s.seo.KeywordDensity * densityBandLow
	high := s.seo.KeywordDensity * densityBandHigh

	var (
		score      float64
		suggestion string
	)
	switch {
	case density < low:
		score = 100 * density / low
		suggestion = fmt.Sprintf("Keyword '%s' density is too low (%s), consider increasing frequency",
			primary, formatPercent(density))
	case density > high:
		score = 100 * high / density
		suggestion = fmt.Sprintf("Keyword '%s' density is too high (%s), consider reducing frequency",
			primary, formatPercent(density))
	default:
		score = 100
	}

	return article.DimensionResult{
		Name:   DimKeywordDensity,
		Passed: density >= low && density <= high,
		Detail: fmt.Sprintf("'%s' %s (band %s-%s)", primary, formatPercent(density), formatPercent(low), formatPercent(high)),
		Score:  round2(score),
		Weight: weightKeywordDensity,
	}, suggestion
}

func (s *Scorer) scoreDescription(description string) (article.DimensionResult, string) {
	length := utf8.RuneCountInString(description)
	maxLen := s.seo.MetaDescriptionLength

	d := article.DimensionResult{
		Name:   DimDescriptionLength,
		Detail: fmt.Sprintf("%d characters (max %d)", length, maxLen),
		Weight: weightDescription,
	}
	var suggestion string
	switch {
	case length == 0:
		suggestion = fmt.Sprintf("Description is empty, consider adding one between 70 and %d characters", maxLen)
	case length > maxLen:
		d.Score = round2(100 * float64(maxLen) / float64(length))
		suggestion = fmt.Sprintf("Description is too long (%d characters), consider shortening to %d characters or less",
			length, maxLen)
	default:
		d.Passed = true
		d.Score = 100
	}
	return d, suggestion
}

func (s *Scorer) scoreTitle(title string) (article.DimensionResult, string) {
	length := utf8.RuneCountInString(title)
	maxLen := s.seo.TitleMaxLength

	d := article.DimensionResult{
		Name:   DimTitleLength,
		Detail: fmt.Sprintf("%d characters (max %d)", length, maxLen),
		Weight: weightTitle,
	}
	var suggestion string
	switch {
	case length == 0:
		suggestion = fmt.Sprintf("Title is empty, consider adding one between 30 and %d characters", maxLen)
	case length > maxLen:
		d.Score = round2(100 * float64(maxLen) / float64(length))
		suggestion = fmt.Sprintf("Title is too long (%d characters), consider shortening to %d characters or less",
			length, maxLen)
	default:
		d.Passed = true
		d.Score = 100
	}
	return d, suggestion
}

func (s *Scorer) scoreReadability(body string) (article.DimensionResult, string) {
	score := readability(body)
	sub := 100.0
	if score < s.quality.MinReadability {
		sub = 100 * score / s.quality.MinReadability
	}
	return article.DimensionResult{
		Name:   DimReadability,
		Passed: score >= s.quality.MinReadability,
		Detail: fmt.Sprintf("%.2f (min %.0f)", score, s.quality.MinReadability),
		Score:  round2(sub),
		Weight: weightReadability,
	}, "Low readability score, consider simplifying sentence structure and using more common language"
}

func (s *Scorer) scoreOriginality(body, originalBody string) (article.DimensionResult, string) {
	score := originality(body, originalBody)
	sub := 100.0
	if score < s.quality.MinOriginality {
		sub = 100 * score / s.quality.MinOriginality
	}
	return article.DimensionResult{
			Name:   DimOriginality,
			Passed: score >= s.quality.MinOriginality,
			Detail: fmt.Sprintf("%.2f (min %.0f)", score, s.quality.MinOriginality),
			Score:  round2(sub),
			Weight: weightOriginality,
		}, fmt.Sprintf("Originality score is low (%.2f), consider rephrasing to differ more from the source",
			score)
}

func (s *Scorer) scoreSentenceLength(body string) (article.DimensionResult, string) {
	asl := avgSentenceLength(body)
	maxLen := s.quality.MaxAvgSentenceLength

	sub := 100.0
	var suggestion string
	switch {
	case asl == 0:
		sub = 0
	case asl > maxLen:
		sub = 100 * maxLen / asl
		suggestion = fmt.Sprintf("Average sentence length is too long (%.2f words), consider shortening sentences", asl)
	}
	return article.DimensionResult{
		Name:   DimSentenceLength,
		Passed: asl > 0 && asl <= maxLen,
		Detail: fmt.Sprintf("%.2f words (max %.0f)", asl, maxLen),
		Score:  round2(sub),
		Weight: weightSentenceLength,
	}, suggestion
}

func (s *Scorer) scoreParagraphs(body string) (article.DimensionResult, string) {
	count := len(splitParagraphs(body))
	minCount := s.quality.MinParagraphCount

	sub := 100.0
	if count < minCount {
		sub = 100 * float64(count) / float64(minCount)
	}
	return article.DimensionResult{
		Name:   DimParagraphCount,
		Passed: count >= minCount,
		Detail: fmt.Sprintf("%d paragraphs (min %d)", count, minCount),
		Score:  round2(sub),
		Weight: weightParagraphs,
	}, "Too few paragraphs, consider adding more paragraphs to improve readability"
}

// scoreCount builds one advisory dimension from a raw element count.
func (s *Scorer) scoreCount(name string, count, minCount int, format string) (article.DimensionResult, string) {
	sub := 100.0
	if count < minCount {
		sub = 100 * float64(count) / float64(minCount)
	}
	return article.DimensionResult{
		Name:   name,
		Passed: count >= minCount,
		Detail: fmt.Sprintf("%d (min %d)", count, minCount),
		Score:  round2(sub),
		Weight: 0,
	}, fmt.Sprintf(format, count, minCount)
}

func primaryKeyword(keywords []string) string {
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			return kw
		}
	}
	return ""
}
