package article

import "time"

type Metadata struct {
	Author      string   `json:"author,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Published   string   `json:"published,omitempty"`
	Language    string   `json:"language,omitempty"`
}

type ImageRef struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// RawArticle is the scraper's output. Immutable once fetched; the pipeline
// reads it but never writes it back.
type RawArticle struct {
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Metadata  Metadata   `json:"metadata"`
	Images    []ImageRef `json:"images,omitempty"`
	FetchedAt time.Time  `json:"fetched_at"`
}

type CandidateSource string

const (
	SourceRewrite             CandidateSource = "rewrite"
	SourceTitleOptimize       CandidateSource = "title-optimize"
	SourceDescriptionOptimize CandidateSource = "description-optimize"
)

// Candidate is one rewritten-article attempt. Iteration counts from 1.
type Candidate struct {
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	Description string          `json:"description"`
	Iteration   int             `json:"iteration"`
	Source      CandidateSource `json:"source"`
}

type DimensionResult struct {
	Name   string  `json:"name"`
	Passed bool    `json:"passed"`
	Detail string  `json:"detail"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// QualityReport is a pure function of one candidate and the active
// configuration. Dimensions keep declaration order; suggestion order
// follows it and is fed verbatim into optimization prompts.
type QualityReport struct {
	SEOScore     float64           `json:"seo_score"`
	ContentScore float64           `json:"content_score"`
	Dimensions   []DimensionResult `json:"dimensions"`
	Suggestions  []string          `json:"suggestions"`
}

// Passes requires both aggregates to clear their thresholds.
func (r *QualityReport) Passes(seoThreshold, contentThreshold float64) bool {
	return r.SEOScore >= seoThreshold && r.ContentScore >= contentThreshold
}

// Dimension returns the named dimension result, or nil when absent.
func (r *QualityReport) Dimension(name string) *DimensionResult {
	for i := range r.Dimensions {
		if r.Dimensions[i].Name == name {
			return &r.Dimensions[i]
		}
	}
	return nil
}

// Attempt pairs a scored candidate with its report, kept for diagnostics.
type Attempt struct {
	Candidate Candidate     `json:"candidate"`
	Report    QualityReport `json:"report"`
}

type Publication struct {
	RemoteID int    `json:"remote_id,omitempty"`
	Link     string `json:"link,omitempty"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PipelineResult is the terminal value of one pipeline run. A publish
// failure is recorded in Publication and never invalidates the rest.
type PipelineResult struct {
	RunID          string        `json:"run_id,omitempty"`
	URL            string        `json:"url,omitempty"`
	Model          string        `json:"model,omitempty"`
	Final          Candidate     `json:"final"`
	Report         QualityReport `json:"report"`
	Accepted       bool          `json:"accepted"`
	IterationsUsed int           `json:"iterations_used"`
	State          string        `json:"state"`
	Findings       []string      `json:"findings,omitempty"`
	Warnings       []string      `json:"warnings,omitempty"`
	History        []Attempt     `json:"-"`
	Publication    *Publication  `json:"publication,omitempty"`
	Err            error         `json:"-"`
}
