// Package pipeline drives the rewrite loop: rewrite, redact, score, then
// refine until the report clears both thresholds or the iteration budget
// runs out. The controller owns every state transition; collaborators are
// called between states and never see the machine.
package pipeline

import (
	"context"
	"fmt"

	"github.com/valpere/perepys/internal/article"
	"github.com/valpere/perepys/internal/guard"
	"github.com/valpere/perepys/internal/model"
	"github.com/valpere/perepys/internal/postprocess"
	"github.com/valpere/perepys/internal/seo"
)

// State names one controller phase. Accepted and Exhausted are the only
// states that reach PipelineResult.State.
type State string

const (
	StateInit      State = "INIT"
	StateRewriting State = "REWRITING"
	StateGuarding  State = "GUARDING"
	StateScoring   State = "SCORING"
	StateAccepted  State = "ACCEPTED"
	StateRefining  State = "REFINING"
	StateExhausted State = "EXHAUSTED"
	StateDone      State = "DONE"
)

type Config struct {
	MaxIterations     int    `mapstructure:"max_iterations" json:"max_iterations"`
	OptimizeEachCycle bool   `mapstructure:"optimize_each_cycle" json:"optimize_each_cycle"`
	Language          string `mapstructure:"language" json:"language,omitempty"`
}

// Controller runs the iterative loop for one article at a time. A backend
// failure during rewrite or optimization ends the run with the last scored
// candidate and the error attached.
type Controller struct {
	engine model.Engine
	guard  *guard.Guard
	scorer *seo.Scorer
	cfg    Config

	// OnAttempt, when set, receives every history entry as it is recorded.
	OnAttempt func(article.Attempt)
}

func NewController(engine model.Engine, g *guard.Guard, scorer *seo.Scorer, cfg Config) *Controller {
	return &Controller{engine: engine, guard: g, scorer: scorer, cfg: cfg}
}

// Model reports the backend name, used as part of rewrite cache keys.
func (c *Controller) Model() string {
	return c.engine.Name()
}

// Run drives one article through the loop. The returned result always
// carries the last scored candidate and its report, accepted or not; with
// max_iterations <= 0 a single pass runs and only a passing report avoids
// the exhausted state. Cancellation is observed between stages, before
// each backend call.
func (c *Controller) Run(ctx context.Context, raw *article.RawArticle) *article.PipelineResult {
	res := &article.PipelineResult{
		URL:   raw.URL,
		Model: c.engine.Name(),
	}

	var (
		cand   article.Candidate
		report article.QualityReport
		scored bool

		title = raw.Title
		desc  = raw.Metadata.Description
		seen  = make(map[string]bool)
	)

	state := StateInit
	for {
		switch state {
		case StateInit:
			state = StateRewriting

		case StateRewriting:
			if err := ctx.Err(); err != nil {
				res.Err = err
				state = StateExhausted
				continue
			}
			out, err := c.engine.Rewrite(ctx, model.RewriteRequest{
				Title:       title,
				Body:        raw.Body,
				Description: desc,
				Keywords:    raw.Metadata.Keywords,
			})
			if err != nil {
				res.Err = fmt.Errorf("rewrite failed: %w", err)
				state = StateExhausted
				continue
			}
			res.IterationsUsed++
			cand = article.Candidate{
				Title:       title,
				Body:        postprocess.Clean(out.Text),
				Description: desc,
				Iteration:   res.IterationsUsed,
				Source:      article.SourceRewrite,
			}
			state = StateGuarding

		case StateGuarding:
			cand.Title = c.redact(cand.Title, seen, res)
			cand.Description = c.redact(cand.Description, seen, res)
			cand.Body = c.redact(cand.Body, seen, res)
			state = StateScoring

		case StateScoring:
			report = c.scorer.Score(cand, raw.Body, raw.Metadata.Keywords)
			scored = true
			c.record(res, article.Attempt{Candidate: cand, Report: report})
			switch {
			case c.scorer.Accepts(&report):
				state = StateAccepted
			case res.IterationsUsed >= c.cfg.MaxIterations:
				state = StateExhausted
			default:
				state = StateRefining
			}

		case StateRefining:
			next := res.IterationsUsed + 1
			if c.cfg.OptimizeEachCycle || next >= c.cfg.MaxIterations {
				var err error
				title, desc, err = c.optimizeHeadline(ctx, res, cand, report, next)
				if err != nil {
					res.Err = err
					state = StateExhausted
					continue
				}
			} else {
				title, desc = cand.Title, cand.Description
			}
			state = StateRewriting

		case StateAccepted:
			res.Accepted = true
			res.State = string(StateAccepted)
			state = StateDone

		case StateExhausted:
			res.State = string(StateExhausted)
			state = StateDone

		case StateDone:
			if scored {
				res.Final = cand
				res.Report = report
			}
			return res
		}
	}
}

// redact guards one candidate field, folding new findings into the result
// without duplicates.
func (c *Controller) redact(text string, seen map[string]bool, res *article.PipelineResult) string {
	clean, findings := c.guard.Redact(text)
	for _, f := range findings {
		if !seen[f] {
			seen[f] = true
			res.Findings = append(res.Findings, f)
		}
	}
	return clean
}

func (c *Controller) record(res *article.PipelineResult, att article.Attempt) {
	res.History = append(res.History, att)
	if c.OnAttempt != nil {
		c.OnAttempt(att)
	}
}

// optimizeHeadline runs the targeted title and description repairs that
// precede the next rewrite, feeding the current report's suggestions to
// the backend verbatim. The intermediate candidates land in history with
// the report whose suggestions produced them; an empty optimizer reply
// keeps the previous value.
func (c *Controller) optimizeHeadline(ctx context.Context, res *article.PipelineResult, cand article.Candidate, report article.QualityReport, iteration int) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	title := cand.Title
	out, err := c.engine.OptimizeTitle(ctx, cand.Title, report.Suggestions)
	if err != nil {
		return "", "", fmt.Errorf("title optimization failed: %w", err)
	}
	if t := postprocess.Clean(out.Text); t != "" {
		title = t
	}
	c.record(res, article.Attempt{
		Candidate: article.Candidate{
			Title:       title,
			Body:        cand.Body,
			Description: cand.Description,
			Iteration:   iteration,
			Source:      article.SourceTitleOptimize,
		},
		Report: report,
	})

	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	desc := cand.Description
	out, err = c.engine.OptimizeDescription(ctx, cand.Description, report.Suggestions)
	if err != nil {
		return "", "", fmt.Errorf("description optimization failed: %w", err)
	}
	if d := postprocess.Clean(out.Text); d != "" {
		desc = d
	}
	c.record(res, article.Attempt{
		Candidate: article.Candidate{
			Title:       title,
			Body:        cand.Body,
			Description: desc,
			Iteration:   iteration,
			Source:      article.SourceDescriptionOptimize,
		},
		Report: report,
	})
	return title, desc, nil
}
