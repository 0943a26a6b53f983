/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/valpere/perepys/internal/article"
	"github.com/valpere/perepys/internal/detector"
	"github.com/valpere/perepys/internal/guard"
	"github.com/valpere/perepys/internal/images"
	"github.com/valpere/perepys/internal/model"
	"github.com/valpere/perepys/internal/pipeline"
	"github.com/valpere/perepys/internal/prompt"
	"github.com/valpere/perepys/internal/publisher"
	"github.com/valpere/perepys/internal/scraper"
	"github.com/valpere/perepys/internal/seo"
	"github.com/valpere/perepys/internal/store"
	"github.com/valpere/perepys/internal/validator"
)

// progressf writes progress chatter to stderr when --verbose is on.
func progressf(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// buildEngine constructs the configured model backend with the prompt
// library (file-based when prompts.path is set, embedded otherwise).
func buildEngine() (model.Engine, error) {
	lib := prompt.Defaults()
	if cfg.Prompts.Path != "" {
		var err error
		lib, err = prompt.Load(cfg.Prompts.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load prompts: %w", err)
		}
	}
	return model.ForConfig(cfg.ActiveModel, cfg.ActiveModelConfig(), lib)
}

// buildRunner wires the full pipeline from the loaded config. Optional
// collaborators (images, publisher, store) stay nil when their feature is
// off. The returned cleanup closes the store.
func buildRunner(eng model.Engine) (*pipeline.Runner, func(), error) {
	det := detector.New()

	r := &pipeline.Runner{
		Source: scraper.Auto(cfg.Scraper, det),
		Controller: pipeline.NewController(
			eng, guard.New(cfg.Guard), seo.New(cfg.SEO, cfg.Quality), cfg.Pipeline),
		Validator: validator.NewWithDetector(det),
		Language:  cfg.Pipeline.Language,
	}
	if cfg.Images.Enabled {
		r.Images = images.New(cfg.Images)
	}
	if cfg.WordPress.APIURL != "" {
		r.Publisher = publisher.NewWordPressClient(cfg.WordPress)
	}

	cleanup := func() {}
	if cfg.Store.Path != "" {
		db, err := store.New(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		r.Store = db
		cleanup = func() { db.Close() }
	}
	return r, cleanup, nil
}

// openStore opens the audit database, preferring an explicit path over
// the configured one.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		path = cfg.Store.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no database configured (set store.path or pass --db)")
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// fillMissingMeta asks the model to draft a title or description when the
// source article has none to work from.
func fillMissingMeta(ctx context.Context, eng model.Engine, raw *article.RawArticle) error {
	gen, ok := eng.(model.SEOGenerator)
	if !ok {
		return nil
	}
	if raw.Title == "" && raw.Body != "" {
		progressf("Generating a title for %s\n", raw.URL)
		out, err := gen.GenerateSEOTitle(ctx, raw.Title, raw.Body)
		if err != nil {
			return fmt.Errorf("title generation failed: %w", err)
		}
		raw.Title = out.Text
	}
	if raw.Metadata.Description == "" && raw.Body != "" {
		progressf("Generating a description for %s\n", raw.URL)
		out, err := gen.GenerateSEODescription(ctx, raw.Metadata.Description, raw.Body)
		if err != nil {
			return fmt.Errorf("description generation failed: %w", err)
		}
		raw.Metadata.Description = out.Text
	}
	return nil
}

// readRawArticle loads a source article from a JSON dump produced by
// "perepys scrape" or from plain markdown, where the first "# " heading
// becomes the title.
func readRawArticle(filePath string) (*article.RawArticle, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		var raw article.RawArticle
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse article JSON: %w", err)
		}
		if raw.Body == "" {
			return nil, fmt.Errorf("article file %s has no body", filePath)
		}
		return &raw, nil
	}

	title, body := splitMarkdown(string(data))
	if body == "" {
		return nil, fmt.Errorf("article file %s is empty", filePath)
	}
	return &article.RawArticle{URL: "file://" + filePath, Title: title, Body: body}, nil
}

// readCandidate loads a finished article: a pipeline result JSON (its
// final candidate wins), a bare candidate JSON, or markdown.
func readCandidate(filePath string) (article.Candidate, error) {
	var cand article.Candidate
	data, err := os.ReadFile(filePath)
	if err != nil {
		return cand, fmt.Errorf("failed to read input file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		var res article.PipelineResult
		if err := json.Unmarshal(data, &res); err == nil && res.Final.Body != "" {
			return res.Final, nil
		}
		if err := json.Unmarshal(data, &cand); err != nil {
			return cand, fmt.Errorf("failed to parse article JSON: %w", err)
		}
		if cand.Body == "" {
			return cand, fmt.Errorf("article file %s has no body", filePath)
		}
		return cand, nil
	}

	title, body := splitMarkdown(string(data))
	if body == "" {
		return cand, fmt.Errorf("article file %s is empty", filePath)
	}
	cand.Title = title
	cand.Body = body
	return cand, nil
}

// splitMarkdown peels a leading "# " heading off markdown text.
func splitMarkdown(text string) (title, body string) {
	body = strings.TrimSpace(text)
	if !strings.HasPrefix(body, "# ") {
		return "", body
	}
	if idx := strings.Index(body, "\n"); idx > 0 {
		return strings.TrimSpace(body[2:idx]), strings.TrimSpace(body[idx:])
	}
	return strings.TrimSpace(body[2:]), ""
}

// slugFor derives an output filename stem from the article URL's last
// path segment, falling back to the title.
func slugFor(rawURL, title string) string {
	base := title
	if u, err := url.Parse(rawURL); err == nil {
		if p := strings.Trim(u.Path, "/"); p != "" {
			seg := path.Base(p)
			base = strings.TrimSuffix(seg, path.Ext(seg))
		}
	}
	if s := slugify(base); s != "" {
		return s
	}
	return "article"
}

func slugify(s string) string {
	var out []rune
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			if n := len(out); n > 0 && out[n-1] != '-' {
				out = append(out, '-')
			}
		}
	}
	return strings.Trim(string(out), "-")
}

// renderMarkdown formats a candidate as a markdown document.
func renderMarkdown(cand article.Candidate) string {
	var b strings.Builder
	if cand.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", cand.Title)
	}
	b.WriteString(cand.Body)
	if !strings.HasSuffix(cand.Body, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// writeArticleFiles writes <slug>.md with the final text and <slug>.json
// with the full run result next to it, returning the markdown path.
func writeArticleFiles(dir string, res *article.PipelineResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	slug := slugFor(res.URL, res.Final.Title)
	mdPath := filepath.Join(dir, slug+".md")
	if err := os.WriteFile(mdPath, []byte(renderMarkdown(res.Final)), 0644); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, slug+".json"), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write result file: %w", err)
	}
	return mdPath, nil
}

// writeOrPrint writes text to a file when outPath is set, stdout
// otherwise.
func writeOrPrint(outPath, text string) error {
	if outPath == "" {
		fmt.Print(text)
		if !strings.HasSuffix(text, "\n") {
			fmt.Println()
		}
		return nil
	}
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outPath, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// printRunSummary reports one finished run on stdout, warnings to stderr.
func printRunSummary(res *article.PipelineResult) {
	fmt.Printf("%s: %s after %d iterations (model %s)\n", res.URL, res.State, res.IterationsUsed, res.Model)
	if res.Final.Body != "" {
		fmt.Printf("  Title:  %s\n", res.Final.Title)
		fmt.Printf("  Scores: SEO %.1f, content %.1f\n", res.Report.SEOScore, res.Report.ContentScore)
	}
	if len(res.Findings) > 0 {
		fmt.Printf("  Redacted: %s\n", strings.Join(res.Findings, ", "))
	}
	if res.Publication != nil {
		if res.Publication.Error != "" {
			fmt.Printf("  Publish failed: %s\n", res.Publication.Error)
		} else {
			fmt.Printf("  Published: %s (id %d, status %s)\n",
				res.Publication.Link, res.Publication.RemoteID, res.Publication.Status)
		}
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline error: %v\n", res.Err)
	}
}
