// Package translate localizes finished articles with the Google Cloud
// Translation API. Markup is protected with placeholders before text
// leaves the process and restored afterwards; long bodies are split into
// chunks so each request stays under the API's size cap.
package translate

import (
	"context"
	"fmt"
	"strings"

	gtranslate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/valpere/perepys/internal/article"
	"github.com/valpere/perepys/internal/chunker"
	"github.com/valpere/perepys/internal/placeholder"
)

const defaultChunkChars = 4000

type Config struct {
	ProjectID       string `mapstructure:"project_id"       json:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file" json:"-"`
	ChunkChars      int    `mapstructure:"chunk_chars"      json:"chunk_chars"`
}

type Service struct {
	cfg  Config
	opts []option.ClientOption
}

func New(cfg Config) *Service {
	if cfg.ChunkChars <= 0 {
		cfg.ChunkChars = defaultChunkChars
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.ProjectID != "" {
		opts = append(opts, option.WithQuotaProject(cfg.ProjectID))
	}

	return &Service{cfg: cfg, opts: opts}
}

func (s *Service) Name() string {
	return "google"
}

// Translate converts text into the target language. sourceLang may be
// empty or "auto" to let the API detect it. The call fails when the
// translation drops any protected segment, since restoring it would be
// impossible and the article would silently lose content.
func (s *Service) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	target, err := language.Parse(targetLang)
	if err != nil {
		return "", fmt.Errorf("invalid target language %q: %w", targetLang, err)
	}

	opts := &gtranslate.Options{Format: gtranslate.Text}
	if sourceLang != "" && sourceLang != "auto" {
		source, err := language.Parse(sourceLang)
		if err != nil {
			return "", fmt.Errorf("invalid source language %q: %w", sourceLang, err)
		}
		opts.Source = source
	}

	client, err := gtranslate.NewClient(ctx, s.opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	protected, markers := placeholder.Protect(text)
	chunks := chunker.Chunk(protected, s.cfg.ChunkChars)

	translated := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		out, err := client.Translate(ctx, []string{chunk}, target, opts)
		if err != nil {
			return "", fmt.Errorf("translation failed: %w", err)
		}
		if len(out) == 0 {
			return "", fmt.Errorf("no translation returned")
		}
		translated = append(translated, out[0].Text)
	}

	joined := strings.Join(translated, "\n\n")
	if missing := placeholder.Validate(joined, markers); len(missing) > 0 {
		return "", fmt.Errorf("translation dropped %d protected segment(s)", len(missing))
	}

	return placeholder.Restore(joined, markers), nil
}

// TranslateCandidate localizes the title, description and body of a
// finished article, leaving everything else untouched.
func (s *Service) TranslateCandidate(ctx context.Context, cand article.Candidate, sourceLang, targetLang string) (article.Candidate, error) {
	out := cand

	title, err := s.Translate(ctx, cand.Title, sourceLang, targetLang)
	if err != nil {
		return article.Candidate{}, fmt.Errorf("translate title: %w", err)
	}
	description, err := s.Translate(ctx, cand.Description, sourceLang, targetLang)
	if err != nil {
		return article.Candidate{}, fmt.Errorf("translate description: %w", err)
	}
	body, err := s.Translate(ctx, cand.Body, sourceLang, targetLang)
	if err != nil {
		return article.Candidate{}, fmt.Errorf("translate body: %w", err)
	}

	out.Title = title
	out.Description = description
	out.Body = body
	return out, nil
}
