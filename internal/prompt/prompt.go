// Package prompt holds the template library for the rewrite backends.
// Templates are plain strings with named placeholders ({title}, {content},
// {keywords}, {description}, {suggestions}); substitution is literal string
// interpolation, never template execution. Defaults are embedded and may be
// overridden per key from a YAML file.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Library carries one template per backend operation. YAML keys follow the
// prompts-file layout: top-level base_prompts with one entry per operation.
type Library struct {
	RewriteSystem       string `yaml:"rewrite_system"`
	Rewrite             string `yaml:"rewrite"`
	OptimizeTitle       string `yaml:"optimize_title"`
	OptimizeDescription string `yaml:"optimize_description"`
	SEOTitle            string `yaml:"generate_seo_title"`
	SEODescription      string `yaml:"generate_seo_description"`
}

type promptsFile struct {
	BasePrompts Library `yaml:"base_prompts"`
}

const defaultRewriteSystem = "You are a professional content writer who rewrites articles to be engaging and SEO-friendly while preserving their substance."

const defaultRewrite = `Rewrite the following blog article so it is more engaging while staying professional and SEO-friendly.

Requirements:
1. Keep the original's main points and information
2. Use a more compelling title and opening
3. Add vivid examples and analogies where they help
4. Use subheadings and lists to improve readability
5. Work in the following keywords: {keywords}
6. Keep keyword density appropriate for SEO
7. Structure the article clearly: introduction, body, conclusion
8. Add a call to action near the end
9. The rewrite must not be shorter than the original

Original title: {title}

Original content:
{content}

Return the complete rewritten article, including the title on the first line, and nothing else.`

const defaultOptimizeTitle = `Improve the following article title based on these suggestions: {suggestions}

Current title: {title}

Return only the improved title, nothing else.`

const defaultOptimizeDescription = `Improve the following meta description based on these suggestions: {suggestions}

Current description: {description}

Return only the improved description, nothing else.`

const defaultSEOTitle = `Write one SEO-friendly title for the following article. Keep it under 60 characters and make it compelling.

Current title: {title}

Article excerpt:
{content}

Return only the title, nothing else.`

const defaultSEODescription = `Write one SEO-friendly meta description for the following article. Keep it between 70 and 160 characters.

Current description: {description}

Article excerpt:
{content}

Return only the description, nothing else.`

// Defaults returns the embedded template library.
func Defaults() *Library {
	return &Library{
		RewriteSystem:       defaultRewriteSystem,
		Rewrite:             defaultRewrite,
		OptimizeTitle:       defaultOptimizeTitle,
		OptimizeDescription: defaultOptimizeDescription,
		SEOTitle:            defaultSEOTitle,
		SEODescription:      defaultSEODescription,
	}
}

// Load reads a prompts YAML file and overlays any non-empty keys onto the
// defaults, so a file may override a single template without repeating the
// rest. An empty path returns the defaults unchanged.
func Load(path string) (*Library, error) {
	lib := Defaults()
	if path == "" {
		return lib, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var pf promptsFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}

	overlay(&lib.RewriteSystem, pf.BasePrompts.RewriteSystem)
	overlay(&lib.Rewrite, pf.BasePrompts.Rewrite)
	overlay(&lib.OptimizeTitle, pf.BasePrompts.OptimizeTitle)
	overlay(&lib.OptimizeDescription, pf.BasePrompts.OptimizeDescription)
	overlay(&lib.SEOTitle, pf.BasePrompts.SEOTitle)
	overlay(&lib.SEODescription, pf.BasePrompts.SEODescription)

	return lib, nil
}

func overlay(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// Render substitutes {name} placeholders in tmpl from vars. Placeholders
// without a matching key are left intact so a half-filled template is
// visible rather than silently blanked.
func Render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// JoinSuggestions flattens scorer suggestions for prompt injection,
// preserving their order. An empty list renders as "None".
func JoinSuggestions(suggestions []string) string {
	if len(suggestions) == 0 {
		return "None"
	}
	return strings.Join(suggestions, ", ")
}

// Excerpt returns at most n runes of text, used to keep title/description
// generation prompts short.
func Excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
