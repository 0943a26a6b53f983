package model

import (
	"strings"

	"github.com/valpere/perepys/internal/prompt"
)

// Excerpt sizes for the title and description generators.
const (
	seoTitleExcerptLen       = 500
	seoDescriptionExcerptLen = 1000
)

func rewriteUserPrompt(lib *prompt.Library, req RewriteRequest) string {
	return prompt.Render(lib.Rewrite, map[string]string{
		"title":       req.Title,
		"content":     req.Body,
		"description": req.Description,
		"keywords":    strings.Join(req.Keywords, ", "),
	})
}

func optimizeTitlePrompt(lib *prompt.Library, title string, suggestions []string) string {
	return prompt.Render(lib.OptimizeTitle, map[string]string{
		"title":       title,
		"suggestions": prompt.JoinSuggestions(suggestions),
	})
}

func optimizeDescriptionPrompt(lib *prompt.Library, description string, suggestions []string) string {
	return prompt.Render(lib.OptimizeDescription, map[string]string{
		"description": description,
		"suggestions": prompt.JoinSuggestions(suggestions),
	})
}

func seoTitlePrompt(lib *prompt.Library, title, content string) string {
	return prompt.Render(lib.SEOTitle, map[string]string{
		"title":   title,
		"content": prompt.Excerpt(content, seoTitleExcerptLen),
	})
}

func seoDescriptionPrompt(lib *prompt.Library, description, content string) string {
	return prompt.Render(lib.SEODescription, map[string]string{
		"description": description,
		"content":     prompt.Excerpt(content, seoDescriptionExcerptLen),
	})
}
