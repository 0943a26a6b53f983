// Package markdown converts article bodies between markdown and HTML.
// Rewrite backends produce markdown; the publisher ships HTML; the scorer
// strips stray tags before prose analysis.
package markdown

import (
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// ToHTML renders a markdown article body as HTML suitable for a CMS post.
func ToHTML(md string) string {
	opts := html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank | html.LazyLoadImages,
	}
	renderer := html.NewRenderer(opts)
	ext := parser.CommonExtensions | parser.Attributes
	p := parser.NewWithExtensions(ext)
	doc := p.Parse([]byte(md))
	return string(markdown.Render(doc, renderer))
}

var spaceRunRe = regexp.MustCompile(`[ \t]{2,}`)

// StripHTMLTags replaces every tag with a space so adjacent block elements
// do not glue words together, then collapses horizontal space runs. Newlines
// are preserved because paragraph structure matters downstream.
func StripHTMLTags(htmlContent string) string {
	var b strings.Builder
	inTag := false

	for _, ch := range htmlContent {
		switch {
		case ch == '<':
			inTag = true
		case ch == '>' && inTag:
			inTag = false
			b.WriteRune(' ')
		default:
			if !inTag {
				b.WriteRune(ch)
			}
		}
	}

	return spaceRunRe.ReplaceAllString(b.String(), " ")
}
