package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/valpere/perepys/internal/article"
	"github.com/valpere/perepys/internal/detector"
)

var (
	spaceRe = regexp.MustCompile(`\s+`)

	// bylineRe spots "N min read" and dateline list items left under the
	// title by blog platforms.
	bylineRe = regexp.MustCompile(`(?i)^[-*]\s.*(?:min read|\b\d{4}\b)`)
)

// GeneralScraper is the default backend, suited to most blog platforms.
type GeneralScraper struct {
	cfg        Config
	client     *http.Client
	det        *detector.Detector
	skipWords  []string
	endMarkers []string
}

// NewGeneralScraper builds the scraper. det may be nil to skip language
// detection.
func NewGeneralScraper(cfg Config, det *detector.Detector) *GeneralScraper {
	cfg = cfg.withDefaults()
	return &GeneralScraper{
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		det:        det,
		skipWords:  lowerAll(cfg.SkipKeywords),
		endMarkers: lowerAll(cfg.ContentEndMarkers),
	}
}

func (s *GeneralScraper) Name() string {
	return "general"
}

// Fetch retrieves rawURL and distills it into a RawArticle: head metadata
// first, then configured element removal, image collection, readability
// extraction and line filtering.
func (s *GeneralScraper) Fetch(ctx context.Context, rawURL string) (*article.RawArticle, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || pageURL.Host == "" {
		return nil, invalidURLError(rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, invalidURLError(rawURL, err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	for name, value := range s.cfg.Headers {
		req.Header.Set(name, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, transportError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(rawURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, transportError(rawURL, err)
	}

	title, meta := extractMetadata(doc)

	for _, sel := range s.cfg.RemoveSelectors {
		doc.Find(sel).Remove()
	}
	doc.Find("script,style,noscript").Remove()

	images := s.collectImages(doc, pageURL)

	cleanedHTML, err := doc.Html()
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: KindEmptyContent, Message: "cannot serialize document", Err: err}
	}

	parser := readability.NewParser()
	extracted, err := parser.Parse(strings.NewReader(cleanedHTML), pageURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: KindEmptyContent, Message: "content extraction failed", Err: err}
	}

	if title == "" {
		title = compactText(extracted.Title)
	}

	body := s.cleanBody(renderMarkdown(extracted.Content, pageURL), title)
	if body == "" {
		return nil, emptyContentError(rawURL)
	}

	raw := &article.RawArticle{
		URL:       rawURL,
		Title:     title,
		Body:      body,
		Metadata:  meta,
		Images:    images,
		FetchedAt: time.Now(),
	}
	if s.det != nil {
		if code, ok := s.det.DetectISO(body); ok {
			raw.Metadata.Language = code
		}
	}
	return raw, nil
}

// extractMetadata reads head-level metadata from the document before
// element removal and main-content extraction narrow it down.
func extractMetadata(doc *goquery.Document) (string, article.Metadata) {
	title := compactText(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	if title == "" {
		title = compactText(doc.Find("title").First().Text())
	}

	meta := article.Metadata{
		Description: compactText(doc.Find(`meta[name="description"]`).AttrOr("content", "")),
		Author:      compactText(doc.Find(`meta[name="author"]`).AttrOr("content", "")),
		Published:   compactText(doc.Find(`meta[property="article:published_time"]`).AttrOr("content", "")),
	}
	if raw := doc.Find(`meta[name="keywords"]`).AttrOr("content", ""); raw != "" {
		meta.Keywords = splitKeywords(raw)
	}
	return title, meta
}

// splitKeywords splits a keywords meta value on commas, dropping empties.
func splitKeywords(raw string) []string {
	var keywords []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			keywords = append(keywords, part)
		}
	}
	return keywords
}

// collectImages gathers content-worthy images: icons and decorations are
// dropped, the rest kept in document order. Over the cap, images are
// ranked by alt text and size first.
func (s *GeneralScraper) collectImages(doc *goquery.Document, base *url.URL) []article.ImageRef {
	type scoredRef struct {
		ref   article.ImageRef
		score int
	}

	var found []scoredRef
	seen := make(map[string]bool)
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src := resolveRef(base, sel.AttrOr("src", ""))
		if src == "" || seen[src] {
			return
		}

		width := attrInt(sel, "width")
		height := attrInt(sel, "height")
		if width > 0 && height > 0 && (width < 100 || height < 100) {
			return
		}

		alt := compactText(sel.AttrOr("alt", ""))
		caption := compactText(sel.AttrOr("title", ""))

		inContent := false
		switch goquery.NodeName(sel.Parent()) {
		case "p", "div", "article", "section", "main", "figure":
			inContent = true
		}
		meaningfulAlt := utf8.RuneCountInString(alt) > 3
		meaningfulCaption := utf8.RuneCountInString(caption) > 3
		reasonableSize := width >= 200 && height >= 200
		if !inContent && !meaningfulAlt && !meaningfulCaption && !reasonableSize {
			return
		}

		score := 0
		if meaningfulAlt {
			score += 3
		}
		if meaningfulCaption {
			score += 2
		}
		switch {
		case width >= 400 && height >= 400:
			score += 3
		case width >= 300 && height >= 300:
			score += 2
		case reasonableSize:
			score++
		}

		seen[src] = true
		found = append(found, scoredRef{ref: article.ImageRef{URL: src, Alt: alt}, score: score})
	})

	if len(found) > s.cfg.MaxImages {
		sort.SliceStable(found, func(i, j int) bool { return found[i].score > found[j].score })
		found = found[:s.cfg.MaxImages]
	}
	if len(found) == 0 {
		return nil
	}

	refs := make([]article.ImageRef, len(found))
	for i, f := range found {
		refs[i] = f.ref
	}
	return refs
}

// renderMarkdown flattens extracted article HTML into markdown-shaped
// blocks: headings, paragraphs, list items, quotes, fenced code and image
// markers. Inline links and images survive; other inline markup is
// flattened to text.
func renderMarkdown(content string, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}

	var blocks []string
	doc.Find("h1,h2,h3,h4,p,li,blockquote,pre,img").Each(func(_ int, sel *goquery.Selection) {
		switch goquery.NodeName(sel) {
		case "h1":
			if text := compactText(sel.Text()); text != "" {
				blocks = append(blocks, "# "+text)
			}
		case "h2":
			if text := compactText(sel.Text()); text != "" {
				blocks = append(blocks, "## "+text)
			}
		case "h3":
			if text := compactText(sel.Text()); text != "" {
				blocks = append(blocks, "### "+text)
			}
		case "h4":
			if text := compactText(sel.Text()); text != "" {
				blocks = append(blocks, "#### "+text)
			}
		case "p":
			// Quoted and list paragraphs render with their parent block.
			if sel.ParentsFiltered("blockquote,li").Length() > 0 {
				return
			}
			if text := inlineMarkdown(sel, base); text != "" {
				blocks = append(blocks, text)
			}
		case "li":
			if text := inlineMarkdown(sel, base); text != "" {
				blocks = append(blocks, "- "+text)
			}
		case "blockquote":
			if text := compactText(sel.Text()); text != "" {
				blocks = append(blocks, "> "+text)
			}
		case "pre":
			if code := strings.Trim(sel.Text(), "\n"); strings.TrimSpace(code) != "" {
				blocks = append(blocks, "```\n"+code+"\n```")
			}
		case "img":
			switch goquery.NodeName(sel.Parent()) {
			case "p", "li", "blockquote":
				return
			}
			if src := resolveRef(base, sel.AttrOr("src", "")); src != "" {
				blocks = append(blocks, fmt.Sprintf("![%s](%s)", compactText(sel.AttrOr("alt", "")), src))
			}
		}
	})
	return strings.Join(blocks, "\n\n")
}

// inlineMarkdown renders a paragraph-level selection, keeping links and
// images in markdown form.
func inlineMarkdown(sel *goquery.Selection, base *url.URL) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		switch goquery.NodeName(node) {
		case "a":
			text := compactText(node.Text())
			href := resolveRef(base, node.AttrOr("href", ""))
			switch {
			case text == "":
			case href == "":
				b.WriteString(text)
			default:
				fmt.Fprintf(&b, "[%s](%s)", text, href)
			}
		case "img":
			if src := resolveRef(base, node.AttrOr("src", "")); src != "" {
				fmt.Fprintf(&b, "![%s](%s)", compactText(node.AttrOr("alt", "")), src)
			}
		case "br":
			b.WriteString(" ")
		default:
			b.WriteString(node.Text())
		}
	})
	return compactText(b.String())
}

// cleanBody runs the line filter over rendered markdown: boilerplate lines
// are dropped and the article is truncated at the first content-end
// marker. When strict filtering leaves nothing, a relaxed pass keeps
// everything but obvious junk. Heading lines restating the page title go
// last; the title lives in its own field.
func (s *GeneralScraper) cleanBody(text, title string) string {
	body := s.filterLines(text)
	if body == "" {
		body = relaxedFilter(text)
	}
	return dedupeTitle(body, title)
}

// filterLines drops skip-keyword lines and truncates at the first
// content-end marker. Heading lines always pass; blank lines and
// separators collapse to at most one blank.
func (s *GeneralScraper) filterLines(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "---" || line == "***" || line == "___" {
			kept = appendLine(kept, "")
			continue
		}
		if strings.HasPrefix(line, "#") {
			kept = appendLine(kept, "")
			kept = append(kept, line)
			continue
		}
		lower := strings.ToLower(line)
		if containsAny(lower, s.endMarkers) {
			break
		}
		if containsAny(lower, s.skipWords) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// relaxedJunk is the fallback filter: when strict filtering empties the
// article, only lines matching these are removed.
var relaxedJunk = []string{
	"leave a comment", "footer menu", "shopping cart", "currency",
	"share this", "follow us", "subscribe", "newsletter",
}

func relaxedFilter(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			kept = appendLine(kept, "")
			continue
		}
		if strings.HasPrefix(line, "#") {
			kept = appendLine(kept, "")
			kept = append(kept, line)
			continue
		}
		if containsAny(strings.ToLower(line), relaxedJunk) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// dedupeTitle removes top-level heading lines and byline leftovers once a
// page title is known.
func dedupeTitle(body, title string) string {
	if title == "" {
		return body
	}
	var kept []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			kept = appendLine(kept, "")
			continue
		}
		if strings.HasPrefix(line, "# ") {
			continue
		}
		if bylineRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// appendLine appends line to kept, collapsing consecutive blanks and
// dropping leading ones.
func appendLine(kept []string, line string) []string {
	if line == "" {
		if n := len(kept); n == 0 || kept[n-1] == "" {
			return kept
		}
	}
	return append(kept, line)
}

func containsAny(lower string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	lowered := make([]string, len(values))
	for i, v := range values {
		lowered[i] = strings.ToLower(v)
	}
	return lowered
}

// resolveRef makes a possibly relative reference absolute against the page
// URL. Non-HTTP results (data URIs, javascript links) resolve to "".
func resolveRef(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// attrInt reads a numeric attribute; percentages and junk count as unset.
func attrInt(sel *goquery.Selection, name string) int {
	value, ok := sel.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// compactText collapses runs of whitespace to single spaces.
func compactText(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}
