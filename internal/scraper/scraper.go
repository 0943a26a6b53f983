// Package scraper fetches blog articles and distills them into markdown
// plus metadata. The general backend drives net/http with go-readability
// for main-content extraction and goquery for metadata, boilerplate
// removal and image references; ForURL keeps a host-routing seam for
// site-specific backends.
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valpere/perepys/internal/article"
	"github.com/valpere/perepys/internal/detector"
)

// Source fetches one article. Implementations return *FetchError for
// failures the pipeline treats as fatal.
type Source interface {
	Name() string
	Fetch(ctx context.Context, rawURL string) (*article.RawArticle, error)
}

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0"
	defaultMaxImages = 5
)

// defaultRemoveSelectors strips page chrome before main-content extraction.
var defaultRemoveSelectors = []string{
	"nav", "footer", ".header", ".footer", ".sidebar", ".navigation", ".menu",
	".ads", ".advertisement", ".social-share", ".related-posts", ".comments",
	".cookie-banner",
}

// defaultSkipKeywords drop shop and social boilerplate lines that survive
// element removal.
var defaultSkipKeywords = []string{
	"Save up to", "Free Shipping", "Shop All", "Browse",
	"Getting Started", "Sale", "GIFTING", "collection",
	"Add to cart", "View all", "Subscribe", "Newsletter", "Sign up",
	"Follow us", "Facebook", "Twitter", "Instagram", "Pinterest",
	"Copyright", "Terms of Service", "Privacy Policy", "Refund Policy",
	"Shopping Cart", "Your Cart is Empty", "Subtotal", "currency",
	"Leave a comment", "Comments will be approved",
	"Name *", "Email *", "Comment *", "Related Blog Posts", "Footer menu",
}

// defaultContentEndMarkers mark where the article proper ends; everything
// from the first match on is dropped.
var defaultContentEndMarkers = []string{
	"leave a comment", "related blog posts", "footer menu",
	"share this post", "about the author", "popular posts",
}

type Config struct {
	Backend           string            `mapstructure:"backend" json:"backend,omitempty"`
	Timeout           time.Duration     `mapstructure:"timeout" json:"timeout,omitempty"`
	UserAgent         string            `mapstructure:"user_agent" json:"user_agent,omitempty"`
	Headers           map[string]string `mapstructure:"headers" json:"headers,omitempty"`
	RemoveSelectors   []string          `mapstructure:"remove_selectors" json:"remove_selectors,omitempty"`
	SkipKeywords      []string          `mapstructure:"skip_keywords" json:"skip_keywords,omitempty"`
	ContentEndMarkers []string          `mapstructure:"content_end_markers" json:"content_end_markers,omitempty"`
	MaxImages         int               `mapstructure:"max_images" json:"max_images,omitempty"`
}

// withDefaults fills unset fields. A nil slice means "use the stock list",
// matching the config loader's absent-key behavior; an explicit empty list
// disables the filter.
func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.MaxImages <= 0 {
		c.MaxImages = defaultMaxImages
	}
	if c.RemoveSelectors == nil {
		c.RemoveSelectors = defaultRemoveSelectors
	}
	if c.SkipKeywords == nil {
		c.SkipKeywords = defaultSkipKeywords
	}
	if c.ContentEndMarkers == nil {
		c.ContentEndMarkers = defaultContentEndMarkers
	}
	return c
}

type builder func(cfg Config, det *detector.Detector) Source

func generalSource(cfg Config, det *detector.Detector) Source {
	return NewGeneralScraper(cfg, det)
}

// byName resolves an explicitly configured backend.
var byName = map[string]builder{
	"general": generalSource,
}

// byHost routes known hosts. medium.com and wordpress.com share the
// general backend until dedicated scrapers exist for them.
var byHost = map[string]builder{
	"medium.com":    generalSource,
	"wordpress.com": generalSource,
}

// Auto returns a Source that re-resolves the backend through ForURL on
// every fetch, so one pipeline runner can serve hosts routed to
// different scrapers.
func Auto(cfg Config, det *detector.Detector) Source {
	return &autoSource{cfg: cfg, det: det}
}

type autoSource struct {
	cfg Config
	det *detector.Detector
}

func (a *autoSource) Name() string { return "auto" }

func (a *autoSource) Fetch(ctx context.Context, rawURL string) (*article.RawArticle, error) {
	src, err := ForURL(rawURL, a.cfg, a.det)
	if err != nil {
		return nil, err
	}
	return src.Fetch(ctx, rawURL)
}

// ForURL selects the scraper backend for a URL. An explicit cfg.Backend
// wins; otherwise the host decides, falling back to the general scraper.
func ForURL(rawURL string, cfg Config, det *detector.Detector) (Source, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, invalidURLError(rawURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, invalidURLError(rawURL, nil)
	}

	if name := strings.ToLower(strings.TrimSpace(cfg.Backend)); name != "" {
		build, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown scraper backend %q", name)
		}
		return build(cfg, det), nil
	}

	host := strings.ToLower(parsed.Hostname())
	for suffix, build := range byHost {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return build(cfg, det), nil
		}
	}
	return generalSource(cfg, det), nil
}
