// Package images downloads the pictures referenced by a scraped article
// and weaves them back into the rewritten body. Downloads are best
// effort: a picture that cannot be fetched is dropped, never fails a
// run.
package images

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/perepys/internal/article"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultWorkers   = 5
	defaultMaxImages = 5
	defaultDir       = "data/images"
)

type Config struct {
	Enabled   bool          `mapstructure:"enabled"    json:"enabled"`
	Dir       string        `mapstructure:"dir"        json:"dir"`
	Upload    bool          `mapstructure:"upload"     json:"upload"`
	MaxImages int           `mapstructure:"max_images" json:"max_images"`
	Workers   int           `mapstructure:"workers"    json:"workers"`
	Timeout   time.Duration `mapstructure:"timeout"    json:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.Dir == "" {
		c.Dir = defaultDir
	}
	if c.MaxImages <= 0 {
		c.MaxImages = defaultMaxImages
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Stored is one image saved to local disk. URL is filled in when the
// file has been uploaded to the CMS media library; Embed prefers it
// over the local path.
type Stored struct {
	SourceURL string `json:"source_url"`
	Alt       string `json:"alt,omitempty"`
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	URL       string `json:"url,omitempty"`
	Data      []byte `json:"-"`
}

type Processor struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Processor {
	cfg = cfg.withDefaults()
	return &Processor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// UploadEnabled reports whether downloaded images should also be pushed
// to the CMS media library.
func (p *Processor) UploadEnabled() bool {
	return p.cfg.Upload
}

// Download fetches one image reference and saves it under the configured
// directory. Files whose URL path already carries an image extension keep
// their name and are reused from disk on repeat runs; everything else is
// stored under a generated name with an extension taken from the response
// content type.
func (p *Processor) Download(ctx context.Context, ref article.ImageRef, baseURL string) (*Stored, error) {
	src, err := normalizeURL(ref.URL, baseURL)
	if err != nil {
		return nil, err
	}
	parsed, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse image URL: %w", err)
	}
	filename := path.Base(parsed.Path)

	if validImageExt(filename) {
		existing := filepath.Join(p.cfg.Dir, filename)
		if data, err := os.ReadFile(existing); err == nil {
			return &Stored{SourceURL: src, Alt: ref.Alt, Filename: filename, Path: existing, Data: data}, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch image %s: status %d", src, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", src, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch image %s: empty body", src)
	}

	if !validImageExt(filename) {
		id := uuid.New()
		filename = "image_" + hex.EncodeToString(id[:]) + extensionFor(resp.Header.Get("Content-Type"))
	}
	if err := os.MkdirAll(p.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	dst := filepath.Join(p.cfg.Dir, filename)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}

	return &Stored{SourceURL: src, Alt: ref.Alt, Filename: filename, Path: dst, Data: data}, nil
}

// DownloadAll fetches every reference concurrently and returns the
// successful downloads in document order.
func (p *Processor) DownloadAll(ctx context.Context, refs []article.ImageRef, baseURL string) []Stored {
	if len(refs) == 0 {
		return nil
	}

	type result struct {
		index  int
		stored *Stored
	}

	results := make(chan result, len(refs))
	sem := make(chan struct{}, p.cfg.Workers)

	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(index int, ref article.ImageRef) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			stored, err := p.Download(ctx, ref, baseURL)
			if err != nil {
				results <- result{index: index}
				return
			}
			results <- result{index: index, stored: stored}
		}(i, ref)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*Stored, len(refs))
	for r := range results {
		ordered[r.index] = r.stored
	}

	out := make([]Stored, 0, len(refs))
	for _, s := range ordered {
		if s != nil {
			out = append(out, *s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeURL turns a scraped image reference into an absolute http(s)
// URL, resolving protocol-relative and page-relative forms against the
// article URL. Data URIs and inline SVG placeholders are rejected.
func normalizeURL(raw, base string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty image URL")
	}
	if strings.HasPrefix(raw, "data:") || strings.Contains(raw, "<svg") || strings.Contains(raw, "%3Csvg") {
		return "", fmt.Errorf("unsupported image URL %q", raw)
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse image URL: %w", err)
	}
	if ref.Host == "" {
		if base == "" {
			return "", fmt.Errorf("relative image URL %q without a page URL", raw)
		}
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("parse page URL: %w", err)
		}
		ref = b.ResolveReference(ref)
	}
	if (ref.Scheme != "http" && ref.Scheme != "https") || ref.Host == "" {
		return "", fmt.Errorf("unsupported image URL %q", raw)
	}
	return ref.String(), nil
}

func extensionFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return ".jpg"
	case strings.Contains(ct, "png"):
		return ".png"
	case strings.Contains(ct, "gif"):
		return ".gif"
	case strings.Contains(ct, "webp"):
		return ".webp"
	case strings.Contains(ct, "svg"):
		return ".svg"
	case strings.Contains(ct, "bmp"):
		return ".bmp"
	case strings.Contains(ct, "tiff"):
		return ".tiff"
	default:
		return ".jpg"
	}
}

func validImageExt(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg":
		return true
	}
	return false
}
