package publisher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/valpere/perepys/internal/markdown"
)

const defaultPublishTimeout = 30 * time.Second

// validStatuses are the post states the REST API accepts from this tool.
var validStatuses = map[string]bool{
	"draft":   true,
	"publish": true,
	"private": true,
}

// WordPressClient talks to a WordPress REST API (wp-json/wp/v2).
type WordPressClient struct {
	apiURL     string
	username   string
	password   string
	status     string
	categories []int
	tags       []int
	client     *http.Client
}

// NewWordPressClient builds a client from config. Post status defaults to
// draft; drafts are safe to create with imperfect content.
func NewWordPressClient(cfg Config) *WordPressClient {
	status := cfg.Status
	if status == "" {
		status = "draft"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &WordPressClient{
		apiURL:     strings.TrimSuffix(cfg.APIURL, "/"),
		username:   cfg.Username,
		password:   cfg.AppPassword,
		status:     status,
		categories: cfg.Categories,
		tags:       cfg.Tags,
		client:     &http.Client{Timeout: timeout},
	}
}

// Publish creates a post. Post-level status, categories and tags override
// the configured defaults; the markdown content is converted to HTML on the
// way out.
func (w *WordPressClient) Publish(ctx context.Context, post Post) (*Result, error) {
	if w.apiURL == "" {
		return nil, fmt.Errorf("wordpress api_url not configured")
	}

	status := post.Status
	if status == "" {
		status = w.status
	}
	if !validStatuses[status] {
		return nil, fmt.Errorf("invalid post status %q (valid: draft, publish, private)", status)
	}

	categories := post.Categories
	if categories == nil {
		categories = w.categories
	}
	tags := post.Tags
	if tags == nil {
		tags = w.tags
	}

	payload := map[string]interface{}{
		"title":      post.Title,
		"content":    markdown.ToHTML(post.Content),
		"status":     status,
		"categories": categories,
		"tags":       tags,
	}
	if post.Excerpt != "" {
		payload["excerpt"] = post.Excerpt
	}
	if post.FeaturedMedia != 0 {
		payload["featured_media"] = post.FeaturedMedia
	}
	if len(post.Meta) > 0 {
		payload["meta"] = post.Meta
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.apiURL+"/posts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+w.basicToken())
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, wireError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, responseError(resp.StatusCode, string(raw))
	}

	var decoded struct {
		ID     int    `json:"id"`
		Link   string `json:"link"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &PublishError{Kind: KindUnreachable, Message: "undecodable response", Err: err}
	}

	return &Result{ID: decoded.ID, Link: decoded.Link, Status: decoded.Status}, nil
}

// UploadMedia posts an attachment and returns its ID and URL, usable as a
// post's featured media.
func (w *WordPressClient) UploadMedia(ctx context.Context, filename string, data []byte) (*Media, error) {
	if w.apiURL == "" {
		return nil, fmt.Errorf("wordpress api_url not configured")
	}
	if filename == "" || len(data) == 0 {
		return nil, fmt.Errorf("media upload needs a filename and data")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.apiURL+"/media", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+w.basicToken())
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filepath.Base(filename)))
	req.Header.Set("Content-Type", contentTypeFor(filename))

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, wireError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, responseError(resp.StatusCode, string(raw))
	}

	var decoded struct {
		ID        int    `json:"id"`
		SourceURL string `json:"source_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &PublishError{Kind: KindUnreachable, Message: "undecodable response", Err: err}
	}

	return &Media{ID: decoded.ID, URL: decoded.SourceURL}, nil
}

func (w *WordPressClient) basicToken() string {
	return base64.StdEncoding.EncodeToString([]byte(w.username + ":" + w.password))
}

// contentTypeFor maps a filename extension to the upload content type.
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
