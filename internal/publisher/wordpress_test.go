package publisher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

var _ Publisher = (*WordPressClient)(nil)

func testClient(srv *httptest.Server, cfg Config) *WordPressClient {
	if cfg.APIURL == "" {
		cfg.APIURL = srv.URL + "/wp-json/wp/v2"
	}
	c := NewWordPressClient(cfg)
	c.client = srv.Client()
	return c
}

func TestWordPressClient_Publish_Success(t *testing.T) {
	type wire struct {
		Title         string            `json:"title"`
		Content       string            `json:"content"`
		Status        string            `json:"status"`
		Categories    []int             `json:"categories"`
		Tags          []int             `json:"tags"`
		Excerpt       string            `json:"excerpt"`
		FeaturedMedia int               `json:"featured_media"`
		Meta          map[string]string `json:"meta"`
	}

	var (
		gotPath string
		gotAuth string
		gotBody wire
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"id":321,"link":"https://blog.example.com/?p=321","status":"draft"}`)
	}))
	defer srv.Close()

	c := testClient(srv, Config{
		Username:   "alice",
		Categories: []int{2, 7},
		Tags:       []int{11},
	})
	c.password = "secret 1234"

	result, err := c.Publish(context.Background(), Post{
		Title:         "Brewing Better Coffee",
		Content:       "## Getting started\n\nGrind fresh beans every morning.",
		Excerpt:       "A short guide to better coffee.",
		FeaturedMedia: 55,
		Meta:          map[string]interface{}{"source": "perepys"},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if gotPath != "/wp-json/wp/v2/posts" {
		t.Errorf("path = %q", gotPath)
	}
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:secret 1234"))
	if gotAuth != wantAuth {
		t.Errorf("Authorization = %q, want %q", gotAuth, wantAuth)
	}

	if gotBody.Title != "Brewing Better Coffee" {
		t.Errorf("title = %q", gotBody.Title)
	}
	if !strings.Contains(gotBody.Content, "<h2") || !strings.Contains(gotBody.Content, "<p>") {
		t.Errorf("content not converted to HTML: %q", gotBody.Content)
	}
	if strings.Contains(gotBody.Content, "## ") {
		t.Errorf("markdown heading leaked into content: %q", gotBody.Content)
	}
	if gotBody.Status != "draft" {
		t.Errorf("status = %q, want default draft", gotBody.Status)
	}
	if !reflect.DeepEqual(gotBody.Categories, []int{2, 7}) {
		t.Errorf("categories = %v", gotBody.Categories)
	}
	if !reflect.DeepEqual(gotBody.Tags, []int{11}) {
		t.Errorf("tags = %v", gotBody.Tags)
	}
	if gotBody.Excerpt != "A short guide to better coffee." {
		t.Errorf("excerpt = %q", gotBody.Excerpt)
	}
	if gotBody.FeaturedMedia != 55 {
		t.Errorf("featured_media = %d", gotBody.FeaturedMedia)
	}
	if gotBody.Meta["source"] != "perepys" {
		t.Errorf("meta = %v", gotBody.Meta)
	}

	if result.ID != 321 || result.Link != "https://blog.example.com/?p=321" || result.Status != "draft" {
		t.Errorf("result = %+v", result)
	}
}

func TestWordPressClient_Publish_PostOverridesConfig(t *testing.T) {
	var gotBody struct {
		Status     string `json:"status"`
		Categories []int  `json:"categories"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"id":1,"link":"x","status":"publish"}`)
	}))
	defer srv.Close()

	c := testClient(srv, Config{Status: "draft", Categories: []int{2}})

	_, err := c.Publish(context.Background(), Post{
		Title:      "t",
		Content:    "b",
		Status:     "publish",
		Categories: []int{9},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if gotBody.Status != "publish" {
		t.Errorf("status = %q, want post-level override", gotBody.Status)
	}
	if !reflect.DeepEqual(gotBody.Categories, []int{9}) {
		t.Errorf("categories = %v, want post-level override", gotBody.Categories)
	}
}

func TestWordPressClient_Publish_StatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		wantKind Kind
	}{
		{status: http.StatusUnauthorized, body: `{"code":"rest_not_logged_in"}`, wantKind: KindUnauthorized},
		{status: http.StatusForbidden, body: `{"code":"rest_forbidden"}`, wantKind: KindUnauthorized},
		{status: http.StatusBadRequest, body: `{"code":"rest_invalid_param"}`, wantKind: KindValidationRejected},
		{status: http.StatusUnprocessableEntity, body: `{"code":"rest_invalid"}`, wantKind: KindValidationRejected},
		{status: http.StatusInternalServerError, body: "boom", wantKind: KindUnreachable},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c := testClient(srv, Config{})
			_, err := c.Publish(context.Background(), Post{Title: "t", Content: "b"})

			var pubErr *PublishError
			if !errors.As(err, &pubErr) {
				t.Fatalf("error = %v, want *PublishError", err)
			}
			if pubErr.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", pubErr.Kind, tt.wantKind)
			}
			if pubErr.Status != tt.status {
				t.Errorf("Status = %d, want %d", pubErr.Status, tt.status)
			}
			if !strings.Contains(pubErr.Error(), strings.TrimSpace(tt.body)) {
				t.Errorf("Error() = %q, want body included", pubErr.Error())
			}
		})
	}
}

func TestWordPressClient_Publish_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	apiURL := srv.URL
	srv.Close()

	c := NewWordPressClient(Config{APIURL: apiURL})
	_, err := c.Publish(context.Background(), Post{Title: "t", Content: "b"})

	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("error = %v, want *PublishError", err)
	}
	if pubErr.Kind != KindUnreachable {
		t.Errorf("Kind = %q, want %q", pubErr.Kind, KindUnreachable)
	}
}

func TestWordPressClient_Publish_InvalidStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := testClient(srv, Config{})
	_, err := c.Publish(context.Background(), Post{Title: "t", Content: "b", Status: "pending"})
	if err == nil || !strings.Contains(err.Error(), `invalid post status "pending"`) {
		t.Fatalf("error = %v, want invalid status", err)
	}
	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		t.Error("local validation should not produce a *PublishError")
	}
	if calls != 0 {
		t.Errorf("server called %d times, want 0", calls)
	}
}

func TestWordPressClient_Publish_MissingAPIURL(t *testing.T) {
	c := NewWordPressClient(Config{})
	_, err := c.Publish(context.Background(), Post{Title: "t", Content: "b"})
	if err == nil || !strings.Contains(err.Error(), "api_url not configured") {
		t.Errorf("error = %v, want missing api_url", err)
	}
}

func TestWordPressClient_UploadMedia(t *testing.T) {
	var (
		gotPath        string
		gotDisposition string
		gotContentType string
		gotData        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotDisposition = r.Header.Get("Content-Disposition")
		gotContentType = r.Header.Get("Content-Type")
		gotData, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"id":77,"source_url":"https://blog.example.com/wp-content/uploads/photo.jpg"}`)
	}))
	defer srv.Close()

	c := testClient(srv, Config{})
	data := []byte{0xff, 0xd8, 0xff, 0xe0}

	media, err := c.UploadMedia(context.Background(), "photo.jpg", data)
	if err != nil {
		t.Fatalf("UploadMedia: %v", err)
	}

	if gotPath != "/wp-json/wp/v2/media" {
		t.Errorf("path = %q", gotPath)
	}
	if gotDisposition != `attachment; filename="photo.jpg"` {
		t.Errorf("Content-Disposition = %q", gotDisposition)
	}
	if gotContentType != "image/jpeg" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if !bytes.Equal(gotData, data) {
		t.Errorf("uploaded %v, want %v", gotData, data)
	}
	if media.ID != 77 || media.URL != "https://blog.example.com/wp-content/uploads/photo.jpg" {
		t.Errorf("media = %+v", media)
	}
}

func TestWordPressClient_UploadMedia_EmptyArgs(t *testing.T) {
	c := NewWordPressClient(Config{APIURL: "https://blog.example.com/wp-json/wp/v2"})

	if _, err := c.UploadMedia(context.Background(), "", []byte{1}); err == nil {
		t.Error("want error for empty filename")
	}
	if _, err := c.UploadMedia(context.Background(), "a.png", nil); err == nil {
		t.Error("want error for empty data")
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"photo.jpg", "image/jpeg"},
		{"PHOTO.JPEG", "image/jpeg"},
		{"diagram.png", "image/png"},
		{"loop.gif", "image/gif"},
		{"paper.pdf", "application/pdf"},
		{"notes.doc", "application/msword"},
		{"notes.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"archive.zip", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := contentTypeFor(tt.filename); got != tt.want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
