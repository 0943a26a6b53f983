// Package publisher pushes finished articles to a CMS over its REST API.
// The WordPress client is the only backend; a publish failure is recorded
// on the run and never invalidates the pipeline result.
package publisher

import (
	"context"
	"time"
)

// Post is one article ready for the CMS. Content is markdown; the client
// converts it to HTML before sending.
type Post struct {
	Title         string                 `json:"title"`
	Content       string                 `json:"content"`
	Excerpt       string                 `json:"excerpt,omitempty"`
	Status        string                 `json:"status,omitempty"`
	Categories    []int                  `json:"categories,omitempty"`
	Tags          []int                  `json:"tags,omitempty"`
	FeaturedMedia int                    `json:"featured_media,omitempty"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
}

// Result is the CMS's view of a created post.
type Result struct {
	ID     int    `json:"id"`
	Link   string `json:"link"`
	Status string `json:"status"`
}

// Media is an uploaded attachment, usable as a post's featured media.
type Media struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

type Publisher interface {
	Publish(ctx context.Context, post Post) (*Result, error)
	UploadMedia(ctx context.Context, filename string, data []byte) (*Media, error)
}

type Config struct {
	APIURL      string        `mapstructure:"api_url" json:"api_url"`
	Username    string        `mapstructure:"username" json:"username"`
	AppPassword string        `mapstructure:"app_password" json:"-"`
	Status      string        `mapstructure:"status" json:"status,omitempty"`
	Categories  []int         `mapstructure:"categories" json:"categories,omitempty"`
	Tags        []int         `mapstructure:"tags" json:"tags,omitempty"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout,omitempty"`
}
